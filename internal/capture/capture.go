// Package capture defines the boundary to the camera/microphone hardware: a Device hands out
// a Session of stoppable tracks, the video track being readable frame by frame.
package capture

import (
	"context"
	"image"

	"github.com/pkg/errors"

	"github.com/liptakmatyas/opencv-playground/webcambg/internal/flow"
)

var (
	ErrNoVideoTrack = errors.New("session has no video track")
	ErrTrackStopped = errors.New("track stopped")
)

type Kind string

const (
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

// Constraints is the capture request. Zero Width/Height leave the choice to the driver.
type Constraints struct {
	Width  int
	Height int
	Audio  bool
}

type Device interface {
	// Open requests combined capture. Failures are returned as *AcquisitionError.
	Open(ctx context.Context, c Constraints) (Session, error)
}

type Session interface {
	ID() string
	Video() VideoTrack
	// Audio is nil when the backend captured no microphone.
	Audio() AudioTrack
	Tracks() []Track
	// Close stops every track of the session.
	Close() error
}

type Track interface {
	ID() string
	Kind() Kind
	// Stop releases the underlying hardware. Stopping twice is a no-op.
	Stop() error
	Stopped() bool
}

type VideoTrack interface {
	Track
	// ReadFrame blocks until the next frame. The frame may have zero dimensions while the
	// camera is warming up.
	ReadFrame() (image.Image, error)
}

// AudioTrack carries the microphone. The gain is a stored 0..1 value for a future playback
// or encoding sink; nothing in the capture path reads samples or scales them by it.
type AudioTrack interface {
	Track
	SetGain(gain float64)
	Gain() float64
}

// StopAll stops every track and flattens the errors.
func StopAll(tracks []Track) error {
	errs := make([]error, 0, len(tracks))
	for _, t := range tracks {
		if t == nil {
			continue
		}
		if err := t.Stop(); err != nil {
			errs = append(errs, errors.Wrapf(err, "failed to stop %s track %s", t.Kind(), t.ID()))
		}
	}
	return flow.FlattenErrors(errs...)
}

// ActiveTracks counts tracks that still hold hardware.
func ActiveTracks(tracks []Track) int {
	n := 0
	for _, t := range tracks {
		if t != nil && !t.Stopped() {
			n++
		}
	}
	return n
}
