// Package capturetest provides in-memory capture devices for tests.
package capturetest

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"

	"github.com/liptakmatyas/opencv-playground/webcambg/internal/capture"
)

// Device hands out fake sessions. Set OpenErr to make the next Open calls fail, OpenHook to
// hold Open while it is acquiring.
type Device struct {
	mu       sync.Mutex
	OpenErr  error
	NoAudio  bool
	OpenHook func()
	sessions []*Session
}

var _ capture.Device = &Device{}

func (d *Device) Open(ctx context.Context, _ capture.Constraints) (capture.Session, error) {
	if d.OpenHook != nil {
		d.OpenHook()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, capture.NewAcquisitionError("fake", err)
	}
	if d.OpenErr != nil {
		return nil, capture.NewAcquisitionError("fake", d.OpenErr)
	}

	n := len(d.sessions) + 1
	s := &Session{
		id:    fmt.Sprintf("session-%d", n),
		video: NewVideoTrack(fmt.Sprintf("video-%d", n)),
	}
	if !d.NoAudio {
		s.audio = NewAudioTrack(fmt.Sprintf("audio-%d", n))
	}
	d.sessions = append(d.sessions, s)
	return s, nil
}

func (d *Device) SetOpenErr(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.OpenErr = err
}

func (d *Device) Sessions() []*Session {
	d.mu.Lock()
	defer d.mu.Unlock()

	return append([]*Session{}, d.sessions...)
}

// ActiveTracks counts tracks across every session ever opened that were never stopped.
func (d *Device) ActiveTracks() int {
	n := 0
	for _, s := range d.Sessions() {
		n += capture.ActiveTracks(s.Tracks())
	}
	return n
}

// ActiveSessions counts sessions with at least one live track.
func (d *Device) ActiveSessions() int {
	n := 0
	for _, s := range d.Sessions() {
		if capture.ActiveTracks(s.Tracks()) > 0 {
			n++
		}
	}
	return n
}

type Session struct {
	id    string
	video *VideoTrack
	audio *AudioTrack
}

func (s *Session) ID() string                { return s.id }
func (s *Session) Video() capture.VideoTrack { return s.video }
func (s *Session) FakeVideo() *VideoTrack    { return s.video }
func (s *Session) FakeAudio() *AudioTrack    { return s.audio }

func (s *Session) Audio() capture.AudioTrack {
	if s.audio == nil {
		return nil
	}
	return s.audio
}

func (s *Session) Tracks() []capture.Track {
	tracks := []capture.Track{s.video}
	if s.audio != nil {
		tracks = append(tracks, s.audio)
	}
	return tracks
}

func (s *Session) Close() error {
	return capture.StopAll(s.Tracks())
}

type track struct {
	id   string
	kind capture.Kind

	mu      sync.Mutex
	stopped bool
	done    chan struct{}
}

func newTrack(id string, kind capture.Kind) track {
	return track{id: id, kind: kind, done: make(chan struct{})}
}

func (t *track) ID() string         { return t.id }
func (t *track) Kind() capture.Kind { return t.kind }

func (t *track) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.stopped
}

func (t *track) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.stopped {
		t.stopped = true
		close(t.done)
	}
	return nil
}

// VideoTrack delivers the frames pushed into it, in order.
type VideoTrack struct {
	track
	frames chan image.Image
}

func NewVideoTrack(id string) *VideoTrack {
	return &VideoTrack{
		track:  newTrack(id, capture.KindVideo),
		frames: make(chan image.Image, 16),
	}
}

func (t *VideoTrack) Push(img image.Image) {
	t.frames <- img
}

func (t *VideoTrack) ReadFrame() (image.Image, error) {
	select {
	case <-t.done:
		return nil, capture.ErrTrackStopped
	case img := <-t.frames:
		return img, nil
	}
}

type AudioTrack struct {
	track
	gain *capture.Gain
}

func NewAudioTrack(id string) *AudioTrack {
	return &AudioTrack{
		track: newTrack(id, capture.KindAudio),
		gain:  capture.NewGain(1),
	}
}

func (t *AudioTrack) SetGain(gain float64) { t.gain.Set(gain) }
func (t *AudioTrack) Gain() float64        { return t.gain.Get() }

// Solid returns a w x h frame filled with c.
func Solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}
