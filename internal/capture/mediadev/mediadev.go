// Package mediadev acquires the camera and the microphone together, the way a browser's
// getUserMedia does, through pion/mediadevices.
package mediadev

import (
	"context"
	"image"
	"sync"

	"github.com/pion/mediadevices"
	_ "github.com/pion/mediadevices/pkg/driver/camera"     // registers the camera adapter
	_ "github.com/pion/mediadevices/pkg/driver/microphone" // registers the microphone adapter
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/io/video"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pkg/errors"
	"github.com/segmentio/ksuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"

	"github.com/liptakmatyas/opencv-playground/webcambg/internal/capture"
	"github.com/liptakmatyas/opencv-playground/webcambg/internal/flow"
)

const sourceName = "mediadevices"

type getUserMediaFunc func(mediadevices.MediaStreamConstraints) (mediadevices.MediaStream, error)

type Device struct {
	getUserMedia getUserMediaFunc
	logger       logrus.FieldLogger
}

var _ capture.Device = &Device{}

func NewDevice(logger logrus.FieldLogger) *Device {
	return &Device{
		getUserMedia: mediadevices.GetUserMedia,
		logger:       logger.WithField("component", "mediadev"),
	}
}

func (d *Device) Open(ctx context.Context, c capture.Constraints) (capture.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, capture.NewAcquisitionError(sourceName, err)
	}

	constraints := mediadevices.MediaStreamConstraints{
		Video: func(mc *mediadevices.MediaTrackConstraints) {
			mc.FrameFormat = prop.FrameFormatOneOf{frame.FormatI420, frame.FormatYUY2, frame.FormatMJPEG}
			if c.Width > 0 && c.Height > 0 {
				mc.Width = prop.Int(c.Width)
				mc.Height = prop.Int(c.Height)
			}
		},
	}
	if c.Audio {
		constraints.Audio = func(*mediadevices.MediaTrackConstraints) {}
	}

	stream, err := d.getUserMedia(constraints)
	if err != nil {
		d.logger.WithError(err).Errorf("GetUserMedia failed")
		return nil, capture.NewAcquisitionError(sourceName, err)
	}

	s := &session{id: ksuid.New().String()}
	for _, t := range stream.GetVideoTracks() {
		if vt, ok := t.(*mediadevices.VideoTrack); ok && s.video == nil {
			s.video = newVideoTrack(vt)
			continue
		}
		s.extra = append(s.extra, t)
	}
	for _, t := range stream.GetAudioTracks() {
		if s.audio == nil {
			s.audio = &audioTrack{id: t.ID(), track: t, gain: capture.NewGain(1)}
			continue
		}
		s.extra = append(s.extra, t)
	}

	if s.video == nil {
		_ = s.Close()
		return nil, capture.NewAcquisitionError(sourceName, capture.ErrNoVideoTrack)
	}

	d.logger.
		WithField("session", s.id).
		WithField("audio", s.audio != nil).
		Infof("Acquired media stream.")

	return s, nil
}

type session struct {
	id    string
	video *videoTrack
	audio *audioTrack
	// Tracks beyond the first of each kind; only kept to be released.
	extra []mediadevices.Track
}

func (s *session) ID() string { return s.id }

func (s *session) Video() capture.VideoTrack {
	if s.video == nil {
		return nil
	}
	return s.video
}

func (s *session) Audio() capture.AudioTrack {
	if s.audio == nil {
		return nil
	}
	return s.audio
}

func (s *session) Tracks() []capture.Track {
	tracks := make([]capture.Track, 0, 2)
	if s.video != nil {
		tracks = append(tracks, s.video)
	}
	if s.audio != nil {
		tracks = append(tracks, s.audio)
	}
	return tracks
}

func (s *session) Close() error {
	errs := []error{capture.StopAll(s.Tracks())}
	for _, t := range s.extra {
		errs = append(errs, errors.Wrapf(t.Close(), "failed to close track %s", t.ID()))
	}
	s.extra = nil
	return flow.FlattenErrors(errs...)
}

type videoTrack struct {
	id     string
	track  *mediadevices.VideoTrack
	reader video.Reader

	mu      sync.Mutex
	stopped bool
}

func newVideoTrack(t *mediadevices.VideoTrack) *videoTrack {
	return &videoTrack{
		id:     t.ID(),
		track:  t,
		reader: t.NewReader(false),
	}
}

func (t *videoTrack) ID() string         { return t.id }
func (t *videoTrack) Kind() capture.Kind { return capture.KindVideo }

func (t *videoTrack) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.stopped
}

func (t *videoTrack) Stop() error {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return nil
	}
	t.stopped = true
	t.mu.Unlock()

	// Closing unblocks a pending Read.
	return t.track.Close()
}

func (t *videoTrack) ReadFrame() (image.Image, error) {
	if t.Stopped() {
		return nil, capture.ErrTrackStopped
	}

	img, release, err := t.reader.Read()
	if err != nil {
		if t.Stopped() {
			return nil, capture.ErrTrackStopped
		}
		return nil, errors.Wrap(err, "failed to read video frame")
	}
	defer release()

	// The driver recycles its buffer once released.
	b := img.Bounds()
	owned := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(owned, owned.Bounds(), img, b.Min, draw.Src)

	return owned, nil
}

// audioTrack keeps the microphone acquired alongside the camera. Its samples are never read;
// the gain is stored for whatever sink consumes the track.
type audioTrack struct {
	id    string
	track mediadevices.Track
	gain  *capture.Gain

	mu      sync.Mutex
	stopped bool
}

func (t *audioTrack) ID() string           { return t.id }
func (t *audioTrack) Kind() capture.Kind   { return capture.KindAudio }
func (t *audioTrack) SetGain(gain float64) { t.gain.Set(gain) }
func (t *audioTrack) Gain() float64        { return t.gain.Get() }

func (t *audioTrack) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.stopped
}

func (t *audioTrack) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return nil
	}
	t.stopped = true

	return t.track.Close()
}
