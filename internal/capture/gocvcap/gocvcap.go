// Package gocvcap captures frames through OpenCV. The source can be a device ID, a file name,
// a URL, etc.; see https://pkg.go.dev/gocv.io/x/gocv#OpenVideoCapture
//
// OpenCV has no microphone support, so sessions carry a video track only.
package gocvcap

import (
	"context"
	"image"
	"io"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"github.com/segmentio/ksuid"
	"github.com/sirupsen/logrus"
	"gocv.io/x/gocv"

	"github.com/liptakmatyas/opencv-playground/webcambg/internal/capture"
	"github.com/liptakmatyas/opencv-playground/webcambg/internal/flow"
)

type Device struct {
	sourceId string
	logger   logrus.FieldLogger
}

var _ capture.Device = &Device{}

func NewDevice(sourceId string, logger logrus.FieldLogger) *Device {
	return &Device{
		sourceId: sourceId,
		logger:   logger.WithField("component", "gocvcap"),
	}
}

func (d *Device) Open(ctx context.Context, c capture.Constraints) (capture.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, capture.NewAcquisitionError(d.sourceId, err)
	}

	// NOTE: This turns on the video capture.
	//  If the source is a (web) camera, then the camera starts recording and its status LED
	//  should turn on.
	videoCapture, err := gocv.OpenVideoCapture(d.sourceId)
	if err != nil {
		d.logger.WithError(err).Errorf("OpenVideoCapture failed")
		return nil, capture.NewAcquisitionError(d.sourceId, err)
	}

	if !videoCapture.IsOpened() {
		_ = videoCapture.Close()
		return nil, capture.NewAcquisitionError(d.sourceId, errors.New("device busy or not available"))
	}

	if c.Width > 0 && c.Height > 0 {
		videoCapture.Set(gocv.VideoCaptureFrameWidth, float64(c.Width))
		videoCapture.Set(gocv.VideoCaptureFrameHeight, float64(c.Height))
	}

	// Devices deliver frames at their own rate; files and URLs decode as fast as they are read.
	fps := 0.0
	if _, err := strconv.Atoi(d.sourceId); err != nil {
		fps = videoCapture.Get(gocv.VideoCaptureFPS)
	}
	pacer := capture.NewPacer(fps)

	s := &session{
		id: ksuid.New().String(),
		video: &videoTrack{
			id:           ksuid.New().String(),
			pacer:        pacer,
			videoCapture: videoCapture,
			frameBuffer:  gocv.NewMat(),
		},
	}
	d.logger.
		WithField("session", s.id).
		WithField("pacing", pacer.Interval()).
		Infof("Opened video capture '%s'.", d.sourceId)

	return s, nil
}

type session struct {
	id    string
	video *videoTrack
}

func (s *session) ID() string                { return s.id }
func (s *session) Video() capture.VideoTrack { return s.video }
func (s *session) Audio() capture.AudioTrack { return nil }
func (s *session) Tracks() []capture.Track   { return []capture.Track{s.video} }
func (s *session) Close() error              { return capture.StopAll(s.Tracks()) }

type videoTrack struct {
	id    string
	pacer *capture.Pacer

	mu           sync.Mutex
	stopped      bool
	videoCapture *gocv.VideoCapture
	frameBuffer  gocv.Mat
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
	defer t.mu.Unlock()

	if t.stopped {
		return nil
	}
	t.stopped = true

	return flow.FlattenErrors(
		errors.Wrap(t.videoCapture.Close(), "video capture source teardown error"),
		errors.Wrap(t.frameBuffer.Close(), "video capture frame buffer teardown error"),
	)
}

func (t *videoTrack) ReadFrame() (image.Image, error) {
	// Outside the lock so Stop never waits for a frame slot.
	t.pacer.Wait()

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return nil, capture.ErrTrackStopped
	}

	if ok := t.videoCapture.Read(&t.frameBuffer); !ok {
		return nil, io.EOF
	}

	// NOTE: The frame may be empty while the camera negotiates its format.
	if t.frameBuffer.Empty() {
		return image.NewRGBA(image.Rectangle{}), nil
	}

	img, err := t.frameBuffer.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "failed to convert raw frame")
	}

	return img, nil
}
