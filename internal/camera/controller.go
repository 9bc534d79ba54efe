// Package camera owns the capture session: it starts and stops the hardware and attaches the
// live video to the frame surface.
package camera

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/liptakmatyas/opencv-playground/webcambg/internal/capture"
	"github.com/liptakmatyas/opencv-playground/webcambg/internal/settings"
	"github.com/liptakmatyas/opencv-playground/webcambg/internal/surface"
)

type Controller struct {
	device      capture.Device
	constraints capture.Constraints
	surface     *surface.Surface
	settings    *settings.Settings
	logger      logrus.FieldLogger

	// opMu serialises Start and Stop so that at most one session is ever bound.
	opMu sync.Mutex

	mu       sync.Mutex
	session  capture.Session
	onChange []func()
}

func NewController(
	device capture.Device,
	constraints capture.Constraints,
	surface *surface.Surface,
	settings *settings.Settings,
	logger logrus.FieldLogger,
) *Controller {
	return &Controller{
		device:      device,
		constraints: constraints,
		surface:     surface,
		settings:    settings,
		logger:      logger.WithField("component", "camera"),
	}
}

// OnChange registers fn to run after every session bind and unbind.
func (c *Controller) OnChange(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.onChange = append(c.onChange, fn)
}

func (c *Controller) Session() capture.Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.session
}

func (c *Controller) Active() bool {
	return c.Session() != nil
}

// Start acquires the camera and microphone and binds them as the live source. Starting an
// active controller is a no-op. Failures leave the controller off and are returned as
// *capture.AcquisitionError; Start may simply be called again.
func (c *Controller) Start(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	return c.startLocked(ctx)
}

func (c *Controller) startLocked(ctx context.Context) error {
	if c.Active() {
		return nil
	}

	logger := c.logger
	logger.Debugf("Acquiring capture session ...")

	s, err := c.device.Open(ctx, c.constraints)
	if err != nil {
		var acqErr *capture.AcquisitionError
		if !errors.As(err, &acqErr) {
			err = capture.NewAcquisitionError("camera", err)
		}
		logger.WithError(err).Warnf("Camera start failed.")
		return err
	}

	video := s.Video()
	if video == nil {
		_ = s.Close()
		err := capture.NewAcquisitionError(s.ID(), capture.ErrNoVideoTrack)
		logger.WithError(err).Warnf("Camera start failed.")
		return err
	}

	if audio := s.Audio(); audio != nil {
		audio.SetGain(c.settings.Volume())
	}

	c.mu.Lock()
	c.session = s
	c.mu.Unlock()

	c.surface.Bind(video)
	c.settings.SetCameraOn(true)

	logger.WithField("session", s.ID()).Infof("Camera started.")
	c.notify()
	return nil
}

// Stop releases every track of the active session. Stopping an inactive controller is a no-op.
func (c *Controller) Stop() error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	return c.stopLocked()
}

func (c *Controller) stopLocked() error {
	s := c.Session()
	if s == nil {
		return nil
	}

	c.surface.Unbind()
	err := s.Close()

	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()

	c.settings.SetCameraOn(false)
	c.notify()

	if err != nil {
		c.logger.WithField("session", s.ID()).WithError(err).Errorf("Capture session release failed")
		return errors.Wrap(err, "failed to release capture session")
	}

	c.logger.WithField("session", s.ID()).Infof("Camera stopped.")
	return nil
}

// Toggle decides between Start and Stop only once any start or stop in progress is done, so
// a click made while the camera is still being acquired stops it.
func (c *Controller) Toggle(ctx context.Context) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if c.Active() {
		return c.stopLocked()
	}
	return c.startLocked(ctx)
}

// SetVolume stores the clamped volume and hands it to the live audio track, if any, as its
// gain value.
func (c *Controller) SetVolume(volume float64) float64 {
	volume = c.settings.SetVolume(volume)

	if s := c.Session(); s != nil {
		if audio := s.Audio(); audio != nil {
			audio.SetGain(volume)
		}
	}
	return volume
}

func (c *Controller) notify() {
	c.mu.Lock()
	listeners := append([]func(){}, c.onChange...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}
