package camera

import (
	"context"
	"image/color"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liptakmatyas/opencv-playground/webcambg/internal/capture"
	"github.com/liptakmatyas/opencv-playground/webcambg/internal/capture/capturetest"
	"github.com/liptakmatyas/opencv-playground/webcambg/internal/settings"
	"github.com/liptakmatyas/opencv-playground/webcambg/internal/surface"
)

type fixture struct {
	device   *capturetest.Device
	surface  *surface.Surface
	settings *settings.Settings
	ctrl     *Controller
	changes  int
}

func newFixture() *fixture {
	logger, _ := test.NewNullLogger()
	f := &fixture{
		device:   &capturetest.Device{},
		surface:  surface.New(logger),
		settings: settings.New(false, 0.5),
	}
	f.ctrl = NewController(f.device, capture.Constraints{Audio: true}, f.surface, f.settings, logger)
	f.ctrl.OnChange(func() { f.changes++ })
	return f
}

func TestStartBindsSession(t *testing.T) {
	f := newFixture()

	require.NoError(t, f.ctrl.Start(context.Background()))

	assert.True(t, f.ctrl.Active())
	assert.True(t, f.settings.CameraOn())
	assert.True(t, f.surface.Bound())
	assert.Equal(t, 1, f.changes)

	s := f.device.Sessions()[0]
	assert.Equal(t, 0.5, s.FakeAudio().Gain(), "current volume applied on bind")

	s.FakeVideo().Push(capturetest.Solid(4, 4, color.RGBA{A: 255}))
	require.Eventually(t, f.surface.Ready, time.Second, time.Millisecond)

	// Starting again is a no-op.
	require.NoError(t, f.ctrl.Start(context.Background()))
	assert.Len(t, f.device.Sessions(), 1)
}

func TestStartFailureIsRecoverable(t *testing.T) {
	f := newFixture()
	f.device.SetOpenErr(errors.New("permission denied"))

	err := f.ctrl.Start(context.Background())

	var acqErr *capture.AcquisitionError
	require.True(t, errors.As(err, &acqErr))
	assert.False(t, f.ctrl.Active())
	assert.False(t, f.settings.CameraOn())
	assert.False(t, f.surface.Bound())

	f.device.SetOpenErr(nil)
	require.NoError(t, f.ctrl.Start(context.Background()))
	assert.True(t, f.ctrl.Active())
}

func TestStartThenStopReleasesEverything(t *testing.T) {
	f := newFixture()

	require.NoError(t, f.ctrl.Start(context.Background()))
	require.NoError(t, f.ctrl.Stop())

	assert.Equal(t, 0, f.device.ActiveTracks())
	assert.False(t, f.ctrl.Active())
	assert.False(t, f.settings.CameraOn())
	assert.False(t, f.surface.Bound())
	assert.Equal(t, 2, f.changes)
}

func TestStopIsIdempotent(t *testing.T) {
	f := newFixture()
	require.NoError(t, f.ctrl.Start(context.Background()))

	require.NoError(t, f.ctrl.Stop())
	require.NoError(t, f.ctrl.Stop())

	assert.Equal(t, 2, f.changes, "second stop must not notify")
	assert.Equal(t, 0, f.device.ActiveTracks())

	// Stopping something never started is fine too.
	require.NoError(t, newFixture().ctrl.Stop())
}

func TestToggle(t *testing.T) {
	f := newFixture()

	require.NoError(t, f.ctrl.Toggle(context.Background()))
	assert.True(t, f.ctrl.Active())

	require.NoError(t, f.ctrl.Toggle(context.Background()))
	assert.False(t, f.ctrl.Active())
}

func TestToggleWhileStartingStopsTheCamera(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	f.device.OpenHook = func() {
		close(entered)
		<-release
	}

	started := make(chan error, 1)
	go func() { started <- f.ctrl.Start(ctx) }()
	<-entered

	toggled := make(chan error, 1)
	go func() { toggled <- f.ctrl.Toggle(ctx) }()

	// Give the click time to land while the device is still acquiring.
	time.Sleep(20 * time.Millisecond)
	close(release)

	require.NoError(t, <-started)
	require.NoError(t, <-toggled)
	assert.False(t, f.ctrl.Active())
	assert.Equal(t, 0, f.device.ActiveTracks())
	assert.Len(t, f.device.Sessions(), 1)
}

func TestRapidStartStopStartNeverBindsTwoSessions(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.ctrl.Start(ctx))
	require.NoError(t, f.ctrl.Stop())
	require.NoError(t, f.ctrl.Start(ctx))
	assert.Equal(t, 1, f.device.ActiveSessions())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_ = f.ctrl.Start(ctx)
			} else {
				_ = f.ctrl.Stop()
			}
		}(i)
	}
	wg.Wait()

	if f.ctrl.Active() {
		assert.Equal(t, 1, f.device.ActiveSessions())
	} else {
		assert.Equal(t, 0, f.device.ActiveSessions())
	}
}

func TestSetVolume(t *testing.T) {
	f := newFixture()
	assert.Equal(t, 0.25, f.ctrl.SetVolume(0.25), "volume stored while off")

	require.NoError(t, f.ctrl.Start(context.Background()))
	s := f.device.Sessions()[0]
	assert.Equal(t, 0.25, s.FakeAudio().Gain())

	assert.Equal(t, 1.0, f.ctrl.SetVolume(7))
	assert.Equal(t, 1.0, s.FakeAudio().Gain())
	assert.Equal(t, 1.0, f.settings.Volume())
}

func TestVolumeIsStoredAcrossSessions(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	require.NoError(t, f.ctrl.Start(ctx))
	f.ctrl.SetVolume(0.3)
	require.NoError(t, f.ctrl.Stop())

	first := f.device.Sessions()[0].FakeAudio()
	f.ctrl.SetVolume(0.8)
	assert.Equal(t, 0.3, first.Gain(), "a released track keeps its last value")

	require.NoError(t, f.ctrl.Start(ctx))
	assert.Equal(t, 0.8, f.device.Sessions()[1].FakeAudio().Gain())
}

func TestSessionWithoutAudio(t *testing.T) {
	f := newFixture()
	f.device.NoAudio = true

	require.NoError(t, f.ctrl.Start(context.Background()))
	assert.Nil(t, f.ctrl.Session().Audio())
	assert.Equal(t, 0.75, f.ctrl.SetVolume(0.75))
}
