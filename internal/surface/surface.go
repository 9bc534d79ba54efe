// Package surface pairs the live video source with the render target the compositor draws
// into, and keeps the two dimensionally in sync.
package surface

import (
	"context"
	"image"
	"sync"

	"github.com/sirupsen/logrus"
)

// View is a consistent snapshot of the surface taken at the start of a render cycle.
type View struct {
	Ready  bool
	Gen    uint64
	Frame  image.Image
	Target *image.RGBA
}

// FrameSize reports the dimensions of the captured frame, zero if there is none yet.
func (v View) FrameSize() image.Point {
	if v.Frame == nil {
		return image.Point{}
	}
	return v.Frame.Bounds().Size()
}

type Surface struct {
	logger logrus.FieldLogger

	mu      sync.Mutex
	gen     uint64
	bound   bool
	ready   bool
	frame   image.Image
	target  *image.RGBA
	cancel  context.CancelFunc
	onReady []func()

	errChan chan error
}

func New(logger logrus.FieldLogger) *Surface {
	return &Surface{
		logger:  logger.WithField("component", "surface"),
		errChan: make(chan error, 1),
	}
}

// OnReady registers fn to run every time the render target gets synced to a new source.
func (s *Surface) OnReady(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.onReady = append(s.onReady, fn)
}

// Err reports frame pump failures. Nothing blocks on it.
func (s *Surface) Err() <-chan error {
	return s.errChan
}

func (s *Surface) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ready
}

func (s *Surface) Bound() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.bound
}

func (s *Surface) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	return View{
		Ready:  s.ready,
		Gen:    s.gen,
		Frame:  s.frame,
		Target: s.target,
	}
}

// Current reports whether gen still names the bound, ready source.
func (s *Surface) Current(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.bound && s.ready && s.gen == gen
}

// OnMetadataReady sizes the render target to exactly (width, height) and marks the surface
// ready. It takes effect once per bound source; zero dimensions and repeated calls are ignored.
func (s *Surface) OnMetadataReady(width, height int) bool {
	s.mu.Lock()
	return s.metadataReadyLocked(s.gen, width, height)
}

// metadataReadyLocked is entered with s.mu held and releases it.
func (s *Surface) metadataReadyLocked(gen uint64, width, height int) bool {
	if !s.bound || s.ready || s.gen != gen || width <= 0 || height <= 0 {
		s.mu.Unlock()
		return false
	}

	s.target = image.NewRGBA(image.Rect(0, 0, width, height))
	s.ready = true
	listeners := append([]func(){}, s.onReady...)
	s.mu.Unlock()

	s.logger.WithField("gen", gen).Debugf("Render target synced to %dx%d.", width, height)
	for _, fn := range listeners {
		fn()
	}
	return true
}
