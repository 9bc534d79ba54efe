// Package compositor runs the render cycle: every display refresh it segments the latest
// frame and composites the person over the selected background.
package compositor

import (
	"context"
	"image"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/liptakmatyas/opencv-playground/webcambg/internal/background"
	"github.com/liptakmatyas/opencv-playground/webcambg/internal/flow"
	"github.com/liptakmatyas/opencv-playground/webcambg/internal/segmentation"
	"github.com/liptakmatyas/opencv-playground/webcambg/internal/surface"
)

// Scheduler runs fn once, on a future display refresh. RequestFrame must not call fn
// synchronously.
type Scheduler interface {
	RequestFrame(fn func())
}

// Presenter receives the finished render target. It must not keep dst past the call.
type Presenter interface {
	Present(dst *image.RGBA)
}

type state int8

const (
	idle    state = 0
	running state = 1
)

func (s state) String() string {
	if s == running {
		return "RUNNING"
	}
	return "IDLE"
}

type Stats struct {
	Cycles               uint64
	Skipped              uint64
	Stale                uint64
	SegmentationFailures uint64
}

type Loop struct {
	logger    logrus.FieldLogger
	surface   *surface.Surface
	provider  *background.Provider
	scheduler Scheduler
	presenter Presenter
	active    func() bool

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	state     state
	segmenter segmentation.Segmenter
	cfg       segmentation.Config
	// inFlight is set from the moment a cycle is requested until a cycle finishes without
	// requesting another; it keeps a single cycle alive across Idle/Running flips.
	inFlight bool
	closed   bool

	cycles   atomic.Uint64
	skipped  atomic.Uint64
	stale    atomic.Uint64
	failures atomic.Uint64

	errChan chan error
}

type Options struct {
	Surface   *surface.Surface
	Provider  *background.Provider
	Scheduler Scheduler
	Presenter Presenter
	// SessionActive reports whether a capture session is bound.
	SessionActive func() bool
	Config        segmentation.Config
}

func NewLoop(opts Options, logger logrus.FieldLogger) *Loop {
	ctx, cancel := context.WithCancel(context.Background())

	return &Loop{
		logger:    logger.WithField("component", "compositor"),
		surface:   opts.Surface,
		provider:  opts.Provider,
		scheduler: opts.Scheduler,
		presenter: opts.Presenter,
		active:    opts.SessionActive,
		ctx:       ctx,
		cancel:    cancel,
		state:     idle,
		cfg:       opts.Config,
		errChan:   make(chan error, 1),
	}
}

// Err reports segmentation failures. Nothing blocks on it.
func (l *Loop) Err() <-chan error {
	return l.errChan
}

func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.state == running
}

func (l *Loop) Stats() Stats {
	return Stats{
		Cycles:               l.cycles.Load(),
		Skipped:              l.skipped.Load(),
		Stale:                l.stale.Load(),
		SegmentationFailures: l.failures.Load(),
	}
}

// SetSegmenter marks the model as initialised.
func (l *Loop) SetSegmenter(seg segmentation.Segmenter) {
	l.mu.Lock()
	l.segmenter = seg
	l.mu.Unlock()

	l.Evaluate()
}

// SetConfig takes effect from the next cycle.
func (l *Loop) SetConfig(cfg segmentation.Config) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cfg = cfg
}

func (l *Loop) Config() segmentation.Config {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.cfg
}

// Evaluate re-derives the loop state. The loop runs only while a segmenter is set, a session
// is active and the surface is ready.
func (l *Loop) Evaluate() {
	l.mu.Lock()
	defer l.mu.Unlock()

	next := idle
	if !l.closed && l.segmenter != nil && l.active() && l.surface.Ready() {
		next = running
	}
	if next == l.state {
		return
	}

	l.logger.Debugf("Switching from state '%s' to state '%s' ...", l.state, next)
	l.state = next

	if next == running && !l.inFlight {
		l.inFlight = true
		l.scheduler.RequestFrame(l.cycle)
	}
}

// Close stops the loop for good; a cycle waiting on the model is cancelled.
func (l *Loop) Close() {
	l.mu.Lock()
	l.closed = true
	l.state = idle
	l.mu.Unlock()

	l.cancel()
}

func (l *Loop) cycle() {
	l.mu.Lock()
	if l.state != running {
		l.inFlight = false
		l.mu.Unlock()
		return
	}
	seg := l.segmenter
	cfg := l.cfg
	l.mu.Unlock()

	l.render(seg, cfg)

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != running {
		l.inFlight = false
		return
	}
	l.scheduler.RequestFrame(l.cycle)
}

func (l *Loop) render(seg segmentation.Segmenter, cfg segmentation.Config) {
	view := l.surface.Snapshot()
	size := view.FrameSize()
	if !view.Ready || view.Target == nil || size.X == 0 || size.Y == 0 {
		l.skipped.Add(1)
		return
	}

	// Anything changed from here on is picked up by the next cycle.
	selection := l.provider.Selection()

	result, segErr := seg.Segment(l.ctx, view.Frame, cfg)
	if segErr == nil {
		switch {
		case result == nil || result.Mask == nil:
			segErr = errors.New("segmenter returned no mask")
		case result.Mask.Bounds().Size() != size:
			segErr = errors.Errorf("mask is %v, frame is %v", result.Mask.Bounds().Size(), size)
		}
	}

	if !l.surface.Current(view.Gen) {
		// The source was unbound (or replaced) while the model was running.
		l.stale.Add(1)
		return
	}

	var mask *image.Alpha
	if segErr != nil {
		l.failures.Add(1)
		segErr = errors.Wrap(segErr, "segmentation failed")
		l.logger.WithError(segErr).Warnf("Rendering background only.")
		flow.Report(l.errChan, segErr)
	} else {
		mask = result.Mask
	}

	target := view.Target
	Composite(target, view.Frame, mask, background.Resolve(selection, target.Bounds().Size()))
	l.presenter.Present(target)
	l.cycles.Add(1)
}
