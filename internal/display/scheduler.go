package display

import (
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"github.com/sirupsen/logrus"
)

// AnimationScheduler runs requested callbacks on the next tick of a never-ending fyne
// animation, which the driver advances once per painted frame.
type AnimationScheduler struct {
	logger logrus.FieldLogger
	anim   *fyne.Animation

	mu      sync.Mutex
	pending []func()
}

func NewAnimationScheduler(logger logrus.FieldLogger) *AnimationScheduler {
	s := &AnimationScheduler{
		logger: logger.WithField("component", "scheduler"),
	}

	s.anim = fyne.NewAnimation(time.Second, func(float32) { s.Fire() })
	s.anim.Curve = fyne.AnimationLinear
	s.anim.RepeatCount = fyne.AnimationRepeatForever
	return s
}

func (s *AnimationScheduler) Start() {
	s.logger.Debugf("Starting display ticks.")
	s.anim.Start()
}

func (s *AnimationScheduler) Stop() {
	s.logger.Debugf("Stopping display ticks.")
	s.anim.Stop()
}

// RequestFrame queues fn for the next tick.
func (s *AnimationScheduler) RequestFrame(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = append(s.pending, fn)
	if len(s.pending) > 1 {
		s.logger.Warnf("%d callbacks waiting for the same tick.", len(s.pending))
	}
}

// Fire hands the queued callbacks to a goroutine so the paint thread never waits on a
// render cycle. It reports whether there was anything to run.
func (s *AnimationScheduler) Fire() bool {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	s.mu.Unlock()

	if len(pending) == 0 {
		return false
	}

	go func() {
		for _, fn := range pending {
			fn()
		}
	}()
	return true
}
