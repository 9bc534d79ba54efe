package capture

import (
	"math"
	"time"
)

// MaxPacedFPS bounds the rate a recorded source reports; anything above is treated as unknown.
const MaxPacedFPS = 240.0

// Pacer holds reads from a recorded source (file, stream URL) back to its nominal frame rate.
// Live devices block on the hardware and need none. A Pacer is used by a single reader.
type Pacer struct {
	interval time.Duration
	next     time.Time

	now   func() time.Time
	sleep func(time.Duration)
}

// NewPacer paces to fps. A zero, negative or implausible fps yields a Pacer that never waits.
func NewPacer(fps float64) *Pacer {
	p := &Pacer{now: time.Now, sleep: time.Sleep}
	if fps > 0 && fps <= MaxPacedFPS && !math.IsNaN(fps) {
		p.interval = time.Duration(float64(time.Second) / fps)
	}
	return p
}

func (p *Pacer) Interval() time.Duration {
	return p.interval
}

// Wait blocks until the next frame is due. A reader that falls more than one frame behind
// restarts the schedule instead of bursting to catch up.
func (p *Pacer) Wait() {
	if p.interval <= 0 {
		return
	}

	now := p.now()
	if p.next.IsZero() || now.Sub(p.next) > p.interval {
		p.next = now
	}
	if d := p.next.Sub(now); d > 0 {
		p.sleep(d)
	}
	p.next = p.next.Add(p.interval)
}
