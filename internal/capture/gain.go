package capture

import (
	"math"
	"sync/atomic"
)

// Gain is a lock free 0..1 volume value shared between the UI and an audio track. It is only
// stored; no sample is scaled by it.
type Gain struct {
	bits atomic.Uint64
}

func NewGain(v float64) *Gain {
	g := &Gain{}
	g.Set(v)
	return g
}

func (g *Gain) Set(v float64) {
	g.bits.Store(math.Float64bits(ClampGain(v)))
}

func (g *Gain) Get() float64 {
	return math.Float64frombits(g.bits.Load())
}

func ClampGain(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(v, 1))
}
