package capture

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct {
	t      time.Time
	sleeps []time.Duration
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) sleep(d time.Duration) {
	c.sleeps = append(c.sleeps, d)
	c.t = c.t.Add(d)
}

func pacerWithClock(fps float64) (*Pacer, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	p := NewPacer(fps)
	p.now = clock.now
	p.sleep = clock.sleep
	return p, clock
}

func TestPacerHoldsReadsToFrameRate(t *testing.T) {
	p, clock := pacerWithClock(25)
	assert.Equal(t, 40*time.Millisecond, p.Interval())

	start := clock.t
	for i := 0; i < 5; i++ {
		p.Wait()
	}

	// The first frame is due at once, then one every 40ms.
	assert.Equal(t, 160*time.Millisecond, clock.t.Sub(start))
	assert.Equal(t, []time.Duration{40 * time.Millisecond, 40 * time.Millisecond, 40 * time.Millisecond, 40 * time.Millisecond}, clock.sleeps)
}

func TestPacerAccountsForDecodeTime(t *testing.T) {
	p, clock := pacerWithClock(25)

	p.Wait()
	clock.t = clock.t.Add(15 * time.Millisecond)
	p.Wait()

	assert.Equal(t, []time.Duration{25 * time.Millisecond}, clock.sleeps)
}

func TestPacerDoesNotBurstAfterStall(t *testing.T) {
	p, clock := pacerWithClock(25)

	p.Wait()
	clock.t = clock.t.Add(time.Second)
	p.Wait()
	p.Wait()

	assert.Equal(t, []time.Duration{40 * time.Millisecond}, clock.sleeps)
}

func TestPacerWithoutKnownRateNeverWaits(t *testing.T) {
	for _, fps := range []float64{0, -1, math.NaN(), math.Inf(1), 1000} {
		p, clock := pacerWithClock(fps)
		p.Wait()
		p.Wait()

		assert.Zero(t, p.Interval(), "fps %v", fps)
		assert.Empty(t, clock.sleeps, "fps %v", fps)
	}
}
