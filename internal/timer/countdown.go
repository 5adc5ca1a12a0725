package timer

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Countdown is a restartable one-shot timer. Every Start opens a new
// generation; the expiry callback receives the generation it was armed with
// so that owners can drop expiries that lost a race with Reset or Start.
type Countdown struct {
	mu       sync.Mutex
	clk      clock.Clock
	onExpire func(gen uint64)

	gen      uint64
	running  bool
	duration time.Duration
	deadline time.Time
	timer    *clock.Timer
}

func New(clk clock.Clock, onExpire func(gen uint64)) *Countdown {
	if clk == nil {
		clk = clock.New()
	}
	return &Countdown{clk: clk, onExpire: onExpire}
}

// Start cancels any running cadence and counts down d from the full duration.
func (c *Countdown) Start(d time.Duration) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	c.gen++
	gen := c.gen
	c.running = true
	c.duration = d
	c.deadline = c.clk.Now().Add(d)
	c.timer = c.clk.AfterFunc(d, func() { c.fire(gen) })
	return gen
}

// Reset stops the countdown without invoking the callback.
func (c *Countdown) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	c.gen++
	c.running = false
	c.deadline = time.Time{}
}

func (c *Countdown) stopLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Countdown) fire(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.timer = nil
	c.deadline = c.clk.Now()
	c.mu.Unlock()

	if c.onExpire != nil {
		c.onExpire(gen)
	}
}

func (c *Countdown) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

func (c *Countdown) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// Remaining is the time left on a running countdown. Idle countdowns report
// the full duration of the last Start, or zero once they have expired.
func (c *Countdown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		if c.deadline.IsZero() {
			return c.duration
		}
		return 0
	}
	left := c.deadline.Sub(c.clk.Now())
	if left < 0 {
		return 0
	}
	return left
}

// RemainingSeconds rounds Remaining up to whole seconds, which is what the
// turn clock shows: 92 right after a start, 91 one second later.
func (c *Countdown) RemainingSeconds() int {
	left := c.Remaining()
	secs := int(left / time.Second)
	if left%time.Second != 0 {
		secs++
	}
	return secs
}
