package bridge

import (
	"sync"
	"time"
)

// spinReserve is how much of the remaining frame budget is burned in
// a busy-wait instead of sleep. Sleeping the whole budget overshoots
// by a scheduler quantum; spinning recovers the tail.
const spinReserve = 2 * time.Millisecond

// Clock emulates the legacy timing utilities: a millisecond tick
// counter from subsystem start, a high-resolution counter, and a
// best-effort frame-rate pacer.
type Clock struct {
	epoch time.Time

	mu    sync.Mutex
	frame time.Time // end of the previous paced frame
}

func newClock() *Clock {
	return &Clock{epoch: time.Now()}
}

// Ticks returns milliseconds since the bridge started. Wraps after
// ~49 days, same as the legacy counter.
func (c *Clock) Ticks() uint32 {
	return uint32(time.Since(c.epoch) / time.Millisecond)
}

// Hires returns nanoseconds since the bridge started.
func (c *Clock) Hires() uint64 {
	return uint64(time.Since(c.epoch))
}

// SyncRate paces the caller to fps frames per second: sleep for most
// of the remaining frame budget, busy-wait the rest. Best effort
// only; a caller that overran its budget continues immediately and
// the schedule resets from now.
func (c *Clock) SyncRate(fps uint32) {
	if fps == 0 {
		return
	}
	period := time.Second / time.Duration(fps)
	now := time.Now()

	c.mu.Lock()
	target := c.frame.Add(period)
	if target.Before(now) {
		c.frame = now
		c.mu.Unlock()
		return
	}
	c.frame = target
	c.mu.Unlock()

	if wait := target.Sub(now) - spinReserve; wait > 0 {
		time.Sleep(wait)
	}
	for time.Now().Before(target) {
	}
}
