package matrix

import (
	"sync/atomic"
	"time"
)

// Clock is a monotonic millisecond source. Values wrap at 2^32; every
// consumer compares them with wrapping subtraction only.
type Clock interface {
	NowMillis() uint32
}

// MonotonicClock reads the system monotonic clock.
type MonotonicClock struct{}

var processStart = time.Now()

// goMillis is the portable fallback based on the runtime monotonic clock.
func goMillis() uint32 {
	return uint32(time.Since(processStart) / time.Millisecond)
}

// ManualClock is a Clock advanced explicitly by its owner. It is safe for
// concurrent use.
type ManualClock struct {
	now atomic.Uint32
}

func NewManualClock(start uint32) *ManualClock {
	c := &ManualClock{}
	c.now.Store(start)
	return c
}

func (c *ManualClock) NowMillis() uint32 { return c.now.Load() }

// Advance moves the clock forward by d (truncated to milliseconds) and
// returns the new time.
func (c *ManualClock) Advance(d time.Duration) uint32 {
	return c.now.Add(uint32(d / time.Millisecond))
}

// Set jumps the clock to ms.
func (c *ManualClock) Set(ms uint32) { c.now.Store(ms) }

// elapsed returns now-since with wraparound.
func elapsed(now, since uint32) uint32 { return now - since }

// reached reports whether now is at or past deadline, tolerating one
// wraparound between the two.
func reached(now, deadline uint32) bool { return int32(now-deadline) >= 0 }

// toMillis converts a duration to the clock's resolution, saturating at
// the uint32 range.
func toMillis(d time.Duration) uint32 {
	if d <= 0 {
		return 0
	}
	ms := d / time.Millisecond
	if ms > time.Duration(^uint32(0)) {
		return ^uint32(0)
	}
	return uint32(ms)
}
