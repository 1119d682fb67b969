package core

import (
	"sync/atomic"
	"time"
)

// Clock is the monotonic microsecond time source. The value wraps after
// about 71 minutes; all users compare with unsigned subtraction.
type Clock interface {
	Micros() uint32
}

// Delayer is the transmit-side busy-wait primitive
type Delayer interface {
	DelayMicros(us uint32)
}

// ClockFunc adapts a function to Clock
type ClockFunc func() uint32

func (f ClockFunc) Micros() uint32 { return f() }

// SystemClock reads the runtime monotonic clock
type SystemClock struct {
	boot time.Time
}

// NewSystemClock returns a clock counting from now
func NewSystemClock() *SystemClock {
	return &SystemClock{boot: time.Now()}
}

func (c *SystemClock) Micros() uint32 {
	return uint32(time.Since(c.boot).Microseconds())
}

// DelayMicros spins on the clock. Sleeping is far too coarse for pulse
// timing.
func (c *SystemClock) DelayMicros(us uint32) {
	start := c.Micros()
	for c.Micros()-start < us {
	}
}

// ManualClock is a Clock and Delayer driven by hand. Delays advance it
// instead of waiting, which makes whole transmissions instantaneous in
// tests and simulation.
type ManualClock struct {
	now atomic.Uint32
}

func (c *ManualClock) Micros() uint32 {
	return c.now.Load()
}

// Set moves the clock to an absolute time
func (c *ManualClock) Set(us uint32) {
	c.now.Store(us)
}

// Advance moves the clock forward and returns the new time
func (c *ManualClock) Advance(us uint32) uint32 {
	return c.now.Add(us)
}

func (c *ManualClock) DelayMicros(us uint32) {
	c.now.Add(us)
}
