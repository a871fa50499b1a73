package engine

import (
	"sync/atomic"
	"time"

	"github.com/roach88/jointstream/internal/ir"
)

// VirtualClock is the run's notion of elapsed time.
//
// Before the first Advance the clock reads -dt, so the first tick publishes
// t = 0. After k advances Now() == -dt + k*dt exactly; the value is computed
// from the tick count in integer nanoseconds, so there is no drift however
// long the run.
//
// Thread-safety: Advance is called only from the Run loop. Readers (status
// endpoint, tests) may call the accessors concurrently.
type VirtualClock struct {
	dt    time.Duration
	epoch time.Time
	ticks atomic.Int64
}

// NewVirtualClock creates a clock with period dt whose t = 0 corresponds to
// the wall-clock instant epoch.
func NewVirtualClock(dt time.Duration, epoch time.Time) *VirtualClock {
	return &VirtualClock{dt: dt, epoch: epoch}
}

// Advance moves the clock forward by exactly one period and returns the new
// tick count.
func (c *VirtualClock) Advance() int64 {
	return c.ticks.Add(1)
}

// Ticks returns the number of advances so far.
func (c *VirtualClock) Ticks() int64 {
	return c.ticks.Load()
}

// Period returns dt.
func (c *VirtualClock) Period() time.Duration {
	return c.dt
}

// Advanced returns the total time advanced, k*dt.
func (c *VirtualClock) Advanced() time.Duration {
	return time.Duration(c.ticks.Load()) * c.dt
}

// Now returns the current virtual time, -dt + k*dt.
func (c *VirtualClock) Now() time.Duration {
	return time.Duration(c.ticks.Load()-1) * c.dt
}

// Seconds returns Now as floating point seconds for strategy evaluation.
func (c *VirtualClock) Seconds() float64 {
	return c.Now().Seconds()
}

// Stamp returns the wall-clock stamp of the current virtual time.
func (c *VirtualClock) Stamp() ir.Stamp {
	return ir.StampFromTime(c.epoch.Add(c.Now()))
}
