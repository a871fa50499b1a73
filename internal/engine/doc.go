// Package engine implements the real-time joint command loop.
//
// The engine ticks at a fixed period, evaluates a trajectory strategy at the
// current virtual time, and publishes exactly one command per tick on the
// bus. Startup is gated until the output topic has a subscriber, and shutdown
// is coordinated through a single-assignment completion signal.
//
// ARCHITECTURE:
//
// Single-Writer Run Loop:
// Run executes in exactly one goroutine. The clock, the strategy state and
// the publisher are only touched from that goroutine, so a tick is strictly
// sequential: advance clock, evaluate, validate, publish. An overrunning tick
// delays the next one; missed ticks are dropped, never replayed in a burst.
//
// Lifecycle:
//
//	Initializing -> Running -> Terminating -> Terminated
//
// An interrupt or gate timeout before the first tick goes straight from
// Initializing to Terminating. Terminating always reaches Terminated once
// the ticker and the publisher are released.
//
// CRITICAL PATTERNS:
//
// Virtual Time:
// Elapsed time is derived from the tick count (k*dt in integer nanoseconds),
// never from measured wall-clock deltas and never by accumulating floats.
//
// First Write Wins:
// The completion signal is written once. Later writes are rejected with
// COMPLETION_CONFLICT and never overwrite the stored reason.
package engine
