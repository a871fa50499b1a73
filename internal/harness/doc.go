// Package harness runs scripted engine scenarios and checks them against
// expectations and golden traces.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: linear_interrupt
//	description: "Linear motion stopped by an interrupt"
//	spec: ../specs/pan_tilt.cue      # relative to the scenario file
//	trajectory: pan_tilt             # optional when the file has one trajectory
//	run_id: test-run-linear          # optional, defaults to test-run-default
//	subscribers: 1                   # optional, defaults to 1
//	ticks: 3                         # ticks to deliver
//	complete_at: { tick: 2, reason: "Operator stop" }
//	interrupt_at: 3
//	expect:
//	  reason: Interrupted
//	  ticks: 3
//	  published: 3
//	  received: 3
//	  final_t: 0.02
//	  states: [Initializing, Running, Terminating, Terminated]
//
// complete_at and interrupt_at fire after the given number of ticks has been
// processed; 0 fires before the first tick. A scenario whose ticks run out
// while the engine is still Running ends with an interrupt.
//
// # Deterministic Execution
//
// Ticks come from testutil.ManualTicker, which only returns once the engine
// has finished the tick, so a trace depends on the scenario alone. The run id
// is fixed and the clock epoch is Epoch. Every subscriber's stream is
// counted, and the first one is written to an in-memory store and read back
// before its digest is taken.
//
// # Golden Traces
//
// RunWithGolden compares the canonical trace (one canonical JSON object per
// line) with testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
