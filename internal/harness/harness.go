package harness

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"sync"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/jointstream/internal/bus"
	"github.com/roach88/jointstream/internal/compiler"
	"github.com/roach88/jointstream/internal/engine"
	"github.com/roach88/jointstream/internal/ir"
	"github.com/roach88/jointstream/internal/store"
	"github.com/roach88/jointstream/internal/testutil"
	"github.com/roach88/jointstream/internal/trajectory"
)

// Epoch is the wall-clock instant every scenario's t = 0 maps to.
var Epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// Run executes a scenario and returns the result.
//
// Each scenario runs on a fresh bus and a fresh in-memory store.
// Execution flow:
//  1. Compile and validate the trajectory from scenario.Spec
//  2. Attach subscribers, start the engine and wait until it is Running
//  3. Deliver ticks, firing complete_at / interrupt_at on schedule
//  4. Drain subscribers, round-trip the first stream through the store
//  5. Evaluate expectations
//
// An error is returned only when the scenario cannot be executed; failed
// expectations are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	spec, err := loadTrajectory(scenario.Spec, scenario.Trajectory)
	if err != nil {
		return nil, err
	}
	subs := scenario.SubscriberCount()
	if subs == 0 && spec.Gate.Timeout == 0 && scenario.InterruptAt == nil && scenario.CompleteAt == nil {
		return nil, fmt.Errorf("scenario %s: no subscriber, no gate timeout and nothing stops the run", scenario.Name)
	}

	joints, err := ir.NewJointSet(spec.Joints...)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}
	strategy, err := trajectory.Build(spec.Strategy, joints)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	b := bus.New()
	defer b.Close()

	subscriptions := make([]*bus.Subscription, subs)
	for i := range subscriptions {
		subscriptions[i] = b.Subscribe(spec.Topic, scenario.Ticks+1)
	}

	ticker := testutil.NewManualTicker(Epoch)
	rec := newRecorder()
	eng, err := engine.New(spec, strategy, b,
		engine.WithTicker(func(time.Duration) engine.Ticker { return ticker }),
		engine.WithRunIDGenerator(testutil.NewFixedRunIDGenerator(scenario.RunID)),
		engine.WithNow(func() time.Time { return Epoch }),
		engine.WithObserver(rec),
	)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan engine.Outcome, 1)
	go func() { done <- eng.Run(ctx) }()

	if subs > 0 {
		select {
		case <-rec.running:
			drive(scenario, eng, ticker, rec, cancel)
		case <-rec.terminating:
		}
		// Running out of ticks is an interrupt.
		cancel()
	} else {
		act(scenario, 0, eng, rec, cancel)
	}
	out := <-done

	result := NewResult()
	result.RunID = out.RunID
	result.Reason = out.Reason
	result.Ticks = out.Ticks
	result.Published = out.Published
	result.Elapsed = out.Elapsed
	result.FinalT = out.Elapsed.Seconds()
	var re *engine.RuntimeError
	if errors.As(out.Err, &re) {
		result.ErrorCode = string(re.Code)
	}
	for _, s := range out.States {
		result.States = append(result.States, s.String())
	}
	result.Trace = rec.events()

	b.Close()
	streams := make([][]ir.JointCommand, len(subscriptions))
	for i, sub := range subscriptions {
		for cmd := range sub.C() {
			streams[i] = append(streams[i], cmd)
		}
		result.Received = append(result.Received, len(streams[i]))
	}
	if len(streams) > 0 {
		result.Digest, err = roundTrip(spec, out.RunID, streams[0])
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", scenario.Name, err)
		}
	}

	for _, msg := range EvaluateExpectations(result, scenario.Expect) {
		result.AddError(msg)
	}
	return result, nil
}

// drive delivers ticks until the scenario's tick budget is spent or the
// engine stops taking them.
func drive(scenario *Scenario, eng *engine.Engine, ticker *testutil.ManualTicker, rec *recorder, cancel context.CancelFunc) {
	for k := 0; ; k++ {
		act(scenario, k, eng, rec, cancel)
		if k == scenario.Ticks || !ticker.Tick() {
			return
		}
	}
}

// act fires the scenario's external events scheduled after k ticks. The
// event is traced before it takes effect so it precedes the transitions it
// causes.
func act(scenario *Scenario, k int, eng *engine.Engine, rec *recorder, cancel context.CancelFunc) {
	if c := scenario.CompleteAt; c != nil && c.Tick == k {
		i := rec.add(TraceEvent{Type: EventComplete, AtTick: int64(k), Reason: c.Reason})
		accepted := eng.Complete(c.Reason) == nil
		rec.setAccepted(i, accepted)
	}
	if at := scenario.InterruptAt; at != nil && *at == k {
		rec.add(TraceEvent{Type: EventInterrupt, AtTick: int64(k)})
		cancel()
	}
}

// roundTrip stores the stream in an in-memory recording, reads it back and
// returns its stream digest.
func roundTrip(spec ir.TrajectorySpec, runID string, cmds []ir.JointCommand) (string, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return "", fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	err = st.CreateRecording(ctx, store.Recording{
		ID:        runID,
		Name:      spec.Name,
		Topic:     spec.Topic,
		Joints:    spec.Joints,
		Period:    spec.Period,
		StartedAt: Epoch,
	})
	if err != nil {
		return "", err
	}
	if err := st.AppendMessages(ctx, runID, 1, cmds); err != nil {
		return "", err
	}
	msgs, err := st.ReadMessages(ctx, runID)
	if err != nil {
		return "", err
	}

	d := ir.NewStreamDigest()
	for _, m := range msgs {
		if err := d.Add(m.Command); err != nil {
			return "", err
		}
	}
	return d.Sum(), nil
}

// loadTrajectory compiles the CUE file at path and returns the selected,
// validated trajectory.
func loadTrajectory(path, name string) (ir.TrajectorySpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ir.TrajectorySpec{}, fmt.Errorf("failed to read spec: %w", err)
	}

	v := cuecontext.New().CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return ir.TrajectorySpec{}, fmt.Errorf("failed to compile %s: %w", path, err)
	}

	spec, err := compiler.Pick(v, name)
	if err != nil {
		return ir.TrajectorySpec{}, fmt.Errorf("%s: %w", path, err)
	}
	return spec, nil
}

// recorder is the engine observer that builds the trace.
type recorder struct {
	mu    sync.Mutex
	trace []TraceEvent

	running     chan struct{}
	terminating chan struct{}
}

func newRecorder() *recorder {
	return &recorder{
		running:     make(chan struct{}),
		terminating: make(chan struct{}),
	}
}

func (r *recorder) add(e TraceEvent) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trace = append(r.trace, e)
	return len(r.trace) - 1
}

func (r *recorder) setAccepted(i int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trace[i].Accepted = &ok
}

func (r *recorder) events() []TraceEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]TraceEvent(nil), r.trace...)
}

func (r *recorder) OnStateChange(c engine.StateChange) {
	r.add(TraceEvent{
		Type:   EventState,
		From:   c.From.String(),
		To:     c.To.String(),
		Reason: c.Reason,
	})
	switch c.To {
	case engine.StateRunning:
		close(r.running)
	case engine.StateTerminating:
		close(r.terminating)
	}
}

func (r *recorder) OnPublish(p engine.Publication) {
	r.add(TraceEvent{
		Type:     EventPublish,
		AtTick:   p.Tick,
		T:        p.T,
		Position: p.Command.Position,
		Velocity: p.Command.Velocity,
	})
}

// finalTMatches compares virtual times in seconds.
func finalTMatches(got, want float64) bool {
	return math.Abs(got-want) < 1e-9
}
