package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/roach88/jointstream/internal/bus"
	"github.com/roach88/jointstream/internal/ir"
	"github.com/roach88/jointstream/internal/trajectory"
)

// Fixed termination reasons.
const (
	ReasonInterrupted = "Interrupted"
	ReasonTickLimit   = "Tick limit reached"
)

// Outcome summarizes a finished run.
type Outcome struct {
	RunID string `json:"run_id"`

	// Reason is the value stored in the completion signal.
	Reason string `json:"reason"`

	// Err is set when the run ended on an error; Reason is then Err.Error().
	Err error `json:"-"`

	// Ticks is the number of ticks processed; Published the number of
	// commands actually sent.
	Ticks     int64 `json:"ticks"`
	Published int64 `json:"published"`

	// Elapsed is the virtual time of the last tick.
	Elapsed time.Duration `json:"elapsed"`

	// States lists every lifecycle state entered, in order.
	States []State `json:"states"`
}

// Engine is the single-writer command generation loop.
//
// Thread-safety model:
//   - Run(): must be called from exactly one goroutine, once
//   - Complete(), State(), Clock(): safe from any goroutine
type Engine struct {
	spec       ir.TrajectorySpec
	joints     ir.JointSet
	strategy   trajectory.Strategy
	bus        bus.Bus
	publisher  *CommandPublisher
	completion *Completion
	newTicker  TickerFactory
	runIDs     RunIDGenerator
	now        func() time.Time
	observers  []Observer

	runID   string
	state   atomic.Int32
	clock   atomic.Pointer[VirtualClock]
	started atomic.Bool

	mu     sync.Mutex
	states []State

	overrun rate.Sometimes
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithTicker replaces the wall-clock ticker.
func WithTicker(f TickerFactory) Option {
	return func(e *Engine) { e.newTicker = f }
}

// WithRunIDGenerator replaces the UUIDv7 run id generator.
func WithRunIDGenerator(g RunIDGenerator) Option {
	return func(e *Engine) { e.runIDs = g }
}

// WithNow replaces time.Now as the source of the clock epoch.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithObserver registers an observer. May be given more than once.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observers = append(e.observers, o) }
}

// WithMaxTicks overrides the spec's tick limit. 0 means unbounded.
func WithMaxTicks(n int64) Option {
	return func(e *Engine) { e.spec.MaxTicks = n }
}

// New creates an Engine for spec. The strategy must have been built for the
// same joint set.
func New(spec ir.TrajectorySpec, strategy trajectory.Strategy, b bus.Bus, opts ...Option) (*Engine, error) {
	joints, err := ir.NewJointSet(spec.Joints...)
	if err != nil {
		return nil, fmt.Errorf("engine %s: %w", spec.Name, err)
	}
	if spec.Period <= 0 {
		return nil, fmt.Errorf("engine %s: period must be positive, got %s", spec.Name, spec.Period)
	}
	if spec.Topic == "" {
		spec.Topic = ir.DefaultTopic
	}
	if spec.FrameID == "" {
		spec.FrameID = ir.DefaultFrameID
	}

	e := &Engine{
		spec:       spec,
		joints:     joints,
		strategy:   strategy,
		bus:        b,
		publisher:  NewCommandPublisher(b, spec.Topic, spec.FrameID, joints),
		completion: NewCompletion(),
		newTicker:  NewWallTicker,
		runIDs:     UUIDv7Generator{},
		now:        time.Now,
		overrun:    rate.Sometimes{Interval: time.Second},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.runID = e.runIDs.Generate()
	e.states = []State{StateInitializing}
	return e, nil
}

// RunID returns the identifier of this run.
func (e *Engine) RunID() string {
	return e.runID
}

// Spec returns the (defaulted) trajectory spec the engine runs.
func (e *Engine) Spec() ir.TrajectorySpec {
	return e.spec
}

// State returns the current lifecycle state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Clock returns the virtual clock, or nil before the engine is Running.
func (e *Engine) Clock() *VirtualClock {
	return e.clock.Load()
}

// Complete writes the completion signal from outside the loop. The loop
// stops after the tick in progress. A second write returns
// COMPLETION_CONFLICT and does not change the stored reason.
func (e *Engine) Complete(reason string) error {
	return e.completion.Complete(reason)
}

// Run gates on a subscriber, ticks until the completion signal is written or
// ctx is cancelled, then releases resources. It never returns before the
// engine is Terminated.
//
// Cancelling ctx is the external interrupt: the run ends with reason
// "Interrupted" unless a reason was already stored.
//
// ERROR HANDLING: publish failures, format mismatches and strategy errors
// are fatal. The loop stops immediately without retrying, and the error
// becomes the termination reason.
func (e *Engine) Run(ctx context.Context) Outcome {
	if !e.started.CompareAndSwap(false, true) {
		return Outcome{RunID: e.runID, Err: errors.New("engine: Run called twice")}
	}

	slog.Info("engine starting",
		"run_id", e.runID,
		"name", e.spec.Name,
		"topic", e.spec.Topic,
		"period", e.spec.Period,
		"joints", e.joints.Len(),
	)

	var out Outcome
	out.RunID = e.runID

	state, err := e.strategy.Init(e.joints)
	if err != nil {
		out.Err = NewStrategyError(0, err)
		e.completion.TryComplete(out.Err.Error())
		return e.terminate(nil, out)
	}

	if err := e.waitForSubscriber(ctx); err != nil {
		var aborted gateAborted
		if !errors.As(err, &aborted) {
			out.Err = err
			e.completion.TryComplete(err.Error())
		}
		return e.terminate(nil, out)
	}

	clock := NewVirtualClock(e.spec.Period, e.now())
	e.clock.Store(clock)
	ticker := e.newTicker(e.spec.Period)
	e.setState(StateRunning, "")

	out.Err = e.loop(ctx, clock, ticker, state)
	out.Ticks = clock.Ticks()
	if out.Ticks > 0 {
		out.Elapsed = clock.Now()
	}
	return e.terminate(ticker, out)
}

// loop processes ticks until the completion signal is set.
// CRITICAL: Called only from Run() goroutine - single-writer guarantee.
func (e *Engine) loop(ctx context.Context, clock *VirtualClock, ticker Ticker, state trajectory.State) error {
	for {
		select {
		case <-ctx.Done():
		case <-e.completion.Done():
		case <-ticker.C():
		}

		// select picks randomly among ready cases; a stop always wins over
		// a pending tick.
		if ctx.Err() != nil {
			e.completion.TryComplete(ReasonInterrupted)
			return nil
		}
		if _, set := e.completion.Reason(); set {
			return nil
		}

		began := time.Now()
		if err := e.tick(ctx, clock, state); err != nil {
			slog.Error("tick failed",
				"run_id", e.runID,
				"tick", clock.Ticks(),
				"error", err,
			)
			e.completion.TryComplete(err.Error())
			return err
		}
		if took := time.Since(began); took > e.spec.Period {
			e.overrun.Do(func() {
				slog.Warn("tick overran period",
					"run_id", e.runID,
					"tick", clock.Ticks(),
					"took", took,
					"period", e.spec.Period,
				)
			})
		}
	}
}

// tick advances the clock, evaluates the strategy and publishes one command.
// CRITICAL: Called only from Run() goroutine - single-writer guarantee.
func (e *Engine) tick(ctx context.Context, clock *VirtualClock, state trajectory.State) error {
	k := clock.Advance()
	t := clock.Seconds()

	sample, err := e.strategy.Evaluate(t, state)
	if err != nil {
		return NewStrategyError(k, err)
	}

	// An interrupt arriving mid-tick is handled by the loop, not reported as
	// a publish failure.
	cmd, err := e.publisher.Publish(context.WithoutCancel(ctx), k, clock.Stamp(), sample)
	if err != nil {
		return err
	}

	pub := Publication{RunID: e.runID, Tick: k, T: clock.Now(), Command: cmd}
	for _, o := range e.observers {
		o.OnPublish(pub)
	}

	if f, ok := e.strategy.(trajectory.Finisher); ok {
		if reason, done := f.Finished(t, state); done {
			e.completion.TryComplete(reason)
		}
	}
	if e.spec.MaxTicks > 0 && k >= e.spec.MaxTicks {
		e.completion.TryComplete(ReasonTickLimit)
	}
	return nil
}

// terminate releases the ticker, then the publisher, and moves through
// Terminating to Terminated. The transition is unconditional.
func (e *Engine) terminate(ticker Ticker, out Outcome) Outcome {
	reason, ok := e.completion.Reason()
	if !ok {
		e.completion.TryComplete(ReasonInterrupted)
		reason, _ = e.completion.Reason()
	}
	out.Reason = reason

	e.setState(StateTerminating, reason)
	if ticker != nil {
		ticker.Stop()
	}
	e.publisher.Close()
	out.Published = e.publisher.Published()
	e.setState(StateTerminated, reason)

	slog.Info("engine stopped",
		"run_id", e.runID,
		"reason", reason,
		"ticks", out.Ticks,
		"published", out.Published,
	)

	e.mu.Lock()
	out.States = append([]State(nil), e.states...)
	e.mu.Unlock()
	return out
}

func (e *Engine) setState(to State, reason string) {
	from := State(e.state.Swap(int32(to)))
	e.mu.Lock()
	e.states = append(e.states, to)
	e.mu.Unlock()

	slog.Debug("lifecycle transition",
		"run_id", e.runID,
		"from", from,
		"to", to,
	)

	change := StateChange{RunID: e.runID, From: from, To: to, At: e.now(), Reason: reason}
	for _, o := range e.observers {
		o.OnStateChange(change)
	}
}
