package harness

import "time"

// Trace event types.
const (
	EventState     = "state"
	EventPublish   = "publish"
	EventComplete  = "complete"
	EventInterrupt = "interrupt"
)

// TraceEvent is one entry of a scenario trace.
type TraceEvent struct {
	Type string `json:"type"`

	// AtTick is the number of ticks processed when the harness acted
	// (complete, interrupt) or the tick number of a publish.
	AtTick int64 `json:"at_tick"`

	// T is the virtual time of a publish.
	T time.Duration `json:"t,omitempty"`

	From   string `json:"from,omitempty"`
	To     string `json:"to,omitempty"`
	Reason string `json:"reason,omitempty"`

	Position []float64 `json:"position,omitempty"`
	Velocity []float64 `json:"velocity,omitempty"`

	// Accepted reports whether an external completion was stored.
	Accepted *bool `json:"accepted,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation held.
	Pass bool `json:"pass"`

	RunID     string        `json:"run_id"`
	Reason    string        `json:"reason"`
	ErrorCode string        `json:"error_code,omitempty"`
	Ticks     int64         `json:"ticks"`
	Published int64         `json:"published"`
	FinalT    float64       `json:"final_t"`
	Elapsed   time.Duration `json:"elapsed"`
	States    []string      `json:"states"`

	// Received is the number of commands each subscriber got, in
	// subscription order.
	Received []int `json:"received"`

	// Digest is the stream digest of the first subscriber's commands after
	// a round trip through the store. Empty without subscribers.
	Digest string `json:"digest,omitempty"`

	Trace []TraceEvent `json:"trace"`

	// Errors contains failed expectations.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:     true,
		States:   []string{},
		Received: []int{},
		Trace:    []TraceEvent{},
		Errors:   []string{},
	}
}

// AddError adds a failed expectation and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Publications returns the publish events of the trace in order.
func (r *Result) Publications() []TraceEvent {
	var out []TraceEvent
	for _, e := range r.Trace {
		if e.Type == EventPublish {
			out = append(out, e)
		}
	}
	return out
}
