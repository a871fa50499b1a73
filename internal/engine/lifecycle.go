package engine

import (
	"time"

	"github.com/roach88/jointstream/internal/ir"
)

// State is a lifecycle phase of a run.
type State int32

const (
	StateInitializing State = iota
	StateRunning
	StateTerminating
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateInitializing:
		return "Initializing"
	case StateRunning:
		return "Running"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// MarshalText renders the state by name in JSON and logs.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// StateChange is delivered to observers on every lifecycle transition.
type StateChange struct {
	RunID  string
	From   State
	To     State
	At     time.Time
	Reason string // set from Terminating on
}

// Publication is delivered to observers after each successful publish.
type Publication struct {
	RunID   string
	Tick    int64
	T       time.Duration
	Command ir.JointCommand
}

// Observer receives run events. Methods are called synchronously from the
// Run goroutine and must return quickly.
type Observer interface {
	OnStateChange(StateChange)
	OnPublish(Publication)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	StateChange func(StateChange)
	Publish     func(Publication)
}

func (o ObserverFuncs) OnStateChange(c StateChange) {
	if o.StateChange != nil {
		o.StateChange(c)
	}
}

func (o ObserverFuncs) OnPublish(p Publication) {
	if o.Publish != nil {
		o.Publish(p)
	}
}
