// Package trajectory provides the pluggable strategies that map elapsed run
// time to joint positions and velocities.
//
// A Strategy is initialized once per run with the joint set and returns an
// opaque State. The scheduler then calls Evaluate once per tick. Evaluate
// must be deterministic: the same (t, state) always yields the same Sample.
// Strategies may keep lookup hints in their state, but the output depends
// only on t.
package trajectory

import (
	"fmt"

	"github.com/roach88/jointstream/internal/ir"
)

// State is strategy-owned and opaque to everything else.
type State any

// Sample is one evaluation. Position and Velocity are each empty or hold
// exactly one entry per joint.
type Sample struct {
	Position []float64
	Velocity []float64
}

// Strategy computes setpoints from elapsed time.
type Strategy interface {
	Init(joints ir.JointSet) (State, error)
	Evaluate(t float64, state State) (Sample, error)
}

// Finisher is implemented by strategies that end on their own.
// The scheduler writes the completion signal with reason when done is true.
type Finisher interface {
	Finished(t float64, state State) (reason string, done bool)
}

// ReasonComplete is reported by strategies that reach their final pose.
const ReasonComplete = "Trajectory complete"

// Func adapts a plain function of time to a Strategy.
type Func func(t float64) (Sample, error)

// Init implements Strategy. Func carries no state.
func (f Func) Init(ir.JointSet) (State, error) {
	return nil, nil
}

// Evaluate implements Strategy.
func (f Func) Evaluate(t float64, _ State) (Sample, error) {
	return f(t)
}

// Build constructs the strategy described by spec for joints.
// Parameter vectors are checked against the joint count here so that a
// misconfigured run fails before the first tick.
func Build(spec ir.StrategySpec, joints ir.JointSet) (Strategy, error) {
	n := joints.Len()
	switch spec.Kind {
	case ir.StrategyLinear:
		if spec.Linear == nil {
			return nil, fmt.Errorf("strategy %s: missing parameters", spec.Kind)
		}
		return NewLinear(*spec.Linear, n)
	case ir.StrategySinusoid:
		if spec.Sinusoid == nil {
			return nil, fmt.Errorf("strategy %s: missing parameters", spec.Kind)
		}
		return NewSinusoid(*spec.Sinusoid, n)
	case ir.StrategySpline:
		if spec.Spline == nil {
			return nil, fmt.Errorf("strategy %s: missing parameters", spec.Kind)
		}
		return NewSpline(*spec.Spline, n)
	case ir.StrategyHold:
		if spec.Hold == nil {
			return nil, fmt.Errorf("strategy %s: missing parameters", spec.Kind)
		}
		return NewHold(*spec.Hold, n)
	default:
		return nil, fmt.Errorf("unknown strategy kind %q", spec.Kind)
	}
}

// vector returns v when it has n entries, zeros when it is empty, and an
// error otherwise.
func vector(strategy, field string, v []float64, n int, required bool) ([]float64, error) {
	switch {
	case len(v) == n:
		out := make([]float64, n)
		copy(out, v)
		return out, nil
	case len(v) == 0 && !required:
		return make([]float64, n), nil
	default:
		return nil, fmt.Errorf("%s: %s has %d entries, want %d", strategy, field, len(v), n)
	}
}

func checkJoints(strategy string, joints ir.JointSet, n int) error {
	if joints.Len() != n {
		return fmt.Errorf("%s: built for %d joints, initialized with %d", strategy, n, joints.Len())
	}
	return nil
}
