package compiler

import (
	"fmt"

	"cuelang.org/go/cue"

	"github.com/roach88/jointstream/internal/ir"
)

// TrajectoryError is a compile failure of one trajectory.<label> entry.
type TrajectoryError struct {
	Label string
	Err   error
}

func (e *TrajectoryError) Error() string {
	return fmt.Sprintf("trajectory.%s: %v", e.Label, e.Err)
}

func (e *TrajectoryError) Unwrap() error {
	return e.Err
}

// SelectError reports that a name did not pick exactly one trajectory.
// An empty Name means no name was given and there was not exactly one.
type SelectError struct {
	Name string
	Have []string
}

func (e *SelectError) Error() string {
	switch {
	case e.Name != "":
		return fmt.Sprintf("no trajectory named %q, have %v", e.Name, e.Have)
	case len(e.Have) == 0:
		return "no trajectory defined"
	default:
		return fmt.Sprintf("%d trajectories defined, choose one: %v", len(e.Have), e.Have)
	}
}

// InvalidError carries every validation problem of a selected trajectory.
type InvalidError struct {
	Name     string
	Problems []ValidationError
}

func (e *InvalidError) Error() string {
	msg := fmt.Sprintf("trajectory %s: %s", e.Name, e.Problems[0].Message)
	if n := len(e.Problems); n > 1 {
		msg = fmt.Sprintf("%s (and %d more)", msg, n-1)
	}
	return msg
}

// CompileAll compiles every entry under the top-level trajectory field of v
// in source order. With failFast it stops at the first failing entry. A
// value without a trajectory field yields neither specs nor errors.
func CompileAll(v cue.Value, failFast bool) ([]ir.TrajectorySpec, []error) {
	field := v.LookupPath(cue.ParsePath("trajectory"))
	if !field.Exists() {
		return nil, nil
	}
	iter, err := field.Fields()
	if err != nil {
		return nil, []error{fmt.Errorf("iterating trajectories: %w", err)}
	}

	var specs []ir.TrajectorySpec
	var errs []error
	for iter.Next() {
		spec, err := CompileTrajectory(iter.Value())
		if err != nil {
			errs = append(errs, &TrajectoryError{Label: iter.Label(), Err: err})
			if failFast {
				return specs, errs
			}
			continue
		}
		specs = append(specs, *spec)
	}
	return specs, errs
}

// Select returns the trajectory called name, or the only one when name is
// empty.
func Select(specs []ir.TrajectorySpec, name string) (ir.TrajectorySpec, error) {
	names := make([]string, len(specs))
	for i, s := range specs {
		if name != "" && s.Name == name {
			return s, nil
		}
		names[i] = s.Name
	}
	if name == "" && len(specs) == 1 {
		return specs[0], nil
	}
	return ir.TrajectorySpec{}, &SelectError{Name: name, Have: names}
}

// CheckValid runs Validate and folds its problems into an *InvalidError.
func CheckValid(spec *ir.TrajectorySpec) error {
	if problems := Validate(spec); len(problems) > 0 {
		return &InvalidError{Name: spec.Name, Problems: problems}
	}
	return nil
}

// Pick compiles v, selects the trajectory called name and validates it.
func Pick(v cue.Value, name string) (ir.TrajectorySpec, error) {
	specs, errs := CompileAll(v, true)
	if len(errs) > 0 {
		return ir.TrajectorySpec{}, errs[0]
	}
	spec, err := Select(specs, name)
	if err != nil {
		return spec, err
	}
	if err := CheckValid(&spec); err != nil {
		return ir.TrajectorySpec{}, err
	}
	return spec, nil
}
