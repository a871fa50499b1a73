package compiler

import (
	"fmt"
	"math"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/jointstream/internal/ir"
)

// CompileTrajectory parses a CUE value into a TrajectorySpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the trajectory struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`trajectory: demo: { ... }`)
//	spec, err := CompileTrajectory(v.LookupPath(cue.ParsePath("trajectory.demo")))
//
// Omitted fields get defaults: 100 Hz, topic /joint_states, frame world,
// gate poll 50ms with no timeout, unbounded ticks. Semantic checks (vector
// lengths, duplicates) are left to Validate so that all problems are
// reported together.
func CompileTrajectory(v cue.Value) (*ir.TrajectorySpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.TrajectorySpec{
		Topic:   ir.DefaultTopic,
		FrameID: ir.DefaultFrameID,
		Gate:    ir.GateSpec{Poll: ir.DefaultPoll},
	}

	// Name comes from the struct label (the path selector)
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = labels[len(labels)-1].String()
	}

	// Joints (required)
	jointsVal := v.LookupPath(cue.ParsePath("joints"))
	if !jointsVal.Exists() {
		return nil, &CompileError{Field: "joints", Message: "joints is required", Pos: v.Pos()}
	}
	joints, err := parseStrings(jointsVal, "joints")
	if err != nil {
		return nil, err
	}
	spec.Joints = joints

	spec.Period, err = parsePeriod(v)
	if err != nil {
		return nil, err
	}

	if s, ok, err := optionalString(v, "topic"); err != nil {
		return nil, err
	} else if ok {
		spec.Topic = s
	}
	if s, ok, err := optionalString(v, "frame_id"); err != nil {
		return nil, err
	} else if ok {
		spec.FrameID = s
	}

	if mt := v.LookupPath(cue.ParsePath("max_ticks")); mt.Exists() {
		n, err := mt.Int64()
		if err != nil {
			return nil, &CompileError{Field: "max_ticks", Message: "must be an integer", Pos: mt.Pos()}
		}
		spec.MaxTicks = n
	}

	if gate := v.LookupPath(cue.ParsePath("gate")); gate.Exists() {
		if d, ok, err := optionalDuration(gate, "timeout"); err != nil {
			return nil, err
		} else if ok {
			spec.Gate.Timeout = d
		}
		if d, ok, err := optionalDuration(gate, "poll"); err != nil {
			return nil, err
		} else if ok {
			spec.Gate.Poll = d
		}
	}

	spec.Strategy, err = parseStrategy(v)
	if err != nil {
		return nil, err
	}

	return spec, nil
}

// parsePeriod reads rate_hz or period. Giving both is an error; giving
// neither selects ir.DefaultPeriod.
func parsePeriod(v cue.Value) (time.Duration, error) {
	rateVal := v.LookupPath(cue.ParsePath("rate_hz"))
	periodVal := v.LookupPath(cue.ParsePath("period"))

	switch {
	case rateVal.Exists() && periodVal.Exists():
		return 0, &CompileError{Field: "rate_hz", Message: "rate_hz and period are mutually exclusive", Pos: rateVal.Pos()}
	case rateVal.Exists():
		hz, err := rateVal.Float64()
		if err != nil {
			return 0, &CompileError{Field: "rate_hz", Message: "must be a number", Pos: rateVal.Pos()}
		}
		if hz <= 0 || math.IsInf(hz, 0) || math.IsNaN(hz) {
			return 0, &CompileError{Field: "rate_hz", Message: fmt.Sprintf("must be positive, got %v", hz), Pos: rateVal.Pos()}
		}
		return time.Duration(math.Round(float64(time.Second) / hz)), nil
	case periodVal.Exists():
		return parseDuration(periodVal, "period")
	default:
		return ir.DefaultPeriod, nil
	}
}

// parseStrategy reads the single-key strategy struct, e.g.
// strategy: linear: { rates: [-1, 2] }.
func parseStrategy(v cue.Value) (ir.StrategySpec, error) {
	var spec ir.StrategySpec

	sv := v.LookupPath(cue.ParsePath("strategy"))
	if !sv.Exists() {
		return spec, &CompileError{Field: "strategy", Message: "strategy is required", Pos: v.Pos()}
	}

	iter, err := sv.Fields()
	if err != nil {
		return spec, formatCUEError(err)
	}
	var kind string
	var params cue.Value
	for iter.Next() {
		if kind != "" {
			return spec, &CompileError{
				Field:   "strategy",
				Message: fmt.Sprintf("exactly one strategy must be given, found %q and %q", kind, iter.Label()),
				Pos:     iter.Value().Pos(),
			}
		}
		kind = iter.Label()
		params = iter.Value()
	}
	if kind == "" {
		return spec, &CompileError{Field: "strategy", Message: "strategy is empty", Pos: sv.Pos()}
	}
	spec.Kind = kind

	switch kind {
	case ir.StrategyLinear:
		p := &ir.LinearParams{}
		if p.Origin, err = optionalFloats(params, "linear.origin", "origin"); err != nil {
			return spec, err
		}
		if p.Rates, err = requiredFloats(params, "linear.rates", "rates"); err != nil {
			return spec, err
		}
		spec.Linear = p

	case ir.StrategySinusoid:
		p := &ir.SinusoidParams{}
		if p.Amplitude, err = requiredFloats(params, "sinusoid.amplitude", "amplitude"); err != nil {
			return spec, err
		}
		if p.FrequencyHz, err = requiredFloats(params, "sinusoid.frequency_hz", "frequency_hz"); err != nil {
			return spec, err
		}
		if p.Offset, err = optionalFloats(params, "sinusoid.offset", "offset"); err != nil {
			return spec, err
		}
		if p.Phase, err = optionalFloats(params, "sinusoid.phase", "phase"); err != nil {
			return spec, err
		}
		spec.Sinusoid = p

	case ir.StrategySpline:
		p, err := parseSpline(params)
		if err != nil {
			return spec, err
		}
		spec.Spline = p

	case ir.StrategyHold:
		p := &ir.HoldParams{}
		if p.Positions, err = requiredFloats(params, "hold.positions", "positions"); err != nil {
			return spec, err
		}
		spec.Hold = p

	default:
		// Unknown kinds compile; Validate reports them with the full list.
	}

	return spec, nil
}

func parseSpline(v cue.Value) (*ir.SplineParams, error) {
	p := &ir.SplineParams{}

	wv := v.LookupPath(cue.ParsePath("waypoints"))
	if !wv.Exists() {
		return nil, &CompileError{Field: "spline.waypoints", Message: "waypoints is required", Pos: v.Pos()}
	}
	iter, err := wv.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for i := 0; iter.Next(); i++ {
		field := fmt.Sprintf("spline.waypoints[%d]", i)
		wp := ir.Waypoint{}
		if wp.Position, err = requiredFloats(iter.Value(), field+".position", "position"); err != nil {
			return nil, err
		}
		if wp.Velocity, err = optionalFloats(iter.Value(), field+".velocity", "velocity"); err != nil {
			return nil, err
		}
		if d, ok, err := optionalDuration(iter.Value(), "duration"); err != nil {
			return nil, err
		} else if ok {
			wp.Duration = d
		}
		p.Waypoints = append(p.Waypoints, wp)
	}

	if cv := v.LookupPath(cue.ParsePath("cycle")); cv.Exists() {
		b, err := cv.Bool()
		if err != nil {
			return nil, &CompileError{Field: "spline.cycle", Message: "must be a bool", Pos: cv.Pos()}
		}
		p.Cycle = b
	}
	return p, nil
}

func parseStrings(v cue.Value, field string) ([]string, error) {
	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "must be a list of strings", Pos: v.Pos()}
	}
	var out []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, &CompileError{Field: field, Message: "must be a list of strings", Pos: iter.Value().Pos()}
		}
		out = append(out, s)
	}
	return out, nil
}

func parseFloats(v cue.Value, field string) ([]float64, error) {
	iter, err := v.List()
	if err != nil {
		return nil, &CompileError{Field: field, Message: "must be a list of numbers", Pos: v.Pos()}
	}
	out := []float64{}
	for iter.Next() {
		f, err := iter.Value().Float64()
		if err != nil {
			return nil, &CompileError{Field: field, Message: "must be a list of numbers", Pos: iter.Value().Pos()}
		}
		out = append(out, f)
	}
	return out, nil
}

func requiredFloats(v cue.Value, field, path string) ([]float64, error) {
	fv := v.LookupPath(cue.ParsePath(path))
	if !fv.Exists() {
		return nil, &CompileError{Field: field, Message: path + " is required", Pos: v.Pos()}
	}
	return parseFloats(fv, field)
}

func optionalFloats(v cue.Value, field, path string) ([]float64, error) {
	fv := v.LookupPath(cue.ParsePath(path))
	if !fv.Exists() {
		return nil, nil
	}
	return parseFloats(fv, field)
}

func optionalString(v cue.Value, path string) (string, bool, error) {
	sv := v.LookupPath(cue.ParsePath(path))
	if !sv.Exists() {
		return "", false, nil
	}
	s, err := sv.String()
	if err != nil {
		return "", false, &CompileError{Field: path, Message: "must be a string", Pos: sv.Pos()}
	}
	return s, true, nil
}

func optionalDuration(v cue.Value, path string) (time.Duration, bool, error) {
	dv := v.LookupPath(cue.ParsePath(path))
	if !dv.Exists() {
		return 0, false, nil
	}
	d, err := parseDuration(dv, path)
	return d, err == nil, err
}

// parseDuration accepts Go duration strings ("10ms", "1.5s").
func parseDuration(v cue.Value, field string) (time.Duration, error) {
	s, err := v.String()
	if err != nil {
		return 0, &CompileError{Field: field, Message: `must be a duration string such as "10ms"`, Pos: v.Pos()}
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, &CompileError{Field: field, Message: fmt.Sprintf("invalid duration %q", s), Pos: v.Pos()}
	}
	return d, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
