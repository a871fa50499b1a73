package compiler

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/jointstream/internal/ir"
)

// Validation error codes (E200-E299)
const (
	// Joint set errors (E200-E201)
	ErrNoJoints     = "E200" // at least one joint required
	ErrInvalidJoint = "E201" // empty or duplicate joint name

	// Timing errors (E202, E205-E206)
	ErrInvalidPeriod   = "E202" // period must be positive
	ErrInvalidGate     = "E205" // negative gate timeout or non-positive poll
	ErrInvalidMaxTicks = "E206" // max_ticks must not be negative

	// Strategy errors (E203-E204, E207, E209)
	ErrVectorLength    = "E203" // parameter vector length != joint count
	ErrUnknownStrategy = "E204" // unknown strategy kind or missing parameters
	ErrInvalidSpline   = "E207" // too few waypoints or non-positive duration
	ErrNonFiniteValue  = "E209" // NaN or Inf parameter

	// Transport errors (E208)
	ErrInvalidTopic = "E208" // topic must be an absolute name
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// KnownStrategies lists the strategy kinds Validate accepts.
var KnownStrategies = []string{ir.StrategyLinear, ir.StrategySinusoid, ir.StrategySpline, ir.StrategyHold}

// topicPattern matches absolute slash-separated topic names.
var topicPattern = regexp.MustCompile(`^(/[A-Za-z_][A-Za-z0-9_]*)+$`)

// Validate validates a compiled trajectory spec.
// Returns all errors found (does not fail-fast).
func Validate(spec *ir.TrajectorySpec) []ValidationError {
	var errs []ValidationError

	// E200: at least one joint
	if len(spec.Joints) == 0 {
		errs = append(errs, ValidationError{
			Field:   "joints",
			Message: "at least one joint is required",
			Code:    ErrNoJoints,
		})
	}

	// E201: joint names non-empty and unique (after NFC normalization)
	seen := make(map[string]int, len(spec.Joints))
	for i, name := range spec.Joints {
		key := norm.NFC.String(strings.TrimSpace(name))
		if key == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("joints[%d]", i),
				Message: "joint name must be non-empty",
				Code:    ErrInvalidJoint,
			})
			continue
		}
		if prev, dup := seen[key]; dup {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("joints[%d]", i),
				Message: fmt.Sprintf("duplicate joint name %q (first at joints[%d])", name, prev),
				Code:    ErrInvalidJoint,
			})
			continue
		}
		seen[key] = i
	}

	// E202: period
	if spec.Period <= 0 {
		errs = append(errs, ValidationError{
			Field:   "period",
			Message: fmt.Sprintf("period must be positive, got %s", spec.Period),
			Code:    ErrInvalidPeriod,
		})
	}

	// E205: gate
	if spec.Gate.Timeout < 0 {
		errs = append(errs, ValidationError{
			Field:   "gate.timeout",
			Message: fmt.Sprintf("timeout must not be negative, got %s", spec.Gate.Timeout),
			Code:    ErrInvalidGate,
		})
	}
	if spec.Gate.Poll <= 0 {
		errs = append(errs, ValidationError{
			Field:   "gate.poll",
			Message: fmt.Sprintf("poll must be positive, got %s", spec.Gate.Poll),
			Code:    ErrInvalidGate,
		})
	}

	// E206: max_ticks
	if spec.MaxTicks < 0 {
		errs = append(errs, ValidationError{
			Field:   "max_ticks",
			Message: fmt.Sprintf("max_ticks must not be negative, got %d", spec.MaxTicks),
			Code:    ErrInvalidMaxTicks,
		})
	}

	// E208: topic
	if !topicPattern.MatchString(spec.Topic) {
		errs = append(errs, ValidationError{
			Field:   "topic",
			Message: fmt.Sprintf("invalid topic %q, expected an absolute name such as \"/joint_states\"", spec.Topic),
			Code:    ErrInvalidTopic,
		})
	}

	errs = append(errs, validateStrategy(spec.Strategy, len(spec.Joints))...)
	return errs
}

// validateStrategy checks the strategy block against the joint count n.
func validateStrategy(s ir.StrategySpec, n int) []ValidationError {
	var errs []ValidationError
	field := "strategy." + s.Kind

	missing := func() []ValidationError {
		return []ValidationError{{
			Field:   field,
			Message: fmt.Sprintf("strategy %q has no parameters", s.Kind),
			Code:    ErrUnknownStrategy,
		}}
	}

	switch s.Kind {
	case ir.StrategyLinear:
		if s.Linear == nil {
			return missing()
		}
		errs = append(errs, checkVector(field+".rates", s.Linear.Rates, n, true)...)
		errs = append(errs, checkVector(field+".origin", s.Linear.Origin, n, false)...)

	case ir.StrategySinusoid:
		if s.Sinusoid == nil {
			return missing()
		}
		errs = append(errs, checkVector(field+".amplitude", s.Sinusoid.Amplitude, n, true)...)
		errs = append(errs, checkVector(field+".frequency_hz", s.Sinusoid.FrequencyHz, n, true)...)
		errs = append(errs, checkVector(field+".offset", s.Sinusoid.Offset, n, false)...)
		errs = append(errs, checkVector(field+".phase", s.Sinusoid.Phase, n, false)...)

	case ir.StrategySpline:
		if s.Spline == nil {
			return missing()
		}
		if len(s.Spline.Waypoints) < 2 {
			errs = append(errs, ValidationError{
				Field:   field + ".waypoints",
				Message: fmt.Sprintf("at least 2 waypoints are required, got %d", len(s.Spline.Waypoints)),
				Code:    ErrInvalidSpline,
			})
		}
		for i, wp := range s.Spline.Waypoints {
			wf := fmt.Sprintf("%s.waypoints[%d]", field, i)
			errs = append(errs, checkVector(wf+".position", wp.Position, n, true)...)
			errs = append(errs, checkVector(wf+".velocity", wp.Velocity, n, false)...)
			if i > 0 && wp.Duration <= 0 {
				errs = append(errs, ValidationError{
					Field:   wf + ".duration",
					Message: fmt.Sprintf("duration must be positive, got %s", wp.Duration),
					Code:    ErrInvalidSpline,
				})
			}
		}

	case ir.StrategyHold:
		if s.Hold == nil {
			return missing()
		}
		errs = append(errs, checkVector(field+".positions", s.Hold.Positions, n, true)...)

	default:
		errs = append(errs, ValidationError{
			Field:   "strategy",
			Message: fmt.Sprintf("unknown strategy %q, must be one of %v", s.Kind, KnownStrategies),
			Code:    ErrUnknownStrategy,
		})
	}

	return errs
}

// checkVector reports E203 when v is not length n (an empty optional vector
// is allowed) and E209 for non-finite entries.
func checkVector(field string, v []float64, n int, required bool) []ValidationError {
	var errs []ValidationError
	if len(v) != n && (required || len(v) != 0) {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("has %d entries, want %d (one per joint)", len(v), n),
			Code:    ErrVectorLength,
		})
	}
	for i, f := range v {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("%s[%d]", field, i),
				Message: "value must be finite",
				Code:    ErrNonFiniteValue,
			})
		}
	}
	return errs
}
