package ir

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// JointSet is the ordered list of joint names a run commands.
//
// INVARIANTS:
//   - Len() >= 1
//   - names are non-empty, NFC normalized and unique
//   - the set never changes after construction (Names returns a copy)
type JointSet struct {
	names []string
	index map[string]int
}

// NewJointSet validates and normalizes names into a JointSet.
func NewJointSet(names ...string) (JointSet, error) {
	if len(names) == 0 {
		return JointSet{}, errors.New("joint set: at least one joint is required")
	}

	js := JointSet{
		names: make([]string, len(names)),
		index: make(map[string]int, len(names)),
	}
	for i, raw := range names {
		name := norm.NFC.String(strings.TrimSpace(raw))
		if name == "" {
			return JointSet{}, fmt.Errorf("joint set: joint %d has an empty name", i)
		}
		if prev, dup := js.index[name]; dup {
			return JointSet{}, fmt.Errorf("joint set: duplicate joint %q at %d and %d", name, prev, i)
		}
		js.names[i] = name
		js.index[name] = i
	}
	return js, nil
}

// MustJointSet is like NewJointSet but panics on error.
// Use only in tests or when names are known to be valid.
func MustJointSet(names ...string) JointSet {
	js, err := NewJointSet(names...)
	if err != nil {
		panic(err)
	}
	return js
}

// Len returns the number of joints (N).
func (js JointSet) Len() int {
	return len(js.names)
}

// Names returns a copy of the joint names in order.
func (js JointSet) Names() []string {
	out := make([]string, len(js.names))
	copy(out, js.names)
	return out
}

// Index returns the position of name in the set.
func (js JointSet) Index(name string) (int, bool) {
	i, ok := js.index[norm.NFC.String(name)]
	return i, ok
}

// Stamp is a wall-clock timestamp split into seconds and nanoseconds,
// matching the header stamp consumers of the joint topic expect.
type Stamp struct {
	Sec     int32  `json:"sec"`
	Nanosec uint32 `json:"nanosec"`
}

// StampFromTime converts a time.Time to a Stamp.
func StampFromTime(t time.Time) Stamp {
	return Stamp{Sec: int32(t.Unix()), Nanosec: uint32(t.Nanosecond())}
}

// Time converts the stamp back to a time.Time (UTC).
func (s Stamp) Time() time.Time {
	return time.Unix(int64(s.Sec), int64(s.Nanosec)).UTC()
}

// Seconds returns the stamp as floating point seconds.
// Only for display and analysis; never use it to advance time.
func (s Stamp) Seconds() float64 {
	return float64(s.Sec) + float64(s.Nanosec)*1e-9
}

// Sub returns s - o as a duration.
func (s Stamp) Sub(o Stamp) time.Duration {
	return time.Duration(int64(s.Sec)-int64(o.Sec))*time.Second +
		time.Duration(int64(s.Nanosec)-int64(o.Nanosec))
}

// JointCommand is one timestamped setpoint for every joint of a JointSet.
// Instances are created fresh each tick and are never mutated after publish.
type JointCommand struct {
	Stamp    Stamp     `json:"stamp"`
	FrameID  string    `json:"frame_id"`
	Names    []string  `json:"name"`
	Position []float64 `json:"position"`
	Velocity []float64 `json:"velocity"`
}

// Validate checks the length invariant: position and velocity each hold
// either zero entries or exactly len(Names).
func (c JointCommand) Validate() error {
	n := len(c.Names)
	if n == 0 {
		return &FormatError{Field: "name", Got: 0, Want: 1, Message: "command has no joint names"}
	}
	if len(c.Position) != 0 && len(c.Position) != n {
		return &FormatError{Field: "position", Got: len(c.Position), Want: n}
	}
	if len(c.Velocity) != 0 && len(c.Velocity) != n {
		return &FormatError{Field: "velocity", Got: len(c.Velocity), Want: n}
	}
	for i, v := range c.Position {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &FormatError{Field: fmt.Sprintf("position[%d]", i), Got: n, Want: n, Message: "value is not finite"}
		}
	}
	for i, v := range c.Velocity {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return &FormatError{Field: fmt.Sprintf("velocity[%d]", i), Got: n, Want: n, Message: "value is not finite"}
		}
	}
	return nil
}

// ErrCodeFormatMismatch is the code carried by every FormatError.
const ErrCodeFormatMismatch = "FORMAT_MISMATCH"

// FormatError reports a command or recording whose arrays do not match the
// joint-name count.
type FormatError struct {
	Field   string
	Got     int
	Want    int
	Message string
}

func (e *FormatError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s: %s", ErrCodeFormatMismatch, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s has %d entries, want 0 or %d", ErrCodeFormatMismatch, e.Field, e.Got, e.Want)
}

// IsFormatError returns true if err is or wraps a FormatError.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}

// TrajectorySpec is the compiled description of one run.
type TrajectorySpec struct {
	Name     string        `json:"name"`
	Joints   []string      `json:"joints"`
	Period   time.Duration `json:"period"`
	Topic    string        `json:"topic"`
	FrameID  string        `json:"frame_id"`
	MaxTicks int64         `json:"max_ticks,omitempty"` // 0 = unbounded
	Gate     GateSpec      `json:"gate"`
	Strategy StrategySpec  `json:"strategy"`
}

// Default values applied by the compiler when a field is omitted.
const (
	DefaultPeriod  = 10 * time.Millisecond // 100 Hz
	DefaultTopic   = "/joint_states"
	DefaultFrameID = "world"
	DefaultPoll    = 50 * time.Millisecond
)

// GateSpec bounds the startup wait for a subscriber.
type GateSpec struct {
	// Timeout fails the run if no subscriber attaches in time. 0 waits until
	// the run is interrupted.
	Timeout time.Duration `json:"timeout"`

	// Poll caps the interval between subscriber-count checks when the bus
	// attach event is missed.
	Poll time.Duration `json:"poll"`
}

// Strategy kinds understood by the trajectory package.
const (
	StrategyLinear   = "linear"
	StrategySinusoid = "sinusoid"
	StrategySpline   = "spline"
	StrategyHold     = "hold"
)

// StrategySpec selects and parameterizes a trajectory strategy.
// Exactly one of the parameter blocks matching Kind is set.
type StrategySpec struct {
	Kind     string          `json:"kind"`
	Linear   *LinearParams   `json:"linear,omitempty"`
	Sinusoid *SinusoidParams `json:"sinusoid,omitempty"`
	Spline   *SplineParams   `json:"spline,omitempty"`
	Hold     *HoldParams     `json:"hold,omitempty"`
}

// LinearParams: q = origin + rate*t.
type LinearParams struct {
	Origin []float64 `json:"origin,omitempty"` // defaults to zeros
	Rates  []float64 `json:"rates"`
}

// SinusoidParams: q = offset + amplitude*sin(2*pi*frequency*t + phase).
type SinusoidParams struct {
	Offset      []float64 `json:"offset,omitempty"`
	Amplitude   []float64 `json:"amplitude"`
	FrequencyHz []float64 `json:"frequency_hz"`
	Phase       []float64 `json:"phase,omitempty"`
}

// SplineParams describes cubic segments through waypoints.
// Waypoints[0] is the pose at t=0; its Duration is ignored.
type SplineParams struct {
	Waypoints []Waypoint `json:"waypoints"`
	Cycle     bool       `json:"cycle,omitempty"`
}

// Waypoint is a pose reached Duration after the previous waypoint.
type Waypoint struct {
	Position []float64     `json:"position"`
	Velocity []float64     `json:"velocity,omitempty"` // defaults to zeros
	Duration time.Duration `json:"duration"`
}

// HoldParams keeps every joint at a fixed position.
type HoldParams struct {
	Positions []float64 `json:"positions"`
}
