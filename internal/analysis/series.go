package analysis

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/jointstream/internal/ir"
	"github.com/roach88/jointstream/internal/recording"
)

// All selects every joint.
const All = "all"

// JointSeries holds one joint's samples. Position or Velocity is nil when
// the recording carries no data of that kind.
type JointSeries struct {
	Name     string    `json:"name"`
	Index    int       `json:"index"`
	Position []float64 `json:"position,omitempty"`
	Velocity []float64 `json:"velocity,omitempty"`
}

// Series is the analysis result: one time axis shared by the selected joints.
type Series struct {
	Title string `json:"title"`

	// Start is the absolute time (seconds) subtracted from every sample.
	Start float64 `json:"start"`

	T      []float64     `json:"t"`
	Joints []JointSeries `json:"joints"`
}

// Len returns the number of samples.
func (s *Series) Len() int {
	return len(s.T)
}

// Load reads every message of rec and builds the series for tokens.
func Load(ctx context.Context, rec *recording.Recording, tokens []string) (*Series, error) {
	msgs, err := rec.Messages(ctx)
	if err != nil {
		return nil, err
	}
	cmds := make([]ir.JointCommand, len(msgs))
	for i, m := range msgs {
		cmds[i] = m.Command
	}
	s, err := Build(cmds, tokens)
	if err != nil {
		return nil, err
	}
	s.Title = rec.Metadata.Name
	return s, nil
}

// Build reconstructs the series from commands in arrival order.
//
// Joint names come from the first command; every later command must list
// the same names. tokens is nil, ["all"], or joint indices and names.
func Build(cmds []ir.JointCommand, tokens []string) (*Series, error) {
	if len(cmds) == 0 {
		return nil, &Error{Code: ErrCodeNoJointData, Message: "No joint data!"}
	}

	names := cmds[0].Names
	n := len(names)
	npos := len(cmds[0].Position)
	nvel := len(cmds[0].Velocity)

	for i, c := range cmds {
		if !slices.Equal(c.Names, names) {
			return nil, &Error{
				Code:    ErrCodeFormatMismatch,
				Message: fmt.Sprintf("message %d names %v differ from %v", i, c.Names, names),
			}
		}
		if len(c.Position) != npos {
			return nil, &Error{
				Code:    ErrCodeFormatMismatch,
				Message: fmt.Sprintf("message %d has %d positions, earlier messages %d", i, len(c.Position), npos),
			}
		}
		if len(c.Velocity) != nvel {
			return nil, &Error{
				Code:    ErrCodeFormatMismatch,
				Message: fmt.Sprintf("message %d has %d velocities, earlier messages %d", i, len(c.Velocity), nvel),
			}
		}
	}
	if npos != 0 && npos != n {
		return nil, &Error{Code: ErrCodeFormatMismatch, Message: fmt.Sprintf("Position data does not match %d joints", n)}
	}
	if nvel != 0 && nvel != n {
		return nil, &Error{Code: ErrCodeFormatMismatch, Message: fmt.Sprintf("Velocity data does not match %d joints", n)}
	}

	indices, err := Select(names, tokens)
	if err != nil {
		return nil, err
	}

	start := cmds[0].Stamp
	for _, c := range cmds[1:] {
		if c.Stamp.Sub(start) < 0 {
			start = c.Stamp
		}
	}

	s := &Series{
		Start:  start.Seconds(),
		T:      make([]float64, len(cmds)),
		Joints: make([]JointSeries, len(indices)),
	}
	for i, c := range cmds {
		s.T[i] = c.Stamp.Sub(start).Seconds()
	}
	for j, idx := range indices {
		js := JointSeries{Name: names[idx], Index: idx}
		if npos > 0 {
			js.Position = make([]float64, len(cmds))
		}
		if nvel > 0 {
			js.Velocity = make([]float64, len(cmds))
		}
		for i, c := range cmds {
			if npos > 0 {
				js.Position[i] = c.Position[idx]
			}
			if nvel > 0 {
				js.Velocity[i] = c.Velocity[idx]
			}
		}
		s.Joints[j] = js
	}
	return s, nil
}

// Select resolves joint tokens against names. Each token is tried as a
// numeric index first, then as a joint name. nil, empty and ["all"] select
// every joint in order.
func Select(names []string, tokens []string) ([]int, error) {
	if len(tokens) == 0 || (len(tokens) == 1 && tokens[0] == All) {
		all := make([]int, len(names))
		for i := range names {
			all[i] = i
		}
		return all, nil
	}

	indices := make([]int, 0, len(tokens))
	for _, tok := range tokens {
		idx, err := resolve(names, tok)
		if err != nil {
			return nil, err
		}
		indices = append(indices, idx)
	}
	return indices, nil
}

func resolve(names []string, tok string) (int, error) {
	byName := func() int {
		want := norm.NFC.String(tok)
		return slices.IndexFunc(names, func(n string) bool { return norm.NFC.String(n) == want })
	}
	if i, err := strconv.Atoi(tok); err == nil {
		if i >= 0 && i < len(names) {
			return i, nil
		}
		// A joint may be named "5"; fall through to the name lookup.
		if j := byName(); j >= 0 {
			return j, nil
		}
		return 0, &Error{
			Code:    ErrCodeJointNotFound,
			Message: fmt.Sprintf("Joint %d out of range 0...%d, known joints [%s]", i, len(names), strings.Join(names, ", ")),
		}
	}
	if j := byName(); j >= 0 {
		return j, nil
	}
	return 0, &Error{
		Code:    ErrCodeJointNotFound,
		Message: fmt.Sprintf("Joint '%s' not in known joints [%s]", tok, strings.Join(names, ", ")),
	}
}
