package trajectory

import (
	"fmt"
	"math"

	"github.com/roach88/jointstream/internal/ir"
)

// Spline interpolates cubic Hermite segments between waypoints.
//
// Waypoint 0 is the pose at t=0. Segment i runs from waypoint i to i+1 and
// lasts waypoints[i+1].Duration. Past the last waypoint the spline either
// holds the final pose and reports ReasonComplete, or wraps around when
// cycling.
type Spline struct {
	knots  []float64 // start time of each waypoint, knots[0] == 0
	pos    [][]float64
	vel    [][]float64
	total  float64
	cycle  bool
	joints int
}

type splineState struct {
	segment int // lookup hint only
}

// NewSpline builds a Spline for n joints. At least two waypoints are
// required and every waypoint after the first needs a positive duration.
func NewSpline(p ir.SplineParams, n int) (*Spline, error) {
	if len(p.Waypoints) < 2 {
		return nil, fmt.Errorf("%s: need at least 2 waypoints, got %d", ir.StrategySpline, len(p.Waypoints))
	}

	sp := &Spline{
		knots:  make([]float64, len(p.Waypoints)),
		pos:    make([][]float64, len(p.Waypoints)),
		vel:    make([][]float64, len(p.Waypoints)),
		cycle:  p.Cycle,
		joints: n,
	}
	for i, wp := range p.Waypoints {
		field := fmt.Sprintf("waypoints[%d]", i)
		pos, err := vector(ir.StrategySpline, field+".position", wp.Position, n, true)
		if err != nil {
			return nil, err
		}
		vel, err := vector(ir.StrategySpline, field+".velocity", wp.Velocity, n, false)
		if err != nil {
			return nil, err
		}
		sp.pos[i] = pos
		sp.vel[i] = vel

		if i == 0 {
			continue
		}
		if wp.Duration <= 0 {
			return nil, fmt.Errorf("%s: %s.duration must be positive, got %s", ir.StrategySpline, field, wp.Duration)
		}
		sp.knots[i] = sp.knots[i-1] + wp.Duration.Seconds()
	}
	sp.total = sp.knots[len(sp.knots)-1]
	return sp, nil
}

// Duration returns the time from the first to the last waypoint in seconds.
func (sp *Spline) Duration() float64 {
	return sp.total
}

func (sp *Spline) Init(joints ir.JointSet) (State, error) {
	if err := checkJoints(ir.StrategySpline, joints, sp.joints); err != nil {
		return nil, err
	}
	return &splineState{}, nil
}

func (sp *Spline) Evaluate(t float64, state State) (Sample, error) {
	st, ok := state.(*splineState)
	if !ok {
		return Sample{}, fmt.Errorf("%s: unexpected state %T", ir.StrategySpline, state)
	}

	switch {
	case t <= 0:
		return sp.pose(0, true), nil
	case t >= sp.total && !sp.cycle:
		return sp.pose(len(sp.pos)-1, false), nil
	case sp.cycle:
		t = math.Mod(t, sp.total)
	}

	seg := sp.locate(t, st.segment)
	st.segment = seg
	return sp.interpolate(seg, t), nil
}

// Finished reports completion once a non-cycling spline has reached its
// last waypoint.
func (sp *Spline) Finished(t float64, _ State) (string, bool) {
	if sp.cycle || t < sp.total {
		return "", false
	}
	return ReasonComplete, true
}

// locate returns the segment containing t, starting from hint.
func (sp *Spline) locate(t float64, hint int) int {
	last := len(sp.knots) - 2
	if hint < 0 || hint > last || t < sp.knots[hint] {
		hint = 0
	}
	for hint < last && t >= sp.knots[hint+1] {
		hint++
	}
	return hint
}

// pose returns waypoint i, with zero velocity once the spline has stopped.
func (sp *Spline) pose(i int, moving bool) Sample {
	out := Sample{Position: make([]float64, sp.joints), Velocity: make([]float64, sp.joints)}
	copy(out.Position, sp.pos[i])
	if moving {
		copy(out.Velocity, sp.vel[i])
	}
	return out
}

func (sp *Spline) interpolate(seg int, t float64) Sample {
	T := sp.knots[seg+1] - sp.knots[seg]
	s := (t - sp.knots[seg]) / T
	s2, s3 := s*s, s*s*s

	h00 := 2*s3 - 3*s2 + 1
	h10 := s3 - 2*s2 + s
	h01 := -2*s3 + 3*s2
	h11 := s3 - s2

	d00 := 6*s2 - 6*s
	d10 := 3*s2 - 4*s + 1
	d01 := -6*s2 + 6*s
	d11 := 3*s2 - 2*s

	p0, p1 := sp.pos[seg], sp.pos[seg+1]
	v0, v1 := sp.vel[seg], sp.vel[seg+1]

	out := Sample{Position: make([]float64, sp.joints), Velocity: make([]float64, sp.joints)}
	for j := 0; j < sp.joints; j++ {
		out.Position[j] = h00*p0[j] + h10*T*v0[j] + h01*p1[j] + h11*T*v1[j]
		out.Velocity[j] = (d00*p0[j]+d01*p1[j])/T + d10*v0[j] + d11*v1[j]
	}
	return out
}
