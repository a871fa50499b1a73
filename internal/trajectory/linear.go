package trajectory

import "github.com/roach88/jointstream/internal/ir"

// Linear moves every joint at a constant rate: q = origin + rate*t.
type Linear struct {
	origin []float64
	rates  []float64
}

// NewLinear builds a Linear strategy for n joints. Origin defaults to zeros.
func NewLinear(p ir.LinearParams, n int) (*Linear, error) {
	rates, err := vector(ir.StrategyLinear, "rates", p.Rates, n, true)
	if err != nil {
		return nil, err
	}
	origin, err := vector(ir.StrategyLinear, "origin", p.Origin, n, false)
	if err != nil {
		return nil, err
	}
	return &Linear{origin: origin, rates: rates}, nil
}

func (l *Linear) Init(joints ir.JointSet) (State, error) {
	return nil, checkJoints(ir.StrategyLinear, joints, len(l.rates))
}

func (l *Linear) Evaluate(t float64, _ State) (Sample, error) {
	s := Sample{
		Position: make([]float64, len(l.rates)),
		Velocity: make([]float64, len(l.rates)),
	}
	for i, r := range l.rates {
		s.Position[i] = l.origin[i] + r*t
		s.Velocity[i] = r
	}
	return s, nil
}
