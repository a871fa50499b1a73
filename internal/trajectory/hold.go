package trajectory

import "github.com/roach88/jointstream/internal/ir"

// Hold keeps every joint at a fixed position with zero velocity.
type Hold struct {
	positions []float64
}

func NewHold(p ir.HoldParams, n int) (*Hold, error) {
	pos, err := vector(ir.StrategyHold, "positions", p.Positions, n, true)
	if err != nil {
		return nil, err
	}
	return &Hold{positions: pos}, nil
}

func (h *Hold) Init(joints ir.JointSet) (State, error) {
	return nil, checkJoints(ir.StrategyHold, joints, len(h.positions))
}

func (h *Hold) Evaluate(float64, State) (Sample, error) {
	pos := make([]float64, len(h.positions))
	copy(pos, h.positions)
	return Sample{Position: pos, Velocity: make([]float64, len(pos))}, nil
}
