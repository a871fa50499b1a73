package trajectory

import (
	"math"

	"github.com/roach88/jointstream/internal/ir"
)

// Sinusoid oscillates each joint independently:
// q = offset + A*sin(2*pi*f*t + phase), with the analytic derivative as velocity.
type Sinusoid struct {
	offset    []float64
	amplitude []float64
	omega     []float64
	phase     []float64
}

// NewSinusoid builds a Sinusoid for n joints. Offset and phase default to zeros.
func NewSinusoid(p ir.SinusoidParams, n int) (*Sinusoid, error) {
	amp, err := vector(ir.StrategySinusoid, "amplitude", p.Amplitude, n, true)
	if err != nil {
		return nil, err
	}
	freq, err := vector(ir.StrategySinusoid, "frequency_hz", p.FrequencyHz, n, true)
	if err != nil {
		return nil, err
	}
	offset, err := vector(ir.StrategySinusoid, "offset", p.Offset, n, false)
	if err != nil {
		return nil, err
	}
	phase, err := vector(ir.StrategySinusoid, "phase", p.Phase, n, false)
	if err != nil {
		return nil, err
	}

	omega := make([]float64, n)
	for i, f := range freq {
		omega[i] = 2 * math.Pi * f
	}
	return &Sinusoid{offset: offset, amplitude: amp, omega: omega, phase: phase}, nil
}

func (s *Sinusoid) Init(joints ir.JointSet) (State, error) {
	return nil, checkJoints(ir.StrategySinusoid, joints, len(s.amplitude))
}

func (s *Sinusoid) Evaluate(t float64, _ State) (Sample, error) {
	n := len(s.amplitude)
	out := Sample{Position: make([]float64, n), Velocity: make([]float64, n)}
	for i := 0; i < n; i++ {
		arg := s.omega[i]*t + s.phase[i]
		out.Position[i] = s.offset[i] + s.amplitude[i]*math.Sin(arg)
		out.Velocity[i] = s.amplitude[i] * s.omega[i] * math.Cos(arg)
	}
	return out, nil
}
