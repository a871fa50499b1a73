package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func int64Ptr(n int64) *int64 { return &n }

func TestRun_TestdataScenarios(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)

	for _, scenario := range scenarios {
		t.Run(scenario.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_LinearStream(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/linear_interrupt.yaml")
	require.NoError(t, err)

	result, err := Run(scenario)
	require.NoError(t, err)
	require.True(t, result.Pass, "errors: %v", result.Errors)

	assert.Equal(t, "test-run-linear", result.RunID)
	assert.Equal(t, []int{3}, result.Received)
	assert.NotEmpty(t, result.Digest)

	pubs := result.Publications()
	require.Len(t, pubs, 3)
	assert.InDeltaSlice(t, []float64{-0.02, 0.04}, pubs[2].Position, 1e-12)
	assert.Equal(t, []float64{-1, 2}, pubs[2].Velocity)
}

func TestRun_DigestIgnoresRunID(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/linear_interrupt.yaml")
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)

	scenario.RunID = "another-run"
	second, err := Run(scenario)
	require.NoError(t, err)

	assert.Equal(t, first.Digest, second.Digest)
}

func TestRun_CompletionConflict(t *testing.T) {
	// hold.cue stops itself after 2 ticks; the external write comes too late.
	scenario := &Scenario{
		Name:        "conflict",
		Description: "external completion after the tick limit",
		Spec:        "testdata/specs/hold.cue",
		Ticks:       2,
		CompleteAt:  &CompleteStep{Tick: 2, Reason: "Operator stop"},
		Expect:      Expect{Reason: "Tick limit reached", Ticks: int64Ptr(2)},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	var complete *TraceEvent
	for i := range result.Trace {
		if result.Trace[i].Type == EventComplete {
			complete = &result.Trace[i]
		}
	}
	require.NotNil(t, complete)
	require.NotNil(t, complete.Accepted)
	assert.False(t, *complete.Accepted)
}

func TestRun_CompleteDuringGate(t *testing.T) {
	dir := t.TempDir()
	spec := filepath.Join(dir, "wait.cue")
	require.NoError(t, os.WriteFile(spec, []byte(`trajectory: wait: {
	joints: ["a"]
	strategy: hold: {positions: [1]}
}
`), 0644))

	scenario := &Scenario{
		Name:        "gate_complete",
		Description: "completion while waiting for a subscriber",
		Spec:        spec,
		Subscribers: intPtr(0),
		CompleteAt:  &CompleteStep{Tick: 0, Reason: "Cancelled by operator"},
		Expect: Expect{
			Reason:    "Cancelled by operator",
			Ticks:     int64Ptr(0),
			Published: int64Ptr(0),
			States:    []string{"Initializing", "Terminating", "Terminated"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Received)
	assert.Empty(t, result.Digest)
}

func TestRun_FailedExpectation(t *testing.T) {
	scenario, err := LoadScenario("testdata/scenarios/linear_interrupt.yaml")
	require.NoError(t, err)
	scenario.Expect.Reason = "Trajectory complete"
	scenario.Expect.Ticks = int64Ptr(4)

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "Expectation failed: reason")
	assert.Contains(t, result.Errors[1], "Expectation failed: ticks")
}

func TestRun_WouldBlockForever(t *testing.T) {
	scenario := &Scenario{
		Name:        "stuck",
		Description: "no subscriber and no way out",
		Spec:        "testdata/specs/pan_tilt.cue",
		Subscribers: intPtr(0),
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing stops the run")
}

func TestRun_SpecErrors(t *testing.T) {
	dir := t.TempDir()
	two := filepath.Join(dir, "two.cue")
	require.NoError(t, os.WriteFile(two, []byte(`trajectory: a: {
	joints: ["x"]
	strategy: hold: {positions: [0]}
}
trajectory: b: {
	joints: ["x"]
	strategy: hold: {positions: [0]}
}
`), 0644))
	invalid := filepath.Join(dir, "invalid.cue")
	require.NoError(t, os.WriteFile(invalid, []byte(`trajectory: bad: {
	joints: ["x", "y"]
	strategy: hold: {positions: [0]}
}
`), 0644))

	tests := []struct {
		name       string
		spec       string
		trajectory string
		wantErr    string
	}{
		{"ambiguous", two, "", "2 trajectories defined"},
		{"unknown name", two, "c", `no trajectory named "c"`},
		{"invalid", invalid, "", "trajectory bad"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(&Scenario{Name: tt.name, Spec: tt.spec, Trajectory: tt.trajectory, Ticks: 1})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
