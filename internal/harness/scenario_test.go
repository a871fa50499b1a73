package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestSpec writes a one-trajectory CUE file into dir/specs.
func createTestSpec(t *testing.T, dir, name string) string {
	t.Helper()
	specsDir := filepath.Join(dir, "specs")
	require.NoError(t, os.MkdirAll(specsDir, 0755))
	specPath := filepath.Join(specsDir, name)
	content := `trajectory: demo: {
	joints: ["pan", "tilt"]
	strategy: linear: {rates: [-1, 2]}
}
`
	require.NoError(t, os.WriteFile(specPath, []byte(content), 0644))
	return specPath
}

func writeScenario(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	dir := t.TempDir()
	createTestSpec(t, dir, "demo.cue")

	path := writeScenario(t, dir, `
name: test_scenario
description: "Test scenario for validation"
spec: specs/demo.cue
ticks: 3
complete_at:
  tick: 2
  reason: done
expect:
  reason: done
  ticks: 2
  states: [Initializing, Running, Terminating, Terminated]
`)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, filepath.Join(dir, "specs", "demo.cue"), scenario.Spec)
	assert.Equal(t, 3, scenario.Ticks)
	assert.Equal(t, 1, scenario.SubscriberCount())
	require.NotNil(t, scenario.CompleteAt)
	assert.Equal(t, 2, scenario.CompleteAt.Tick)
	assert.Equal(t, "done", scenario.CompleteAt.Reason)
	assert.Nil(t, scenario.InterruptAt)
	require.NotNil(t, scenario.Expect.Ticks)
	assert.Equal(t, int64(2), *scenario.Expect.Ticks)
	assert.Nil(t, scenario.Expect.Published)
	assert.Len(t, scenario.Expect.States, 4)
}

func TestLoadScenario_AbsoluteSpecPath(t *testing.T) {
	dir := t.TempDir()
	specPath := createTestSpec(t, dir, "demo.cue")

	path := writeScenario(t, dir, `
name: abs
description: "absolute spec path"
spec: `+specPath+`
ticks: 1
`)
	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	assert.Equal(t, specPath, scenario.Spec)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	dir := t.TempDir()
	createTestSpec(t, dir, "demo.cue")

	path := writeScenario(t, dir, `
name: typo
description: "misspelled field"
spec: specs/demo.cue
ticks: 1
interupt_at: 1
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
	assert.Contains(t, err.Error(), "interupt_at")
}

func TestLoadScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing name",
			body:    "description: d\nspec: specs/demo.cue\n",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			body:    "name: n\nspec: specs/demo.cue\n",
			wantErr: "description is required",
		},
		{
			name:    "missing spec",
			body:    "name: n\ndescription: d\n",
			wantErr: "spec is required",
		},
		{
			name:    "spec not found",
			body:    "name: n\ndescription: d\nspec: specs/nope.cue\n",
			wantErr: "spec file not found",
		},
		{
			name:    "negative ticks",
			body:    "name: n\ndescription: d\nspec: specs/demo.cue\nticks: -1\n",
			wantErr: "ticks must be non-negative",
		},
		{
			name:    "ticks without subscribers",
			body:    "name: n\ndescription: d\nspec: specs/demo.cue\nsubscribers: 0\nticks: 2\n",
			wantErr: "ticks require at least one subscriber",
		},
		{
			name:    "complete without reason",
			body:    "name: n\ndescription: d\nspec: specs/demo.cue\nticks: 2\ncomplete_at: {tick: 1}\n",
			wantErr: "complete_at: reason is required",
		},
		{
			name:    "complete after last tick",
			body:    "name: n\ndescription: d\nspec: specs/demo.cue\nticks: 2\ncomplete_at: {tick: 3, reason: x}\n",
			wantErr: "complete_at: tick must be within 0..2",
		},
		{
			name:    "interrupt after last tick",
			body:    "name: n\ndescription: d\nspec: specs/demo.cue\nticks: 2\ninterrupt_at: 5\n",
			wantErr: "interrupt_at must be within 0..2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			createTestSpec(t, dir, "demo.cue")
			path := writeScenario(t, dir, tt.body)

			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid scenario")
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadScenarios_SortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	createTestSpec(t, dir, "demo.cue")

	for _, name := range []string{"b.yaml", "a.yml"} {
		body := "name: " + name + "\ndescription: d\nspec: specs/demo.cue\nticks: 1\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644))

	scenarios, err := LoadScenarios(dir)
	require.NoError(t, err)
	require.Len(t, scenarios, 2)
	assert.Equal(t, "a.yml", scenarios[0].Name)
	assert.Equal(t, "b.yaml", scenarios[1].Name)
}

func TestLoadScenarios_Testdata(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)
	assert.Len(t, scenarios, 7)
}
