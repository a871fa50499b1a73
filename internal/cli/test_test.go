package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	harnessScenarios = filepath.Join("..", "harness", "testdata", "scenarios")
	harnessGolden    = filepath.Join("..", "harness", "testdata", "golden")
)

// writeScenarioDir creates a scenarios directory holding the pan_tilt spec
// and one scenario file per entry of scenarios (file name -> YAML).
func writeScenarioDir(t *testing.T, scenarios map[string]string) string {
	t.Helper()
	dir := t.TempDir()

	spec, err := os.ReadFile(filepath.Join(testSpecsDir, "pan_tilt.cue"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "pan_tilt.cue"), spec, 0644))

	for name, content := range scenarios {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

const passingScenario = `name: three_ticks
description: "three pan/tilt ticks"
spec: pan_tilt.cue
ticks: 3
expect:
  reason: Interrupted
  published: 3
`

const failingScenario = `name: wrong_count
description: "expects more commands than are sent"
spec: pan_tilt.cue
ticks: 2
expect:
  published: 5
`

func TestTestCommandMissingArgs(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestTestCommandNonExistentScenariosDir(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"/nonexistent/scenarios"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "scenarios directory not found")
}

func TestTestCommandEmptyScenariosDir(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{t.TempDir()})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "No scenarios found")
}

func TestTestCommandEmptyScenariosDirJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{t.TempDir()})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, resp.Data.Total)
	assert.Empty(t, resp.Data.Scenarios)
}

func TestTestCommandHarnessScenarios(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{harnessScenarios, "--golden", harnessGolden})

	require.NoError(t, cmd.Execute(), buf.String())

	output := buf.String()
	assert.Contains(t, output, "✓ linear_interrupt (Interrupted after 3 ticks)")
	assert.Contains(t, output, "✓ spline_finish (Trajectory complete after 5 ticks)")
	assert.Contains(t, output, "Test Summary: 7 passed, 0 failed, 7 total")
	assert.Contains(t, output, "✓ All scenarios passed")
}

func TestTestCommandFilter(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{harnessScenarios, "--golden", harnessGolden, "--filter", "*_interrupt"})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Data TestResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	require.Equal(t, 1, resp.Data.Total)
	assert.Equal(t, "linear_interrupt", resp.Data.Scenarios[0].Name)
	assert.True(t, resp.Data.Scenarios[0].Pass)
}

func TestTestCommandInvalidFilter(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{harnessScenarios, "--filter", "[bad"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid filter pattern")
}

func TestTestCommandUpdateThenCompare(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{"three_ticks.yaml": passingScenario})
	goldenPath := filepath.Join(dir, "golden", "three_ticks.golden")

	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir, "--update"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "✓ three_ticks (golden updated)")

	golden, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(golden)), "\n")
	assert.Equal(t, `{"run_id":"test-run-default","scenario":"three_ticks"}`, lines[0])
	assert.Contains(t, lines[len(lines)-1], `"type":"outcome"`)

	buf.Reset()
	cmd = NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "✓ three_ticks (Interrupted after 3 ticks)")
}

func TestTestCommandGoldenMismatch(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{"three_ticks.yaml": passingScenario})
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "golden"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "three_ticks.golden"), []byte("stale\n"), 0644))

	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "✗ three_ticks")
	assert.Contains(t, buf.String(), "trace does not match golden file at line 1")
	assert.Contains(t, buf.String(), "want: stale")
}

func TestCompareGolden(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scenario.golden")

	assert.NoError(t, compareGolden(path, []byte("a\n")), "missing golden file is not a failure")

	require.NoError(t, os.WriteFile(path, []byte("a\nb\n"), 0644))
	assert.NoError(t, compareGolden(path, []byte("a\nb\n")))

	err := compareGolden(path, []byte("a\nc\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at line 2")
	assert.Contains(t, err.Error(), "got:  c")

	err = compareGolden(path, []byte("a"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "got:  <end of trace>")
}

func TestTestCommandFailingScenarioJSON(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{
		"three_ticks.yaml": passingScenario,
		"wrong_count.yaml": failingScenario,
	})

	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string     `json:"status"`
		Data   TestResult `json:"data"`
		Error  *CLIError  `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Failed)

	failed := resp.Data.Scenarios[1]
	assert.Equal(t, "wrong_count", failed.Name)
	assert.False(t, failed.Pass)
	require.NotEmpty(t, failed.Errors)
	assert.Contains(t, failed.Errors[0], "published")
}

func TestTestCommandInvalidScenario(t *testing.T) {
	dir := writeScenarioDir(t, map[string]string{
		"broken.yaml": "name: broken\nspec: pan_tilt.cue\n",
	})

	buf := &bytes.Buffer{}
	cmd := NewTestCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{dir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, buf.String(), "✗ broken.yaml")
	assert.Contains(t, buf.String(), "failed to load scenario")
	assert.Contains(t, buf.String(), "description is required")
}
