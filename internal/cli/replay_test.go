package cli

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplayMatches(t *testing.T) {
	workdir := t.TempDir()
	writeRecording(t, workdir, "pan_tilt", recordEpoch, panTiltCommands(4))

	buf := &bytes.Buffer{}
	cmd := NewReplayCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{testSpecsDir, "--dir", workdir})

	require.NoError(t, cmd.Execute(), buf.String())

	output := buf.String()
	assert.Contains(t, output, "Trajectory: pan_tilt")
	assert.Contains(t, output, "Messages:   4")
	assert.Contains(t, output, "✓ Commands match the trajectory")
	assert.Contains(t, output, "✓ Cadence is exactly one period per message")
}

func TestReplayRecordedRun(t *testing.T) {
	workdir := recordHold(t)

	buf := &bytes.Buffer{}
	cmd := NewReplayCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{testSpecsDir, "latest", "--dir", workdir})

	require.NoError(t, cmd.Execute(), buf.String())

	var resp struct {
		Status string       `json:"status"`
		Data   ReplayResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "hold_pose", resp.Data.Trajectory)
	assert.Equal(t, 3, resp.Data.Messages)
	assert.True(t, resp.Data.Deterministic)
	assert.True(t, resp.Data.CadenceOK)
	assert.Equal(t, resp.Data.RecordedDigest, resp.Data.ExpectedDigest)
}

func TestReplayMismatch(t *testing.T) {
	workdir := t.TempDir()
	cmds := panTiltCommands(3)
	cmds[1].Position[0] = 5
	writeRecording(t, workdir, "pan_tilt", recordEpoch, cmds)

	buf := &bytes.Buffer{}
	cmd := NewReplayCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{testSpecsDir, "--dir", workdir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "✗ Commands differ from the trajectory (first at seq 2)")
	assert.Contains(t, buf.String(), "✓ Cadence is exactly one period per message")
}

func TestReplayIrregularCadence(t *testing.T) {
	workdir := t.TempDir()
	writeRecording(t, workdir, "pan_tilt", recordEpoch,
		panTiltCommands(4, 10*time.Millisecond, 15*time.Millisecond))

	buf := &bytes.Buffer{}
	cmd := NewReplayCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{testSpecsDir, "--dir", workdir})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Data ReplayResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.False(t, resp.Data.CadenceOK)
	assert.Equal(t, []int64{3}, resp.Data.CadenceErrors)
	assert.False(t, resp.Data.Deterministic)
	assert.Equal(t, int64(3), resp.Data.FirstMismatch)
}

func TestReplayUnknownTrajectory(t *testing.T) {
	workdir := t.TempDir()
	writeRecording(t, workdir, "pan_tilt", recordEpoch, panTiltCommands(2))

	buf := &bytes.Buffer{}
	cmd := NewReplayCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{testSpecsDir, "--dir", workdir, "--name", "elbow"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), ErrCodeNoSuchName)
}

func TestReplayRecordingNotFound(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewReplayCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{testSpecsDir, "missing", "--dir", t.TempDir()})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), `recording "missing" not found`)
}
