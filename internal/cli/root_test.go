package cli

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "jointstream", cmd.Use)
	assert.Contains(t, cmd.Long, "timestamped joint commands")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"compile", "validate", "run", "complete", "series", "recordings", "replay", "test", "trace"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestStopAlias(t *testing.T) {
	cmd := NewRootCommand()
	subCmd, _, err := cmd.Find([]string{"stop"})
	require.NoError(t, err)
	assert.Equal(t, "complete", subCmd.Name())
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	logFlag := cmd.PersistentFlags().Lookup("log-file")
	require.NotNil(t, logFlag)
	assert.Equal(t, "", logFlag.DefValue)
}

func TestCompileCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	compileCmd, _, err := cmd.Find([]string{"compile"})
	require.NoError(t, err)

	outputFlag := compileCmd.Flags().Lookup("output")
	require.NotNil(t, outputFlag)
	assert.Equal(t, "o", outputFlag.Shorthand)
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	runCmd, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)

	for _, name := range []string{"name", "record", "ticks", "status-addr", "echo"} {
		assert.NotNil(t, runCmd.Flags().Lookup(name), name)
	}
	assert.Equal(t, "0", runCmd.Flags().Lookup("ticks").DefValue)
}

func TestCompleteCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	completeCmd, _, err := cmd.Find([]string{"complete"})
	require.NoError(t, err)

	reasonFlag := completeCmd.Flags().Lookup("reason")
	require.NotNil(t, reasonFlag)
	assert.Equal(t, DefaultCompleteReason, reasonFlag.DefValue)

	timeoutFlag := completeCmd.Flags().Lookup("timeout")
	require.NotNil(t, timeoutFlag)
	assert.Equal(t, "5s", timeoutFlag.DefValue)
}

func TestRecordingCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"series", "recordings", "replay", "trace"} {
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{name})
			require.NoError(t, err)

			dirFlag := subCmd.Flags().Lookup("dir")
			require.NotNil(t, dirFlag)
			assert.Equal(t, ".", dirFlag.DefValue)
		})
	}
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	updateFlag := testCmd.Flags().Lookup("update")
	require.NotNil(t, updateFlag)
	assert.Equal(t, "false", updateFlag.DefValue)

	filterFlag := testCmd.Flags().Lookup("filter")
	require.NotNil(t, filterFlag)
}

func TestTraceCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	traceCmd, _, err := cmd.Find([]string{"trace"})
	require.NoError(t, err)

	require.NotNil(t, traceCmd.Flags().Lookup("after"))
	require.NotNil(t, traceCmd.Flags().Lookup("limit"))
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "invalid", "compile", "."})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestLogFile(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	logPath := filepath.Join(t.TempDir(), "jointstream.log")
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--log-file", logPath, "--verbose", "validate", testSpecsDir})

	require.NoError(t, cmd.Execute())
	slog.Debug("after run")

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "after run")
}
