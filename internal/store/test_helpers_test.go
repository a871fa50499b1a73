package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/jointstream/internal/ir"
)

// createTestStore opens a fresh database under t.TempDir and closes it on cleanup.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "recording.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var testStart = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func testRecording(id string) Recording {
	return Recording{
		ID:        id,
		Name:      "pan_tilt",
		Topic:     "/joint_states",
		Joints:    []string{"pan", "tilt"},
		Period:    10 * time.Millisecond,
		StartedAt: testStart,
	}
}

func testCommand(i int) ir.JointCommand {
	return ir.JointCommand{
		Stamp:    ir.StampFromTime(testStart.Add(time.Duration(i) * 10 * time.Millisecond)),
		FrameID:  "world",
		Names:    []string{"pan", "tilt"},
		Position: []float64{-0.01 * float64(i), 0.005 * float64(i)},
		Velocity: []float64{-1, 0.5},
	}
}
