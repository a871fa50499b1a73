package store

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/jointstream/internal/ir"
)

func TestCreateRecording_DefaultsVersions(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	require.NoError(t, s.CreateRecording(ctx, testRecording("rec-1")))

	rec, err := s.ReadRecording(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, ir.EngineVersion, rec.EngineVersion)
	assert.Equal(t, ir.SchemaVersion, rec.IRVersion)
}

func TestCreateRecording_DuplicateIgnored(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)

	first := testRecording("rec-1")
	second := testRecording("rec-1")
	second.Name = "other"

	require.NoError(t, s.CreateRecording(ctx, first))
	require.NoError(t, s.CreateRecording(ctx, second))

	rec, err := s.ReadRecording(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, "pan_tilt", rec.Name, "first write wins")
}

func TestAppendMessage_RequiresRecording(t *testing.T) {
	s := createTestStore(t)

	err := s.AppendMessage(context.Background(), "missing", 1, testCommand(0))
	assert.Error(t, err, "foreign key must reject orphan messages")
}

func TestAppendMessage_DuplicateSeqIgnored(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	require.NoError(t, s.CreateRecording(ctx, testRecording("rec-1")))

	require.NoError(t, s.AppendMessage(ctx, "rec-1", 1, testCommand(0)))
	require.NoError(t, s.AppendMessage(ctx, "rec-1", 1, testCommand(5)))

	msgs, err := s.ReadMessages(ctx, "rec-1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, testCommand(0).Position, msgs[0].Command.Position)
}

func TestAppendMessages_Batch(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	require.NoError(t, s.CreateRecording(ctx, testRecording("rec-1")))

	cmds := []ir.JointCommand{testCommand(0), testCommand(1), testCommand(2)}
	require.NoError(t, s.AppendMessages(ctx, "rec-1", 1, cmds))

	n, err := s.CountMessages(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestAppendMessages_Empty(t *testing.T) {
	s := createTestStore(t)
	assert.NoError(t, s.AppendMessages(context.Background(), "rec-1", 1, nil))
}

func TestAppendMessages_NonFiniteRollsBack(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	require.NoError(t, s.CreateRecording(ctx, testRecording("rec-1")))

	bad := testCommand(1)
	bad.Position = []float64{math.NaN(), 0}

	err := s.AppendMessages(ctx, "rec-1", 1, []ir.JointCommand{testCommand(0), bad})
	require.Error(t, err)

	n, err := s.CountMessages(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n, "batch must be atomic")
}

func TestAppendMessage_MismatchedLengthsStoredAsReceived(t *testing.T) {
	ctx := context.Background()
	s := createTestStore(t)
	require.NoError(t, s.CreateRecording(ctx, testRecording("rec-1")))

	cmd := testCommand(0)
	cmd.Position = []float64{1}
	require.NoError(t, s.AppendMessage(ctx, "rec-1", 1, cmd))

	msgs, err := s.ReadMessages(ctx, "rec-1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, []float64{1}, msgs[0].Command.Position)
	assert.True(t, ir.IsFormatError(msgs[0].Command.Validate()))
}
