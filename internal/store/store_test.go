package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(path)
	assert.NoError(t, err, "database file was not created")
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		require.NoError(t, err, "Open() iteration %d", i)
		require.NoError(t, s.Close())
	}
}

func TestOpen_ReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "test.db")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.CreateRecording(ctx, testRecording("rec-1")))
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	rec, err := s2.ReadRecording(ctx, "rec-1")
	require.NoError(t, err)
	assert.Equal(t, "pan_tilt", rec.Name)
}

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	want := map[string]string{
		"journal_mode": "wal",
		"foreign_keys": "1",
		"busy_timeout": "5000",
		"user_version": "1",
	}
	for name, value := range want {
		got, err := s.pragma(name)
		require.NoError(t, err)
		assert.Equal(t, value, got, name)
	}
}

func TestOpen_RejectsNewerSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "future.db")

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.db.Exec("PRAGMA user_version = 99")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "newer than supported")
}

func TestOpen_MemoryStore(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.CreateRecording(ctx, testRecording("rec-mem")))
	n, err := s.CountMessages(ctx, "rec-mem")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestOpen_StampIndexExists(t *testing.T) {
	s := createTestStore(t)

	var name string
	err := s.db.QueryRow(
		`SELECT name FROM sqlite_master WHERE type = 'index' AND name = 'idx_messages_stamp'`,
	).Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "idx_messages_stamp", name)
}

func TestClose_NilDB(t *testing.T) {
	var s Store
	assert.NoError(t, s.Close())
}
