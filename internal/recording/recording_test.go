package recording

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/jointstream/internal/bus"
	"github.com/roach88/jointstream/internal/ir"
)

var testStart = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func testOptions(name string) Options {
	return Options{
		Name:   name,
		RunID:  "run-1",
		Topic:  "/joint_states",
		Joints: []string{"pan", "tilt"},
		Period: 10 * time.Millisecond,
		ID:     "rec-" + name,
		Now:    func() time.Time { return testStart },
	}
}

func testCommand(i int) ir.JointCommand {
	return ir.JointCommand{
		Stamp:    ir.StampFromTime(testStart.Add(time.Duration(i) * 10 * time.Millisecond)),
		FrameID:  "world",
		Names:    []string{"pan", "tilt"},
		Position: []float64{-0.01 * float64(i), 0.02 * float64(i)},
	}
}

// record publishes n commands through a recorder and closes it.
func record(t *testing.T, workdir, name string, n int) string {
	t.Helper()
	b := bus.New()
	r, err := Create(workdir, b, testOptions(name))
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		require.NoError(t, b.Publish(context.Background(), "/joint_states", testCommand(i)))
	}
	require.NoError(t, r.Close())
	return r.Dir()
}

func TestRecorder_RecordsInArrivalOrder(t *testing.T) {
	workdir := t.TempDir()
	dir := record(t, workdir, "pan_tilt", 3)

	rec, err := Open(dir)
	require.NoError(t, err)
	defer rec.Close()

	assert.True(t, rec.Metadata.Complete)
	assert.Equal(t, int64(3), rec.Metadata.MessageCount)
	assert.Equal(t, "run-1", rec.Metadata.RunID)
	assert.Equal(t, 10*time.Millisecond, time.Duration(rec.Metadata.Period))
	require.NotNil(t, rec.Metadata.EndedAt)

	msgs, err := rec.Messages(context.Background())
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for i, m := range msgs {
		assert.Equal(t, int64(i+1), m.Seq)
		assert.Equal(t, testCommand(i).Position, m.Command.Position)
	}
}

func TestRecorder_SubscribesOnCreate(t *testing.T) {
	b := bus.New()
	r, err := Create(t.TempDir(), b, testOptions("gate"))
	require.NoError(t, err)
	defer r.Close()

	select {
	case <-b.Attached("/joint_states"):
	default:
		t.Fatal("recorder should attach to the topic")
	}
}

func TestRecorder_IncompleteUntilClosed(t *testing.T) {
	b := bus.New()
	r, err := Create(t.TempDir(), b, testOptions("live"))
	require.NoError(t, err)

	md, err := ReadMetadata(r.Dir())
	require.NoError(t, err)
	assert.False(t, md.Complete)
	assert.Nil(t, md.EndedAt)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close(), "second Close is a no-op")

	md, err = ReadMetadata(r.Dir())
	require.NoError(t, err)
	assert.True(t, md.Complete)
}

func TestRecorder_BurstOverflowIsIncomplete(t *testing.T) {
	const n = 2000
	b := bus.New()
	opts := testOptions("burst")
	opts.Buffer = 1
	r, err := Create(t.TempDir(), b, opts)
	require.NoError(t, err)

	for i := 0; i < n; i++ {
		require.NoError(t, b.Publish(context.Background(), "/joint_states", testCommand(i)))
	}
	require.NoError(t, r.Close())

	md, err := ReadMetadata(r.Dir())
	require.NoError(t, err)
	assert.Equal(t, int64(n), md.MessageCount+int64(md.Dropped), "every command is either stored or counted as dropped")
	assert.Equal(t, md.Dropped == 0, md.Complete)
}

func TestFinalMetadata(t *testing.T) {
	ended := testStart.Add(time.Second)
	tests := []struct {
		name         string
		dropped      uint64
		writeErr     error
		wantComplete bool
	}{
		{"clean", 0, nil, true},
		{"dropped", 3, nil, false},
		{"write error", 0, assert.AnError, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := finalMetadata(Metadata{Name: "pan_tilt"}, ended, 7, tt.dropped, tt.writeErr)
			assert.Equal(t, tt.wantComplete, md.Complete)
			assert.Equal(t, tt.dropped, md.Dropped)
			assert.Equal(t, int64(7), md.MessageCount)
			require.NotNil(t, md.EndedAt)
			assert.Equal(t, ended, *md.EndedAt)
		})
	}
}

func TestRecorder_DirectoryName(t *testing.T) {
	b := bus.New()
	r, err := Create(t.TempDir(), b, testOptions("pan_tilt"))
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, "pan_tilt_20260102-030405.000", filepath.Base(r.Dir()))
}

func TestMetadata_YAMLDuration(t *testing.T) {
	dir := t.TempDir()
	md := Metadata{ID: "x", Name: "n", Period: Duration(10 * time.Millisecond), StartedAt: testStart}
	require.NoError(t, WriteMetadata(dir, md))

	data, err := os.ReadFile(filepath.Join(dir, MetadataFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), "period: 10ms")

	got, err := ReadMetadata(dir)
	require.NoError(t, err)
	assert.Equal(t, md.Period, got.Period)
	assert.Equal(t, MessagesFile, got.Storage)
}

func TestReadMetadata_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := ReadMetadata(dir)
	assert.True(t, IsNotFound(err))

	require.NoError(t, os.WriteFile(filepath.Join(dir, MetadataFile), []byte("name: x\n"), 0o644))
	_, err = ReadMetadata(dir)
	assert.True(t, IsInvalidMetadata(err))

	require.NoError(t, os.WriteFile(filepath.Join(dir, MetadataFile), []byte("id: x\nperiod: soon\n"), 0o644))
	_, err = ReadMetadata(dir)
	assert.True(t, IsInvalidMetadata(err))
}

func TestResolve_Latest(t *testing.T) {
	workdir := t.TempDir()
	old := record(t, workdir, "old", 1)
	newer := record(t, workdir, "new", 1)

	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(old, MetadataFile), past, past))

	dir, err := Resolve(workdir, Latest)
	require.NoError(t, err)
	assert.Equal(t, newer, dir)

	dir, err = Resolve(workdir, "")
	require.NoError(t, err)
	assert.Equal(t, newer, dir)
}

func TestResolve_ByNameAndPath(t *testing.T) {
	workdir := t.TempDir()
	dir := record(t, workdir, "pan_tilt", 1)

	got, err := Resolve(workdir, filepath.Base(dir))
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	got, err = Resolve(t.TempDir(), dir)
	require.NoError(t, err)
	assert.Equal(t, dir, got)
}

func TestResolve_NotFound(t *testing.T) {
	workdir := t.TempDir()

	_, err := Resolve(workdir, Latest)
	assert.True(t, IsNotFound(err))

	_, err = Resolve(workdir, "missing")
	assert.True(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "RECORDING_NOT_FOUND")
}

func TestList_SkipsInvalid(t *testing.T) {
	workdir := t.TempDir()
	record(t, workdir, "good", 2)

	bad := filepath.Join(workdir, "bad")
	require.NoError(t, os.MkdirAll(bad, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(bad, MetadataFile), []byte(":\n"), 0o644))

	entries, err := List(workdir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "good", entries[0].Metadata.Name)
	assert.Equal(t, int64(2), entries[0].Metadata.MessageCount)
}

func TestOpen_IncompleteStillReadable(t *testing.T) {
	b := bus.New()
	r, err := Create(t.TempDir(), b, testOptions("live"))
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, b.Publish(context.Background(), "/joint_states", testCommand(0)))
	require.Eventually(t, func() bool { return r.Count() == 1 }, time.Second, 5*time.Millisecond)

	rec, err := Open(r.Dir())
	require.NoError(t, err)
	defer rec.Close()

	assert.False(t, rec.Metadata.Complete)
	n, err := rec.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
