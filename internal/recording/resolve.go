package recording

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/roach88/jointstream/internal/store"
)

// Latest selects the most recently modified recording.
const Latest = "latest"

// Entry is a recording found in a working directory.
type Entry struct {
	Dir      string
	Metadata Metadata
	ModTime  time.Time
}

// List returns every recording directly under workdir, oldest first by
// metadata.yaml modification time. Directories without metadata.yaml are
// skipped; unreadable metadata is skipped with a warning.
func List(workdir string) ([]Entry, error) {
	paths, err := filepath.Glob(filepath.Join(workdir, "*", MetadataFile))
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}

	entries := make([]Entry, 0, len(paths))
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		dir := filepath.Dir(p)
		md, err := ReadMetadata(dir)
		if err != nil {
			slog.Warn("skipping recording", "dir", dir, "error", err)
			continue
		}
		entries = append(entries, Entry{Dir: dir, Metadata: md, ModTime: info.ModTime()})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].ModTime.Equal(entries[j].ModTime) {
			return entries[i].ModTime.Before(entries[j].ModTime)
		}
		return entries[i].Dir < entries[j].Dir
	})
	return entries, nil
}

// Resolve maps a selector to a recording directory.
//
// The selector is "latest" (or empty), a path to a recording directory, or
// the name of a directory under workdir.
func Resolve(workdir, selector string) (string, error) {
	if selector == "" || selector == Latest {
		entries, err := List(workdir)
		if err != nil {
			return "", err
		}
		if len(entries) == 0 {
			return "", notFound("no recordings in %s", workdir)
		}
		return entries[len(entries)-1].Dir, nil
	}

	candidates := []string{selector}
	if !filepath.IsAbs(selector) {
		candidates = append(candidates, filepath.Join(workdir, selector))
	}
	for _, dir := range candidates {
		if _, err := os.Stat(filepath.Join(dir, MetadataFile)); err == nil {
			return dir, nil
		}
	}
	return "", notFound("recording %q not found in %s", selector, workdir)
}

// Recording is an opened recording directory.
type Recording struct {
	Dir      string
	Metadata Metadata
	store    *store.Store
}

// Open opens the recording in dir for reading. It may still be written by a
// running recorder, or be left incomplete by a killed one; check
// Metadata.Complete.
func Open(dir string) (*Recording, error) {
	md, err := ReadMetadata(dir)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(filepath.Join(dir, md.Storage))
	if err != nil {
		return nil, fmt.Errorf("open recording %s: %w", dir, err)
	}
	return &Recording{Dir: dir, Metadata: md, store: st}, nil
}

// DBPath returns the path of the message database.
func (r *Recording) DBPath() string {
	return filepath.Join(r.Dir, r.Metadata.Storage)
}

// Messages returns every recorded command in arrival order.
func (r *Recording) Messages(ctx context.Context) ([]store.Message, error) {
	return r.store.ReadMessages(ctx, r.Metadata.ID)
}

// MessagesAfter returns the commands recorded after seq.
func (r *Recording) MessagesAfter(ctx context.Context, seq int64) ([]store.Message, error) {
	return r.store.ReadMessagesAfter(ctx, r.Metadata.ID, seq)
}

// Count returns the number of stored commands. For incomplete recordings
// this is more reliable than Metadata.MessageCount.
func (r *Recording) Count(ctx context.Context) (int64, error) {
	return r.store.CountMessages(ctx, r.Metadata.ID)
}

// Close releases the database.
func (r *Recording) Close() error {
	return r.store.Close()
}
