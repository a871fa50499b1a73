package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/roach88/jointstream/internal/recording"
)

// DefaultSettle is how long Follow waits after the last file event before
// re-reading the recording.
const DefaultSettle = 100 * time.Millisecond

// FollowOptions configure Follow.
type FollowOptions struct {
	Tokens []string
	Settle time.Duration
}

// Follow renders the recording in dir now and again every time it changes,
// until ctx is done or the recorder finishes the recording.
//
// A recording with no messages yet is not an error while following;
// rendering starts with the first message.
func Follow(ctx context.Context, dir string, opts FollowOptions, render func(*Series) error) error {
	if opts.Settle <= 0 {
		opts.Settle = DefaultSettle
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("follow: %w", err)
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("follow %s: %w", dir, err)
	}

	// refresh returns true once the recorder has finished.
	refresh := func() (bool, error) {
		md, err := recording.ReadMetadata(dir)
		if err != nil {
			return false, err
		}
		rec, err := recording.Open(dir)
		if err != nil {
			return false, err
		}
		defer rec.Close()

		s, err := Load(ctx, rec, opts.Tokens)
		if IsNoJointData(err) && !md.Finished() {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return md.Finished(), render(s)
	}

	done, err := refresh()
	if err != nil || done {
		return err
	}

	settle := time.NewTimer(opts.Settle)
	settle.Stop()
	defer settle.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return fmt.Errorf("follow %s: watcher closed", dir)
			}
			if relevant(ev) {
				settle.Reset(opts.Settle)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return fmt.Errorf("follow %s: watcher closed", dir)
			}
			if isOverflow(err) {
				slog.Warn("follow: watch overflow; forcing reload", "dir", dir, "error", err)
				settle.Reset(opts.Settle)
				continue
			}
			slog.Warn("follow: watch error", "dir", dir, "error", err)
		case <-settle.C:
			done, err := refresh()
			if err != nil || done {
				return err
			}
		}
	}
}

// isOverflow reports whether the watcher lost events, after which only a
// full reload is safe.
func isOverflow(err error) bool {
	return errors.Is(err, fsnotify.ErrEventOverflow)
}

// relevant reports whether ev touches the metadata or the message database
// (including its WAL and shared-memory files).
func relevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	base := filepath.Base(ev.Name)
	return base == recording.MetadataFile || strings.HasPrefix(base, recording.MessagesFile)
}
