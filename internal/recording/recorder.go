package recording

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/jointstream/internal/bus"
	"github.com/roach88/jointstream/internal/ir"
	"github.com/roach88/jointstream/internal/store"
)

// maxBatch bounds how many queued commands are written per transaction.
const maxBatch = 64

// Options describe a new recording.
type Options struct {
	// Name labels the recording; it prefixes the directory name.
	Name  string
	RunID string
	Topic string

	Joints []string
	Period time.Duration

	// ID defaults to a fresh UUIDv7.
	ID string

	// Buffer is the bus subscription buffer. Defaults to bus.DefaultBuffer.
	Buffer int

	// Now defaults to time.Now.
	Now func() time.Time
}

// Recorder appends every command published on a topic to a recording.
//
// A single goroutine owns the store; Close stops it and finalizes metadata.
type Recorder struct {
	dir   string
	md    Metadata
	store *store.Store
	sub   *bus.Subscription
	now   func() time.Time

	done chan struct{}

	mu    sync.Mutex
	count int64
	err   error

	closeOnce sync.Once
	closeErr  error
}

// Create makes a new recording directory under workdir and subscribes to
// opts.Topic on b. The recording is live as soon as Create returns.
func Create(workdir string, b bus.Bus, opts Options) (*Recorder, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("create recording: %w", err)
		}
		opts.ID = id.String()
	}
	if opts.Topic == "" {
		opts.Topic = ir.DefaultTopic
	}
	if opts.Name == "" {
		opts.Name = "recording"
	}

	started := opts.Now().UTC()
	dir := filepath.Join(workdir, dirName(opts.Name, started))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create recording: %w", err)
	}

	md := Metadata{
		ID:        opts.ID,
		Name:      opts.Name,
		RunID:     opts.RunID,
		Topic:     opts.Topic,
		Joints:    append([]string(nil), opts.Joints...),
		Period:    Duration(opts.Period),
		StartedAt: started,
		Storage:   MessagesFile,
	}
	if err := WriteMetadata(dir, md); err != nil {
		return nil, err
	}

	st, err := store.Open(filepath.Join(dir, MessagesFile))
	if err != nil {
		return nil, fmt.Errorf("create recording: %w", err)
	}
	err = st.CreateRecording(context.Background(), store.Recording{
		ID:        md.ID,
		Name:      md.Name,
		Topic:     md.Topic,
		Joints:    md.Joints,
		Period:    opts.Period,
		StartedAt: started,
	})
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("create recording: %w", err)
	}

	r := &Recorder{
		dir:   dir,
		md:    md,
		store: st,
		sub:   b.Subscribe(opts.Topic, opts.Buffer),
		now:   opts.Now,
		done:  make(chan struct{}),
	}
	go r.run()

	slog.Info("recording started", "dir", dir, "topic", opts.Topic, "id", md.ID)
	return r, nil
}

// dirName is <name>_<UTC start>, e.g. pan_tilt_20260102-030405.000.
func dirName(name string, started time.Time) string {
	return fmt.Sprintf("%s_%s", name, started.Format("20060102-150405.000"))
}

// Dir returns the recording directory.
func (r *Recorder) Dir() string {
	return r.dir
}

// ID returns the recording id.
func (r *Recorder) ID() string {
	return r.md.ID
}

// Count returns how many commands have been written so far.
func (r *Recorder) Count() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// run is the single writer. It drains whatever is queued into one batch so a
// burst costs one transaction.
func (r *Recorder) run() {
	defer close(r.done)

	ctx := context.Background()
	ch := r.sub.C()
	batch := make([]ir.JointCommand, 0, maxBatch)

	for cmd := range ch {
		batch = append(batch[:0], cmd)
	drain:
		for len(batch) < maxBatch {
			select {
			case next, ok := <-ch:
				if !ok {
					break drain
				}
				batch = append(batch, next)
			default:
				break drain
			}
		}

		r.mu.Lock()
		failed := r.err != nil
		first := r.count + 1
		r.mu.Unlock()
		if failed {
			continue
		}

		err := r.store.AppendMessages(ctx, r.md.ID, first, batch)

		r.mu.Lock()
		if err != nil {
			r.err = err
		} else {
			r.count += int64(len(batch))
		}
		r.mu.Unlock()

		if err != nil {
			slog.Error("recording write failed", "dir", r.dir, "seq", first, "error", err)
		}
	}
}

// finalMetadata stamps the end of a recording. A recording is complete only
// if every published command reached the store: a write error or a drop on
// the subscription leaves a gap.
func finalMetadata(md Metadata, ended time.Time, count int64, dropped uint64, writeErr error) Metadata {
	ended = ended.UTC()
	md.EndedAt = &ended
	md.MessageCount = count
	md.Dropped = dropped
	md.Complete = writeErr == nil && dropped == 0
	return md
}

// Close detaches from the bus, writes what is still queued and marks the
// recording complete when nothing was lost. It returns the first write
// error, if any. Safe to call more than once.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() {
		r.closeErr = r.close()
	})
	return r.closeErr
}

func (r *Recorder) close() error {
	r.sub.Unsubscribe()
	<-r.done
	dropped := r.sub.Dropped()

	r.mu.Lock()
	writeErr := r.err
	count := r.count
	r.mu.Unlock()

	md := finalMetadata(r.md, r.now(), count, dropped, writeErr)

	if dropped > 0 {
		slog.Warn("recording dropped messages", "dir", r.dir, "dropped", dropped)
	}

	mdErr := WriteMetadata(r.dir, md)
	storeErr := r.store.Close()

	slog.Info("recording finished", "dir", r.dir, "messages", count, "complete", md.Complete)

	switch {
	case writeErr != nil:
		return fmt.Errorf("recording %s: %w", r.dir, writeErr)
	case mdErr != nil:
		return mdErr
	case storeErr != nil:
		return fmt.Errorf("recording %s: close store: %w", r.dir, storeErr)
	}
	return nil
}
