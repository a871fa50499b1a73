package engine

import (
	"log/slog"
	"sync"
)

// Completion is a single-assignment cell holding the reason a run ended.
//
// The first write wins. Done is closed by that write; waiters then read the
// reason with Reason.
//
// Thread-safety: safe for concurrent use.
type Completion struct {
	mu     sync.Mutex
	reason string
	set    bool
	done   chan struct{}
}

// NewCompletion creates an unset completion signal.
func NewCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

// Complete stores reason. If a reason is already stored it is kept, the
// attempt is logged, and a COMPLETION_CONFLICT error is returned.
func (c *Completion) Complete(reason string) error {
	if c.TryComplete(reason) {
		return nil
	}
	stored, _ := c.Reason()
	slog.Error("completion signal written twice",
		"stored", stored,
		"rejected", reason,
	)
	return NewCompletionConflict(stored, reason)
}

// TryComplete stores reason if the signal is unset and reports whether it
// did. Used by the engine for conditions that may race an external writer.
func (c *Completion) TryComplete(reason string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.set {
		return false
	}
	c.reason = reason
	c.set = true
	close(c.done)
	return true
}

// Done returns a channel closed once a reason is stored.
func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Reason returns the stored reason and whether one is set.
func (c *Completion) Reason() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reason, c.set
}
