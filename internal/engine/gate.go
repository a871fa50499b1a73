package engine

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/roach88/jointstream/internal/ir"
)

// gateAborted is returned by waitForSubscriber when the completion signal
// was written (by an interrupt or an external caller) while waiting.
type gateAborted struct{}

func (gateAborted) Error() string { return "startup gate aborted" }

// waitForSubscriber blocks until the output topic has at least one
// subscriber.
//
// The bus attach event wakes the gate immediately; the poll ticker bounds
// the wait if an attach was missed. Nothing is ever published while waiting.
// Returns nil once attached, gateAborted{} when the completion signal is
// set, or a SUBSCRIBER_TIMEOUT error.
func (e *Engine) waitForSubscriber(ctx context.Context) error {
	topic := e.publisher.Topic()
	if e.bus.SubscriberCount(topic) > 0 {
		return nil
	}

	poll := e.spec.Gate.Poll
	if poll <= 0 {
		poll = ir.DefaultPoll
	}
	pollTicker := time.NewTicker(poll)
	defer pollTicker.Stop()

	var timeout <-chan time.Time
	if e.spec.Gate.Timeout > 0 {
		timer := time.NewTimer(e.spec.Gate.Timeout)
		defer timer.Stop()
		timeout = timer.C
	}

	started := time.Now()
	progress := rate.Sometimes{First: 1, Interval: 5 * time.Second}

	for {
		progress.Do(func() {
			slog.Info("waiting for subscriber",
				"run_id", e.runID,
				"topic", topic,
				"waited", time.Since(started).Round(time.Millisecond),
			)
		})

		select {
		case <-ctx.Done():
			e.completion.TryComplete(ReasonInterrupted)
			return gateAborted{}
		case <-e.completion.Done():
			return gateAborted{}
		case <-timeout:
			return NewSubscriberTimeout(topic, e.spec.Gate.Timeout)
		case <-e.bus.Attached(topic):
		case <-pollTicker.C:
		}

		if e.bus.SubscriberCount(topic) > 0 {
			slog.Info("subscriber attached",
				"run_id", e.runID,
				"topic", topic,
				"waited", time.Since(started).Round(time.Millisecond),
			)
			return nil
		}
	}
}
