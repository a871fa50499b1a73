package harness

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// AssertionError is returned when an expectation fails.
// It includes the trace to help debug the failure.
type AssertionError struct {
	Field    string       // expectation that failed
	Expected string       // human-readable expected outcome
	Actual   string       // human-readable actual outcome
	Trace    []TraceEvent // full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Expectation failed: %s\n", e.Field)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for i, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s\n", i+1, describe(event))
		}
	}

	return buf.String()
}

func describe(e TraceEvent) string {
	switch e.Type {
	case EventState:
		if e.Reason != "" {
			return fmt.Sprintf("state %s -> %s (%s)", e.From, e.To, e.Reason)
		}
		return fmt.Sprintf("state %s -> %s", e.From, e.To)
	case EventPublish:
		return fmt.Sprintf("publish tick=%d t=%s position=%v velocity=%v", e.AtTick, e.T, e.Position, e.Velocity)
	case EventComplete:
		return fmt.Sprintf("complete after %d ticks: %q", e.AtTick, e.Reason)
	default:
		return fmt.Sprintf("%s after %d ticks", e.Type, e.AtTick)
	}
}

// EvaluateExpectations checks result against expect and the stream
// properties every run must have. Returns one message per failure.
func EvaluateExpectations(result *Result, expect Expect) []string {
	var errs []error

	if expect.Reason != "" && result.Reason != expect.Reason {
		errs = append(errs, mismatch(result, "reason", expect.Reason, result.Reason))
	}
	if expect.Error != "" && result.ErrorCode != expect.Error {
		errs = append(errs, mismatch(result, "error", expect.Error, orNone(result.ErrorCode)))
	}
	if expect.Ticks != nil && result.Ticks != *expect.Ticks {
		errs = append(errs, mismatch(result, "ticks", fmt.Sprint(*expect.Ticks), fmt.Sprint(result.Ticks)))
	}
	if expect.Published != nil && result.Published != *expect.Published {
		errs = append(errs, mismatch(result, "published", fmt.Sprint(*expect.Published), fmt.Sprint(result.Published)))
	}
	if expect.Received != nil {
		for i, n := range result.Received {
			if n != *expect.Received {
				errs = append(errs, mismatch(result, fmt.Sprintf("received[%d]", i), fmt.Sprint(*expect.Received), fmt.Sprint(n)))
			}
		}
	}
	if expect.FinalT != nil && !finalTMatches(result.FinalT, *expect.FinalT) {
		errs = append(errs, mismatch(result, "final_t", fmt.Sprintf("%.9f", *expect.FinalT), fmt.Sprintf("%.9f", result.FinalT)))
	}
	if len(expect.States) > 0 && !slices.Equal(result.States, expect.States) {
		errs = append(errs, mismatch(result, "states", fmt.Sprint(expect.States), fmt.Sprint(result.States)))
	}

	if err := assertCadence(result.Trace); err != nil {
		errs = append(errs, err)
	}
	if err := assertPublishedAfterRunning(result.Trace); err != nil {
		errs = append(errs, err)
	}

	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return msgs
}

func mismatch(result *Result, field, expected, actual string) error {
	return &AssertionError{Field: field, Expected: expected, Actual: actual, Trace: result.Trace}
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}

// assertCadence checks that publishes are numbered 1..n and evenly spaced
// in virtual time, starting at t = 0.
func assertCadence(trace []TraceEvent) error {
	var pubs []TraceEvent
	for _, e := range trace {
		if e.Type == EventPublish {
			pubs = append(pubs, e)
		}
	}
	if len(pubs) == 0 {
		return nil
	}
	if pubs[0].T != 0 {
		return &AssertionError{Field: "cadence", Expected: "first publish at t=0", Actual: pubs[0].T.String(), Trace: trace}
	}

	var step time.Duration
	for i, p := range pubs {
		if p.AtTick != int64(i+1) {
			return &AssertionError{
				Field:    "cadence",
				Expected: fmt.Sprintf("publish %d for tick %d", i+1, i+1),
				Actual:   fmt.Sprintf("tick %d", p.AtTick),
				Trace:    trace,
			}
		}
		if i == 0 {
			continue
		}
		d := p.T - pubs[i-1].T
		if i == 1 {
			step = d
		}
		if d <= 0 || d != step {
			return &AssertionError{
				Field:    "cadence",
				Expected: fmt.Sprintf("publishes %s apart", step),
				Actual:   fmt.Sprintf("tick %d is %s after tick %d", p.AtTick, d, pubs[i-1].AtTick),
				Trace:    trace,
			}
		}
	}
	return nil
}

// assertPublishedAfterRunning checks that nothing was published before the
// engine entered Running or after it left it.
func assertPublishedAfterRunning(trace []TraceEvent) error {
	running := false
	for _, e := range trace {
		switch e.Type {
		case EventState:
			running = e.To == "Running"
		case EventPublish:
			if !running {
				return &AssertionError{
					Field:    "lifecycle",
					Expected: "publishes only while Running",
					Actual:   fmt.Sprintf("tick %d published outside Running", e.AtTick),
					Trace:    trace,
				}
			}
		}
	}
	return nil
}
