package harness

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/jointstream/internal/ir"
)

// TraceSnapshot captures the deterministic part of a scenario execution.
// Each line of its encoding is one canonical JSON object: a header, the
// trace events in order, and the outcome.
type TraceSnapshot struct {
	ScenarioName string
	RunID        string
	Trace        []TraceEvent
	Result       *Result
}

// Snapshot builds the snapshot of result for scenarioName.
func Snapshot(scenarioName string, result *Result) TraceSnapshot {
	return TraceSnapshot{
		ScenarioName: scenarioName,
		RunID:        result.RunID,
		Trace:        result.Trace,
		Result:       result,
	}
}

// Encode renders the snapshot as canonical JSON lines.
// The store digest is left out: it is covered by the replay tests and would
// make golden files unreadable.
func (s TraceSnapshot) Encode() ([]byte, error) {
	var buf bytes.Buffer

	write := func(obj map[string]any) error {
		line, err := ir.MarshalCanonical(obj)
		if err != nil {
			return err
		}
		buf.Write(line)
		buf.WriteByte('\n')
		return nil
	}

	if err := write(map[string]any{"scenario": s.ScenarioName, "run_id": s.RunID}); err != nil {
		return nil, err
	}
	for i, e := range s.Trace {
		if err := write(eventObject(e)); err != nil {
			return nil, fmt.Errorf("trace[%d]: %w", i, err)
		}
	}

	r := s.Result
	outcome := map[string]any{
		"type":       "outcome",
		"reason":     r.Reason,
		"ticks":      r.Ticks,
		"published":  r.Published,
		"elapsed_ns": int64(r.Elapsed),
		"states":     r.States,
		"received":   toAny(r.Received),
	}
	if r.ErrorCode != "" {
		outcome["error"] = r.ErrorCode
	}
	if err := write(outcome); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// eventObject flattens an event into canonical-friendly values.
func eventObject(e TraceEvent) map[string]any {
	obj := map[string]any{"type": e.Type}
	switch e.Type {
	case EventState:
		obj["from"] = e.From
		obj["to"] = e.To
		if e.Reason != "" {
			obj["reason"] = e.Reason
		}
	case EventPublish:
		obj["tick"] = e.AtTick
		obj["t_ns"] = int64(e.T)
		obj["position"] = nonNil(e.Position)
		obj["velocity"] = nonNil(e.Velocity)
	case EventComplete:
		obj["at_tick"] = e.AtTick
		obj["reason"] = e.Reason
		if e.Accepted != nil {
			obj["accepted"] = *e.Accepted
		}
	case EventInterrupt:
		obj["at_tick"] = e.AtTick
	}
	return obj
}

func nonNil(v []float64) []float64 {
	if v == nil {
		return []float64{}
	}
	return v
}

func toAny(v []int) []any {
	out := make([]any, len(v))
	for i, n := range v {
		out[i] = n
	}
	return out
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can check expectations as well.
// Test failure (via goldie) occurs if the trace doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result).Encode()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
