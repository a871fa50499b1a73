package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/jointstream/internal/ir"
	"github.com/roach88/jointstream/internal/recording"
	"github.com/roach88/jointstream/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Dir   string
	After int64
	Limit int
}

// TraceEvent is one recorded command in the timeline.
type TraceEvent struct {
	Seq      int64         `json:"seq"`
	T        time.Duration `json:"t_ns"`  // since the first recorded stamp
	Gap      time.Duration `json:"gap_ns"` // since the previous message, 0 for the first
	Digest   string        `json:"digest"`
	Position []float64     `json:"position"`
	Velocity []float64     `json:"velocity"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Recording string       `json:"recording"`
	Name      string       `json:"name"`
	RunID     string       `json:"run_id,omitempty"`
	Joints    []string     `json:"joints"`
	Complete  bool         `json:"complete"`
	Status    string       `json:"status"`
	Dropped   uint64       `json:"dropped,omitempty"`
	Timeline  []TraceEvent `json:"timeline"`
	Stats     TraceStats   `json:"stats"`
}

// TraceStats summarizes cadence over every message in the recording, not
// only the ones shown in the timeline.
type TraceStats struct {
	Messages      int           `json:"messages"`
	Period        time.Duration `json:"period_ns"`
	Span          time.Duration `json:"span_ns"`
	MinGap        time.Duration `json:"min_gap_ns"`
	MaxGap        time.Duration `json:"max_gap_ns"`
	CadenceErrors int           `json:"cadence_errors"`
	StreamDigest  string        `json:"stream_digest"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [recording|latest]",
		Short: "Show the message timeline of a recording",
		Long: `Show each recorded command with its sequence number, time since the first
stamp, gap to the previous stamp and content digest, followed by cadence
statistics and the stream digest of the whole recording.

A gap that is not exactly one period counts as a cadence error.

Examples:
  jointstream trace
  jointstream trace latest --after 100 --limit 20
  jointstream trace pan_tilt_20260102-030405.000 --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			selector := recording.Latest
			if len(args) == 1 {
				selector = args[0]
			}
			return runTrace(opts, selector, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Dir, "dir", ".", "directory holding recordings")
	cmd.Flags().Int64Var(&opts.After, "after", 0, "only show messages after this seq")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "show at most this many messages (0 = all)")

	return cmd
}

func runTrace(opts *TraceOptions, selector string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := commandContext(cmd)

	if opts.Limit < 0 || opts.After < 0 {
		return fail(formatter, ExitCommandError, ErrCodeGeneric, "--after and --limit must not be negative", nil)
	}

	dir, err := recording.Resolve(opts.Dir, selector)
	if err != nil {
		return recordingFailure(formatter, err)
	}
	rec, err := recording.Open(dir)
	if err != nil {
		return recordingFailure(formatter, err)
	}
	defer rec.Close()

	warnIncomplete(formatter, dir, rec.Metadata)

	msgs, err := rec.Messages(ctx)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	formatter.VerboseLog("Read %d message(s) from %s", len(msgs), rec.DBPath())

	stats, err := traceStats(msgs, time.Duration(rec.Metadata.Period))
	if err != nil {
		return fail(formatter, ExitFailure, ir.ErrCodeFormatMismatch, err.Error(), nil)
	}

	result := TraceResult{
		Recording: dir,
		Name:      rec.Metadata.Name,
		RunID:     rec.Metadata.RunID,
		Joints:    rec.Metadata.Joints,
		Complete:  rec.Metadata.Complete,
		Status:    completeStatus(rec.Metadata),
		Dropped:   rec.Metadata.Dropped,
		Timeline:  buildTimeline(msgs, opts.After, opts.Limit),
		Stats:     stats,
	}

	if formatter.Format == "json" {
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		return encoder.Encode(CLIResponse{Status: "ok", Data: result, RunID: result.RunID})
	}

	outputTraceText(formatter.Writer, result, opts.Verbose)
	return nil
}

// buildTimeline converts stored messages to timeline events. Times are
// relative to the first message of the recording, whatever the filter.
func buildTimeline(msgs []store.Message, after int64, limit int) []TraceEvent {
	timeline := []TraceEvent{}
	if len(msgs) == 0 {
		return timeline
	}

	first := msgs[0].Command.Stamp
	for i, m := range msgs {
		if m.Seq <= after {
			continue
		}
		if limit > 0 && len(timeline) == limit {
			break
		}
		ev := TraceEvent{
			Seq:      m.Seq,
			T:        m.Command.Stamp.Sub(first),
			Digest:   m.Digest,
			Position: m.Command.Position,
			Velocity: m.Command.Velocity,
		}
		if i > 0 {
			ev.Gap = m.Command.Stamp.Sub(msgs[i-1].Command.Stamp)
		}
		timeline = append(timeline, ev)
	}
	return timeline
}

// traceStats computes cadence statistics and the stream digest.
func traceStats(msgs []store.Message, period time.Duration) (TraceStats, error) {
	stats := TraceStats{Messages: len(msgs), Period: period}
	digest := ir.NewStreamDigest()

	for i, m := range msgs {
		if err := digest.Add(m.Command); err != nil {
			return stats, fmt.Errorf("seq %d: %w", m.Seq, err)
		}
		if i == 0 {
			continue
		}
		gap := m.Command.Stamp.Sub(msgs[i-1].Command.Stamp)
		if i == 1 || gap < stats.MinGap {
			stats.MinGap = gap
		}
		if gap > stats.MaxGap {
			stats.MaxGap = gap
		}
		if gap != period {
			stats.CadenceErrors++
		}
	}
	if len(msgs) > 1 {
		stats.Span = msgs[len(msgs)-1].Command.Stamp.Sub(msgs[0].Command.Stamp)
	}
	stats.StreamDigest = digest.Sum()
	return stats, nil
}

func outputTraceText(w io.Writer, result TraceResult, verbose bool) {
	fmt.Fprintf(w, "Trace for Recording: %s\n", result.Recording)
	fmt.Fprintf(w, "Trajectory: %s (%s)\n", result.Name, strings.Join(result.Joints, ", "))
	if result.RunID != "" {
		fmt.Fprintf(w, "Run: %s\n", result.RunID)
	}
	fmt.Fprintf(w, "Status: %s\n", result.Status)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no messages)")
	}
	for _, ev := range result.Timeline {
		marker := ""
		if ev.Seq > 1 && ev.Gap != result.Stats.Period {
			marker = "  !"
		}
		fmt.Fprintf(w, "  [%d] t=%s +%s %s pos=%s%s\n",
			ev.Seq, ev.T, ev.Gap, truncateID(ev.Digest), formatFloats(ev.Position), marker)
		if verbose {
			fmt.Fprintf(w, "       vel=%s\n", formatFloats(ev.Velocity))
		}
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Messages:       %d\n", result.Stats.Messages)
	fmt.Fprintf(w, "  Period:         %s\n", result.Stats.Period)
	fmt.Fprintf(w, "  Span:           %s\n", result.Stats.Span)
	fmt.Fprintf(w, "  Gap:            %s .. %s\n", result.Stats.MinGap, result.Stats.MaxGap)
	fmt.Fprintf(w, "  Cadence Errors: %d\n", result.Stats.CadenceErrors)
	fmt.Fprintf(w, "  Stream Digest:  %s\n", result.Stats.StreamDigest)
}

// formatFloats prints values in their shortest round-trip form.
func formatFloats(v []float64) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// truncateID truncates a long digest for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
