package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/jointstream/internal/recording"
)

// RecordingsOptions holds flags for the recordings command.
type RecordingsOptions struct {
	*RootOptions
	Dir string
}

// RecordingSummary is one row of the recordings listing.
type RecordingSummary struct {
	Dir       string    `json:"dir"`
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	RunID     string    `json:"run_id,omitempty"`
	Messages  int64     `json:"messages"`
	Complete  bool      `json:"complete"`
	StartedAt time.Time `json:"started_at"`
}

// NewRecordingsCommand creates the recordings command.
func NewRecordingsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordingsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "recordings",
		Short: "List recordings",
		Long: `List the recordings in a directory, oldest first. The last one is what
'latest' selects.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecordings(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Dir, "dir", ".", "directory holding recordings")

	return cmd
}

func runRecordings(opts *RecordingsOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	entries, err := recording.List(opts.Dir)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeNotFound, err.Error(), nil)
	}

	ctx := commandContext(cmd)
	summaries := make([]RecordingSummary, 0, len(entries))
	for _, e := range entries {
		s := RecordingSummary{
			Dir:       e.Dir,
			ID:        e.Metadata.ID,
			Name:      e.Metadata.Name,
			RunID:     e.Metadata.RunID,
			Messages:  e.Metadata.MessageCount,
			Complete:  e.Metadata.Complete,
			StartedAt: e.Metadata.StartedAt,
		}
		// Killed recordings never had their count written.
		if !e.Metadata.Finished() {
			if rec, err := recording.Open(e.Dir); err == nil {
				if n, err := rec.Count(ctx); err == nil {
					s.Messages = n
				}
				rec.Close()
			}
		}
		summaries = append(summaries, s)
	}

	if opts.Format == "json" {
		return formatter.Success(summaries)
	}

	if len(summaries) == 0 {
		fmt.Fprintf(formatter.Writer, "No recordings in %s.\n", opts.Dir)
		return nil
	}

	tw := tabwriter.NewWriter(formatter.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "DIR\tNAME\tMESSAGES\tCOMPLETE\tSTARTED")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%t\t%s\n", s.Dir, s.Name, s.Messages, s.Complete,
			s.StartedAt.Format(time.RFC3339))
	}
	return tw.Flush()
}

// warnIncomplete tells the user why a recording cannot be trusted to hold
// every published command.
func warnIncomplete(formatter *OutputFormatter, dir string, md recording.Metadata) {
	switch {
	case md.Dropped > 0:
		formatter.Warn("recording %s dropped %d command(s); the stream has gaps", dir, md.Dropped)
	case !md.Finished():
		formatter.Warn("recording %s is incomplete; was the recorder killed?", dir)
	case !md.Complete:
		formatter.Warn("recording %s is incomplete; a write to the store failed", dir)
	}
}

// completeStatus describes a recording's completeness in one line.
func completeStatus(md recording.Metadata) string {
	switch {
	case md.Dropped > 0:
		return fmt.Sprintf("Incomplete (%d command(s) dropped)", md.Dropped)
	case !md.Finished():
		return "Incomplete (recorder did not finish)"
	case !md.Complete:
		return "Incomplete (store write failed)"
	}
	return "Complete"
}
