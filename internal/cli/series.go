package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/jointstream/internal/analysis"
	"github.com/roach88/jointstream/internal/recording"
)

// SeriesOptions holds flags for the series command.
type SeriesOptions struct {
	*RootOptions
	Dir    string
	CSV    bool
	Follow bool
}

// NewSeriesCommand creates the series command.
func NewSeriesCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeriesOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "series [recording|latest] [joints...]",
		Short: "Print joint position and velocity series from a recording",
		Long: `Reconstruct per-joint position and velocity series from a recording.
Time is re-zeroed so the first sample is at t=0.

The recording is 'latest' (default: most recently modified recording in
--dir), a directory name under --dir, or a path. Joints are 'all' (default)
or any mix of indices and names; numbers are tried as indices first.

Exit codes:
  0 - Series printed
  1 - Analysis failed (FORMAT_MISMATCH, NO_JOINT_DATA, JOINT_NOT_FOUND)
  2 - Command error (recording not found, etc.)

Examples:
  jointstream series
  jointstream series latest 0 tilt --csv
  jointstream series pan_tilt_20260102-030405.000 all --format json
  jointstream series latest --follow`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeries(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Dir, "dir", ".", "directory holding recordings")
	cmd.Flags().BoolVar(&opts.CSV, "csv", false, "print CSV instead of a table")
	cmd.Flags().BoolVar(&opts.Follow, "follow", false, "re-print whenever the recording grows, until it completes")

	return cmd
}

func runSeries(opts *SeriesOptions, args []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	selector := recording.Latest
	var tokens []string
	if len(args) > 0 {
		selector = args[0]
		tokens = args[1:]
	}

	format := analysis.FormatText
	switch {
	case opts.Format == "json":
		format = analysis.FormatJSON
	case opts.CSV:
		format = analysis.FormatCSV
	}

	dir, err := recording.Resolve(opts.Dir, selector)
	if err != nil {
		return recordingFailure(formatter, err)
	}
	formatter.VerboseLog("Reading recording: %s", dir)
	formatter.VerboseLog("Processing joints: %v", tokensOrAll(tokens))

	render := func(s *analysis.Series) error {
		return analysis.Render(formatter.Writer, s, format)
	}

	if opts.Follow {
		ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := analysis.Follow(ctx, dir, analysis.FollowOptions{Tokens: tokens}, render); err != nil {
			return analysisFailure(formatter, err)
		}
		return nil
	}

	rec, err := recording.Open(dir)
	if err != nil {
		return recordingFailure(formatter, err)
	}
	defer rec.Close()

	warnIncomplete(formatter, dir, rec.Metadata)

	s, err := analysis.Load(commandContext(cmd), rec, tokens)
	if err != nil {
		return analysisFailure(formatter, err)
	}
	if err := render(s); err != nil {
		return WrapExitError(ExitCommandError, "write output", err)
	}
	return nil
}

func tokensOrAll(tokens []string) []string {
	if len(tokens) == 0 {
		return []string{analysis.All}
	}
	return tokens
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// recordingFailure maps recording lookup errors to exit codes.
func recordingFailure(f *OutputFormatter, err error) error {
	var re *recording.Error
	if errors.As(err, &re) {
		return fail(f, ExitCommandError, re.Code, re.Message, nil)
	}
	return fail(f, ExitCommandError, ErrCodeGeneric, err.Error(), nil)
}

// analysisFailure maps analysis errors to ExitFailure and everything else
// to a command error.
func analysisFailure(f *OutputFormatter, err error) error {
	var ae *analysis.Error
	if errors.As(err, &ae) {
		return fail(f, ExitFailure, ae.Code, ae.Message, nil)
	}
	return recordingFailure(f, err)
}
