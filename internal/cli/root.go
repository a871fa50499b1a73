package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	LogFile string

	// logFile is the rotating log writer when LogFile is set.
	logFile io.Closer
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the jointstream CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "jointstream",
		Short: "jointstream - real-time joint command streams",
		Long: `Generate timestamped joint commands at a fixed rate from a trajectory
spec, record them, and analyze the recordings.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			opts.configureLogging(cmd.ErrOrStderr())
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return opts.closeLog()
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.LogFile, "log-file", "", "write logs to a rotating file instead of stderr")

	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewSeriesCommand(opts))
	cmd.AddCommand(NewRecordingsCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))
	cmd.AddCommand(NewCompleteCommand(opts))
	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))

	return cmd
}

// configureLogging installs the default slog logger: text to stderr, or to
// a lumberjack-rotated file with --log-file. Debug level with --verbose.
func (o *RootOptions) configureLogging(stderr io.Writer) {
	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}

	w := stderr
	if o.LogFile != "" {
		lj := &lumberjack.Logger{
			Filename:   o.LogFile,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		o.logFile = lj
		w = lj
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

func (o *RootOptions) closeLog() error {
	if o.logFile == nil {
		return nil
	}
	err := o.logFile.Close()
	o.logFile = nil
	return err
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
