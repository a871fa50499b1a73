package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"

	"github.com/roach88/jointstream/internal/bus"
	"github.com/roach88/jointstream/internal/engine"
	"github.com/roach88/jointstream/internal/ir"
	"github.com/roach88/jointstream/internal/monitor"
	"github.com/roach88/jointstream/internal/recording"
	"github.com/roach88/jointstream/internal/trajectory"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Name       string
	RecordDir  string
	Ticks      int64
	StatusAddr string
	Echo       bool

	// RunIDGenerator allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDGenerator engine.RunIDGenerator

	// Ticker allows overriding the wall-clock ticker (for testing).
	Ticker engine.TickerFactory

	// Notify sends sd_notify states. Defaults to daemon.SdNotify.
	Notify func(state string) error
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return newRunCommand(&RunOptions{RootOptions: rootOpts})
}

// newRunCommand builds the command around opts so tests can set the ticker,
// run id generator and notifier.
func newRunCommand(opts *RunOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <specs-dir>",
		Short: "Stream joint commands for a trajectory",
		Long: `Compile a trajectory spec and stream joint commands on its topic at the
configured rate until the trajectory completes, the tick limit is reached or
the process is interrupted (SIGINT/SIGTERM).

Publishing starts only once the topic has a subscriber: --record and --echo
both subscribe.

Examples:
  jointstream run ./specs --record ./recordings
  jointstream run ./specs --name pan_tilt --ticks 500 --echo
  jointstream run ./specs --record . --status-addr :8080`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "trajectory to run (required when the specs define several)")
	cmd.Flags().StringVar(&opts.RecordDir, "record", "", "record the stream into a new recording under this directory")
	cmd.Flags().Int64Var(&opts.Ticks, "ticks", 0, "stop after this many ticks (overrides max_ticks; 0 keeps the spec's)")
	cmd.Flags().StringVar(&opts.StatusAddr, "status-addr", "", "serve /status, /command/latest and POST /complete on this address")
	cmd.Flags().BoolVar(&opts.Echo, "echo", false, "print every command as canonical JSON")

	return cmd
}

// RunResult is the JSON payload of the run command.
type RunResult struct {
	RunID     string  `json:"run_id"`
	Name      string  `json:"name"`
	Reason    string  `json:"reason"`
	Ticks     int64   `json:"ticks"`
	Published int64   `json:"published"`
	Elapsed   float64 `json:"elapsed"`
	Recording string  `json:"recording,omitempty"`
}

func runEngine(opts *RunOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	slog.Info("compiling specs", "dir", specsDir)
	spec, err := loadTrajectory(specsDir, opts.Name)
	if err != nil {
		return loadFailure(formatter, err)
	}

	joints, err := ir.NewJointSet(spec.Joints...)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	strategy, err := trajectory.Build(spec.Strategy, joints)
	if err != nil {
		return fail(formatter, ExitCommandError, string(engine.ErrCodeStrategyFailure), err.Error(), nil)
	}

	b := bus.New()
	defer b.Close()

	engOpts := []engine.Option{engine.WithObserver(sdNotifier(opts.notify()))}
	if opts.RunIDGenerator != nil {
		engOpts = append(engOpts, engine.WithRunIDGenerator(opts.RunIDGenerator))
	}
	if opts.Ticker != nil {
		engOpts = append(engOpts, engine.WithTicker(opts.Ticker))
	}
	if opts.Ticks > 0 {
		engOpts = append(engOpts, engine.WithMaxTicks(opts.Ticks))
	}

	var mon *monitor.Monitor
	if opts.StatusAddr != "" {
		mon = monitor.New(spec)
		engOpts = append(engOpts, engine.WithObserver(mon))
	}

	eng, err := engine.New(spec, strategy, b, engOpts...)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	if mon != nil {
		mon.SetCompleter(eng)
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	var rec *recording.Recorder
	if opts.RecordDir != "" {
		rec, err = recording.Create(opts.RecordDir, b, recording.Options{
			Name:   spec.Name,
			RunID:  eng.RunID(),
			Topic:  spec.Topic,
			Joints: spec.Joints,
			Period: spec.Period,
		})
		if err != nil {
			return fail(formatter, ExitCommandError, ErrCodeWriteFailed, err.Error(), nil)
		}
	}

	echoDone := make(chan struct{})
	if opts.Echo {
		sub := b.Subscribe(spec.Topic, 0)
		go echo(sub, formatter.Writer, echoDone)
	} else {
		close(echoDone)
	}

	monDone := make(chan error, 1)
	if mon != nil {
		go func() { monDone <- mon.Serve(ctx, opts.StatusAddr, nil) }()
	} else {
		monDone <- nil
	}

	out := eng.Run(ctx)

	// Closing the bus ends the echo and recorder subscriptions after they
	// drain what the engine published.
	_ = b.Close()
	<-echoDone

	result := RunResult{
		RunID:     out.RunID,
		Name:      spec.Name,
		Reason:    out.Reason,
		Ticks:     out.Ticks,
		Published: out.Published,
		Elapsed:   out.Elapsed.Seconds(),
	}
	if rec != nil {
		result.Recording = rec.Dir()
		if err := rec.Close(); err != nil {
			slog.Error("recording failed", "dir", rec.Dir(), "error", err)
			if out.Err == nil {
				out.Err = err
			}
		}
	}

	cancel()
	if err := <-monDone; err != nil {
		slog.Error("status server failed", "addr", opts.StatusAddr, "error", err)
	}

	stopOut := formatter.Writer
	if opts.Format == "json" {
		stopOut = formatter.GetErrWriter()
	}
	fmt.Fprintf(stopOut, "Stopping: %s\n", out.Reason)

	if out.Err != nil {
		code := ErrCodeGeneric
		var rerr *engine.RuntimeError
		if errors.As(out.Err, &rerr) {
			code = string(rerr.Code)
		}
		return fail(formatter, ExitFailure, code, out.Err.Error(), result)
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	if !opts.Echo {
		fmt.Fprintf(formatter.Writer, "Run %s: %d ticks, %d published, t=%.3f\n",
			result.RunID, result.Ticks, result.Published, result.Elapsed)
		if result.Recording != "" {
			fmt.Fprintf(formatter.Writer, "Recorded to %s\n", result.Recording)
		}
	}
	return nil
}

func (o *RunOptions) notify() func(string) error {
	if o.Notify != nil {
		return o.Notify
	}
	return func(state string) error {
		_, err := daemon.SdNotify(false, state)
		return err
	}
}

// sdNotifier reports READY when the engine starts publishing and STOPPING
// when it begins to terminate. Without NOTIFY_SOCKET it does nothing.
func sdNotifier(notify func(string) error) engine.Observer {
	return engine.ObserverFuncs{
		StateChange: func(c engine.StateChange) {
			var state string
			switch c.To {
			case engine.StateRunning:
				state = daemon.SdNotifyReady
			case engine.StateTerminating:
				state = daemon.SdNotifyStopping
			default:
				return
			}
			if err := notify(state); err != nil {
				slog.Warn("sd_notify failed", "state", state, "error", err)
			}
		},
	}
}

// echo prints each command on one line until the subscription closes.
func echo(sub *bus.Subscription, w io.Writer, done chan<- struct{}) {
	defer close(done)
	for cmd := range sub.C() {
		data, err := ir.MarshalCommand(cmd)
		if err != nil {
			slog.Warn("echo: cannot encode command", "error", err)
			continue
		}
		fmt.Fprintln(w, string(data))
	}
}

// loadFailure reports a loadTrajectory error as a command error.
func loadFailure(f *OutputFormatter, err error) error {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return fail(f, ExitCommandError, loadErr.Code, loadErr.Message, nil)
	}
	return fail(f, ExitCommandError, ErrCodeGeneric, err.Error(), nil)
}
