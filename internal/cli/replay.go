package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/jointstream/internal/engine"
	"github.com/roach88/jointstream/internal/ir"
	"github.com/roach88/jointstream/internal/recording"
	"github.com/roach88/jointstream/internal/store"
	"github.com/roach88/jointstream/internal/trajectory"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Dir  string
	Name string
}

// ReplayResult holds the outcome of re-evaluating a recording.
type ReplayResult struct {
	Recording      string `json:"recording"`
	Trajectory     string `json:"trajectory"`
	Messages       int    `json:"messages"`
	RecordedDigest string `json:"recorded_digest"`
	ExpectedDigest string `json:"expected_digest"`
	Deterministic  bool   `json:"deterministic"`
	CadenceOK      bool   `json:"cadence_ok"`

	// FirstMismatch is the seq of the first differing command, 0 if none.
	FirstMismatch int64 `json:"first_mismatch,omitempty"`

	// CadenceErrors lists seqs whose stamp is not exactly one period after
	// the previous stamp.
	CadenceErrors []int64 `json:"cadence_errors,omitempty"`
}

// OK reports whether the recording matched on both checks.
func (r ReplayResult) OK() bool {
	return r.Deterministic && r.CadenceOK
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <specs-dir> [recording|latest]",
		Short: "Re-evaluate a trajectory against a recording",
		Long: `Re-evaluate the trajectory that produced a recording for the same number
of ticks and compare the stream digests. Also checks that stamps advance by
exactly one period per message.

The trajectory defaults to the recording's name; override with --name.

Exit codes:
  0 - Recording matches the trajectory
  1 - Mismatch (different commands or irregular cadence)
  2 - Command error (recording or trajectory not found, etc.)

Examples:
  jointstream replay ./specs
  jointstream replay ./specs latest --name pan_tilt --format json`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			selector := recording.Latest
			if len(args) == 2 {
				selector = args[1]
			}
			return runReplay(opts, args[0], selector, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Dir, "dir", ".", "directory holding recordings")
	cmd.Flags().StringVar(&opts.Name, "name", "", "trajectory name (defaults to the recording's)")

	return cmd
}

func runReplay(opts *ReplayOptions, specsDir, selector string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := commandContext(cmd)

	dir, err := recording.Resolve(opts.Dir, selector)
	if err != nil {
		return recordingFailure(formatter, err)
	}
	rec, err := recording.Open(dir)
	if err != nil {
		return recordingFailure(formatter, err)
	}
	defer rec.Close()

	name := opts.Name
	if name == "" {
		name = rec.Metadata.Name
	}
	spec, err := loadTrajectory(specsDir, name)
	if err != nil {
		return loadFailure(formatter, err)
	}

	msgs, err := rec.Messages(ctx)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	if len(msgs) == 0 {
		return fail(formatter, ExitFailure, "NO_JOINT_DATA", "recording has no messages", nil)
	}

	result, err := replayRecording(ctx, spec, msgs)
	if err != nil {
		return fail(formatter, ExitCommandError, string(engine.ErrCodeStrategyFailure), err.Error(), nil)
	}
	result.Recording = dir

	if formatter.Format == "json" {
		if err := json.NewEncoder(formatter.Writer).Encode(CLIResponse{Status: "ok", Data: result}); err != nil {
			return err
		}
	} else {
		outputReplayText(formatter, result)
	}

	if !result.OK() {
		return NewExitError(ExitFailure, "replay mismatch")
	}
	return nil
}

// replayRecording re-evaluates spec for len(msgs) ticks using the engine's
// clock and command builder, stamped from the first recorded stamp.
func replayRecording(ctx context.Context, spec ir.TrajectorySpec, msgs []store.Message) (ReplayResult, error) {
	result := ReplayResult{Trajectory: spec.Name, Messages: len(msgs), CadenceOK: true}

	joints, err := ir.NewJointSet(spec.Joints...)
	if err != nil {
		return result, err
	}
	strategy, err := trajectory.Build(spec.Strategy, joints)
	if err != nil {
		return result, err
	}
	state, err := strategy.Init(joints)
	if err != nil {
		return result, err
	}

	topic, frameID := spec.Topic, spec.FrameID
	if topic == "" {
		topic = ir.DefaultTopic
	}
	if frameID == "" {
		frameID = ir.DefaultFrameID
	}
	builder := engine.NewCommandPublisher(nil, topic, frameID, joints)
	clock := engine.NewVirtualClock(spec.Period, msgs[0].Command.Stamp.Time())

	recorded := ir.NewStreamDigest()
	expected := ir.NewStreamDigest()
	for i, m := range msgs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		k := clock.Advance()
		sample, err := strategy.Evaluate(clock.Seconds(), state)
		if err != nil {
			return result, engine.NewStrategyError(k, err)
		}
		want := builder.Build(clock.Stamp(), sample)

		if err := recorded.Add(m.Command); err != nil {
			return result, fmt.Errorf("recorded message %d: %w", m.Seq, err)
		}
		if err := expected.Add(want); err != nil {
			return result, fmt.Errorf("expected command %d: %w", k, err)
		}
		if result.FirstMismatch == 0 && !sameCommand(m.Command, want) {
			result.FirstMismatch = m.Seq
		}
		if i > 0 && m.Command.Stamp.Sub(msgs[i-1].Command.Stamp) != spec.Period {
			result.CadenceOK = false
			result.CadenceErrors = append(result.CadenceErrors, m.Seq)
		}
	}

	result.RecordedDigest = recorded.Sum()
	result.ExpectedDigest = expected.Sum()
	result.Deterministic = result.RecordedDigest == result.ExpectedDigest
	return result, nil
}

// sameCommand compares the canonical forms of two commands.
func sameCommand(a, b ir.JointCommand) bool {
	da, errA := ir.CommandDigest(a)
	db, errB := ir.CommandDigest(b)
	return errA == nil && errB == nil && da == db
}

func outputReplayText(f *OutputFormatter, r ReplayResult) {
	fmt.Fprintf(f.Writer, "Recording:  %s\n", r.Recording)
	fmt.Fprintf(f.Writer, "Trajectory: %s\n", r.Trajectory)
	fmt.Fprintf(f.Writer, "Messages:   %d\n", r.Messages)
	f.VerboseLog("recorded digest %s", r.RecordedDigest)
	f.VerboseLog("expected digest %s", r.ExpectedDigest)

	if r.Deterministic {
		fmt.Fprintln(f.Writer, "✓ Commands match the trajectory")
	} else {
		fmt.Fprintf(f.Writer, "✗ Commands differ from the trajectory (first at seq %d)\n", r.FirstMismatch)
	}
	if r.CadenceOK {
		fmt.Fprintln(f.Writer, "✓ Cadence is exactly one period per message")
	} else {
		fmt.Fprintf(f.Writer, "✗ Irregular cadence at %d message(s), first at seq %d\n",
			len(r.CadenceErrors), r.CadenceErrors[0])
	}
}
