package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/jointstream/internal/engine"
	"github.com/roach88/jointstream/internal/monitor"
)

// DefaultCompleteReason is sent when --reason is not given.
const DefaultCompleteReason = "Stopped by operator"

// CompleteOptions holds flags for the complete command.
type CompleteOptions struct {
	*RootOptions
	Reason  string
	Timeout time.Duration

	// Client allows overriding the HTTP client (for testing).
	Client *http.Client
}

// CompleteResult is the JSON payload of the complete command.
type CompleteResult struct {
	Addr   string `json:"addr"`
	Reason string `json:"reason"`
}

// NewCompleteCommand creates the complete command.
func NewCompleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompleteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:     "complete <status-addr>",
		Aliases: []string{"stop"},
		Short:   "Write the completion signal of a running engine",
		Long: `Ask a running engine to stop by writing its completion signal through the
status server started with "run --status-addr".

The engine stops after the tick in progress and reports the given reason.
The signal can only be written once: a second request fails with
COMPLETION_CONFLICT and the first reason is kept.

Exit codes:
  0 - Completion accepted
  1 - Rejected (already completed, or the run is not started yet)
  2 - Command error (server unreachable, bad address)

Examples:
  jointstream complete localhost:8080
  jointstream complete localhost:8080 --reason "Operator stop"`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return requestCompletion(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Reason, "reason", DefaultCompleteReason, "termination reason to store")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 5*time.Second, "request timeout")

	return cmd
}

func requestCompletion(opts *CompleteOptions, addr string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if opts.Reason == "" {
		return fail(formatter, ExitCommandError, ErrCodeGeneric, "--reason must not be empty", nil)
	}

	url := addr
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		url = "http://" + url
	}
	url = strings.TrimSuffix(url, "/") + "/complete"

	body, err := json.Marshal(monitor.CompleteRequest{Reason: opts.Reason})
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}

	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, opts.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeGeneric, err.Error(), nil)
	}
	req.Header.Set("Content-Type", "application/json")

	client := opts.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fail(formatter, ExitCommandError, ErrCodeUnreachable, err.Error(), nil)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusAccepted {
		result := CompleteResult{Addr: addr, Reason: opts.Reason}
		if opts.Format == "json" {
			return formatter.Success(result)
		}
		fmt.Fprintf(formatter.Writer, "✓ Completion accepted: %s\n", opts.Reason)
		return nil
	}

	message := serverError(resp.Body)
	code := ErrCodeRejected
	if resp.StatusCode == http.StatusConflict {
		code = string(engine.ErrCodeCompletionConflict)
	}
	return fail(formatter, ExitFailure, code, fmt.Sprintf("%s (HTTP %d)", message, resp.StatusCode), nil)
}

// serverError extracts the "error" field of a monitor error response.
func serverError(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return err.Error()
	}
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &body) == nil && body.Error != "" {
		return body.Error
	}
	return strings.TrimSpace(string(data))
}
