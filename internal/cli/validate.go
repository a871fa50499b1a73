package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"cuelang.org/go/cue"
	"github.com/spf13/cobra"

	"github.com/roach88/jointstream/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid        bool                       `json:"valid"`
	Trajectories []string                   `json:"trajectories,omitempty"`
	Errors       []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <specs-dir>",
		Short: "Validate trajectory specs",
		Long: `Compile every trajectory in a CUE package and check it: joint names,
period, gate settings, topic and strategy parameters. All problems are
reported, not just the first.

Exit codes:
  0 - All trajectories valid
  1 - Validation failed
  2 - Command error (directory not found, CUE syntax error, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	loadResult, loadErrors := LoadSpecs(specsDir, LoadModeCollectAll)

	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return fail(formatter, ExitCommandError, loadErr.Code, loadErr.Message, nil)
		}
		return fail(formatter, ExitCommandError, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, specsDir)

	var validationErrors []compiler.ValidationError
	for _, err := range loadErrors {
		validationErrors = append(validationErrors, loadErrorToValidation(err))
	}
	for i := range loadResult.Trajectories {
		spec := &loadResult.Trajectories[i]
		formatter.VerboseLog("Validating trajectory: %s", spec.Name)
		for _, verr := range compiler.Validate(spec) {
			verr.Field = spec.Name + "." + verr.Field
			verr.Line = lineOf(loadResult.CUEValue, spec.Name, verr.Line)
			validationErrors = append(validationErrors, verr)
		}
	}

	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors)
	}
	return outputValidateSuccess(formatter, loadResult.Names())
}

func loadErrorToValidation(err error) compiler.ValidationError {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		line := 0
		if loadErr.Pos.IsValid() {
			line = loadErr.Pos.Line()
		}
		return compiler.ValidationError{Field: "load", Message: loadErr.Message, Code: loadErr.Code, Line: line}
	}
	return compiler.ValidationError{Field: "load", Message: err.Error(), Code: ErrCodeGeneric}
}

// lineOf returns line if already set, else the line of trajectory.<name>.
func lineOf(v cue.Value, name string, line int) int {
	if line > 0 {
		return line
	}
	pos := v.LookupPath(cue.MakePath(cue.Str("trajectory"), cue.Str(name))).Pos()
	if pos.IsValid() {
		return pos.Line()
	}
	return 0
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, names []string) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Trajectories: names})
	}

	fmt.Fprintf(formatter.Writer, "✓ %d trajector%s valid\n", len(names), plural(len(names), "y", "ies"))
	for _, n := range names {
		fmt.Fprintf(formatter.Writer, "  %s\n", n)
	}
	return nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
