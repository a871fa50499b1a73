package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/jointstream/internal/compiler"
	"github.com/roach88/jointstream/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult holds the compiled trajectories.
type CompilationResult struct {
	Trajectories []ir.TrajectorySpec `json:"trajectories"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <specs-dir>",
		Short: "Compile CUE trajectory specs to JSON",
		Long: `Compile every trajectory in a CUE package, apply defaults, validate, and
print the result. With -o the compiled trajectories are also written to a
JSON file.

Exit codes:
  0 - All trajectories compiled
  2 - Compile or command error`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, specsDir string, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	loadResult, loadErrors := LoadSpecs(specsDir, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		code, message := parseCompileError(loadErrors[0])
		return fail(formatter, ExitCommandError, code, message, nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, specsDir)

	errs := loadErrors
	for i := range loadResult.Trajectories {
		spec := &loadResult.Trajectories[i]
		formatter.VerboseLog("Compiling trajectory: %s", spec.Name)
		for _, verr := range compiler.Validate(spec) {
			errs = append(errs, &LoadError{
				Code:    verr.Code,
				Message: fmt.Sprintf("%s.%s: %s", spec.Name, verr.Field, verr.Message),
			})
		}
	}
	if len(errs) > 0 {
		return outputCompileErrors(formatter, errs)
	}

	result := &CompilationResult{Trajectories: loadResult.Trajectories}

	if opts.Output != "" {
		if err := writeIRToFile(result, opts.Output); err != nil {
			return fail(formatter, ExitCommandError, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	return outputCompileSuccess(formatter, result, opts.Output)
}

func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	n := len(result.Trajectories)
	fmt.Fprintf(formatter.Writer, "✓ Compiled %d trajector%s\n\n", n, plural(n, "y", "ies"))
	for _, t := range result.Trajectories {
		fmt.Fprintf(formatter.Writer, "  %s: %s, %d joint(s), every %s on %s\n",
			t.Name, t.Strategy.Kind, len(t.Joints), t.Period, t.Topic)
	}

	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "\nWrote compiled trajectories to %s\n", outputFile)
	}
	return nil
}

// outputCompileErrors reports every error; JSON output carries the first in
// "error" and all of them in "data".
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.Format == "json" {
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseCompileError(err)
			cliErrors[i] = CLIError{Code: code, Message: message}
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors,
		}); err != nil {
			return err
		}
		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		code, message := parseCompileError(err)
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(),
				loadErr.Pos.Line(),
				loadErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", code, message)
	}

	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return MapFieldToErrorCode(compileErr.Field), compileErr.Message
	}
	return ErrCodeGeneric, err.Error()
}

// writeIRToFile writes the compiled trajectories as indented JSON.
func writeIRToFile(result *CompilationResult, filename string) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling trajectories: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
