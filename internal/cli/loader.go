package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/load"
	"cuelang.org/go/cue/token"

	"github.com/roach88/jointstream/internal/compiler"
	"github.com/roach88/jointstream/internal/ir"
)

// LoadMode controls how errors are handled during spec loading.
type LoadMode int

const (
	// LoadModeFailFast stops on the first error encountered.
	LoadModeFailFast LoadMode = iota
	// LoadModeCollectAll collects all errors before returning.
	LoadModeCollectAll
)

// LoadResult contains the results of loading specs from a directory.
type LoadResult struct {
	Trajectories []ir.TrajectorySpec
	CUEValue     cue.Value // The raw CUE value for additional processing
	FileCount    int       // Number of CUE files found
}

// Names returns the loaded trajectory names in order.
func (r *LoadResult) Names() []string {
	names := make([]string, len(r.Trajectories))
	for i, t := range r.Trajectories {
		names[i] = t.Name
	}
	return names
}

// LoadError represents an error that occurred during spec loading.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadSpecs loads and compiles every trajectory.<name> entry of the CUE
// package in dir. Compiled specs are NOT validated; see compiler.Validate.
// LoadModeFailFast returns at the first compile error, LoadModeCollectAll
// keeps going. Directory and CUE build problems always end the load.
func LoadSpecs(dir string, mode LoadMode) (*LoadResult, []error) {
	files, lerr := scanSpecsDir(dir)
	if lerr != nil {
		return nil, []error{lerr}
	}
	value, lerr := buildPackage(dir)
	if lerr != nil {
		return nil, []error{lerr}
	}

	result := &LoadResult{CUEValue: value, FileCount: len(files)}
	errs := compileTrajectories(value, mode, result)
	if len(result.Trajectories) == 0 && len(errs) == 0 {
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: "no trajectories found in specs"})
	}
	return result, errs
}

// scanSpecsDir checks that dir is a directory holding at least one .cue file.
func scanSpecsDir(dir string) ([]string, *LoadError) {
	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("specs directory not found: %s", dir)}
	case err != nil:
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing specs directory: %v", err)}
	case !info.IsDir():
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("not a directory: %s", dir)}
	}

	files, err := FindCUEFiles(dir)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
	}
	if len(files) == 0 {
		return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", dir)}
	}
	return files, nil
}

// buildPackage loads the CUE package rooted at dir into a single value.
func buildPackage(dir string) (cue.Value, *LoadError) {
	instances := load.Instances([]string{"."}, &load.Config{Dir: dir})
	if len(instances) == 0 {
		return cue.Value{}, &LoadError{Code: ErrCodeLoadFailed, Message: "no CUE instances loaded"}
	}
	if err := instances[0].Err; err != nil {
		return cue.Value{}, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("loading CUE files: %v", err)}
	}

	value := cuecontext.New().BuildInstance(instances[0])
	if err := value.Err(); err != nil {
		return cue.Value{}, &LoadError{Code: ErrCodeBuildFailed, Message: fmt.Sprintf("building CUE value: %v", err)}
	}
	return value, nil
}

// compileTrajectories appends every compiled trajectory of value to result
// and returns the compile errors as LoadErrors.
func compileTrajectories(value cue.Value, mode LoadMode, result *LoadResult) []error {
	specs, cerrs := compiler.CompileAll(value, mode == LoadModeFailFast)
	result.Trajectories = append(result.Trajectories, specs...)

	errs := make([]error, 0, len(cerrs))
	for _, err := range cerrs {
		var te *compiler.TrajectoryError
		if errors.As(err, &te) {
			errs = append(errs, convertCompileError(te.Err, "trajectory."+te.Label))
			continue
		}
		errs = append(errs, &LoadError{Code: ErrCodeGeneric, Message: err.Error()})
	}
	return errs
}

// FindCUEFiles returns every .cue file under dir, sorted.
func FindCUEFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".cue" {
			files = append(files, path)
		}
		return nil
	})
	slices.Sort(files)
	return files, err
}

// convertCompileError converts a compiler error to a LoadError with position info.
func convertCompileError(err error, context string) *LoadError {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		return &LoadError{
			Code:    MapFieldToErrorCode(compileErr.Field),
			Message: fmt.Sprintf("%s: %s", context, compileErr.Message),
			Pos:     compileErr.Pos,
		}
	}
	return &LoadError{
		Code:    ErrCodeGeneric,
		Message: fmt.Sprintf("%s: %v", context, err),
	}
}

// Error code constants - unified across all CLI commands.
// Trajectory validation codes (E200-E299) come from the compiler package.
const (
	ErrCodeGeneric     = "E001" // Generic/unknown error
	ErrCodeScanError   = "E002" // Directory scan error
	ErrCodeNoFiles     = "E003" // No CUE files found
	ErrCodeLoadFailed  = "E004" // CUE load failed
	ErrCodeNotFound    = "E005" // Path not found
	ErrCodeBuildFailed = "E006" // CUE build failed
	ErrCodeWriteFailed = "E007" // File write error
	ErrCodeNoSuchName  = "E008" // --name does not match a trajectory
	ErrCodeUnreachable = "E009" // status server unreachable
	ErrCodeRejected    = "E010" // status server refused the request
)

// MapFieldToErrorCode maps a compiler error field to an error code.
func MapFieldToErrorCode(field string) string {
	switch field {
	case "joints":
		return compiler.ErrNoJoints
	case "rate_hz", "period":
		return compiler.ErrInvalidPeriod
	case "gate.timeout", "gate.poll", "timeout", "poll":
		return compiler.ErrInvalidGate
	case "max_ticks":
		return compiler.ErrInvalidMaxTicks
	case "strategy":
		return compiler.ErrUnknownStrategy
	case "spline.waypoints", "spline.cycle":
		return compiler.ErrInvalidSpline
	case "topic", "frame_id":
		return compiler.ErrInvalidTopic
	default:
		return ErrCodeGeneric
	}
}

// selectTrajectory picks the trajectory called name, or the only one when
// name is empty.
func selectTrajectory(result *LoadResult, name string) (ir.TrajectorySpec, error) {
	spec, err := compiler.Select(result.Trajectories, name)
	if err == nil {
		return spec, nil
	}
	msg := err.Error()
	if name == "" {
		msg = fmt.Sprintf("%d trajectories found, choose one with --name: %v", len(result.Trajectories), result.Names())
	}
	return spec, &LoadError{Code: ErrCodeNoSuchName, Message: msg}
}

// loadTrajectory loads, selects and validates one trajectory. Validation
// failures are returned as a single LoadError carrying the first problem.
func loadTrajectory(dir, name string) (ir.TrajectorySpec, error) {
	result, errs := LoadSpecs(dir, LoadModeFailFast)
	if len(errs) > 0 {
		return ir.TrajectorySpec{}, errs[0]
	}
	spec, err := selectTrajectory(result, name)
	if err != nil {
		return spec, err
	}

	var invalid *compiler.InvalidError
	if errors.As(compiler.CheckValid(&spec), &invalid) {
		first := invalid.Problems[0]
		return spec, &LoadError{
			Code:    first.Code,
			Message: fmt.Sprintf("trajectory %s: %s (%d problem(s), run validate)", spec.Name, first.Message, len(invalid.Problems)),
		}
	}
	return spec, nil
}
