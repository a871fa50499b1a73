package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario scripts one engine run: which trajectory, how many subscribers,
// how many ticks to deliver and when to complete or interrupt it.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Spec is the CUE file holding the trajectory. Relative paths are
	// resolved against the scenario file.
	Spec string `yaml:"spec"`

	// Trajectory selects one trajectory.<name> entry. May be empty when
	// the file defines exactly one.
	Trajectory string `yaml:"trajectory,omitempty"`

	// RunID is a fixed run id for deterministic traces.
	// If empty, defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`

	// Subscribers is the number of subscribers attached before the run
	// starts. Nil means 1.
	Subscribers *int `yaml:"subscribers,omitempty"`

	// Ticks is the number of ticks the harness delivers.
	Ticks int `yaml:"ticks"`

	// CompleteAt writes the completion signal from outside the engine.
	CompleteAt *CompleteStep `yaml:"complete_at,omitempty"`

	// InterruptAt cancels the run context after that many ticks.
	InterruptAt *int `yaml:"interrupt_at,omitempty"`

	// Expect is checked against the result.
	Expect Expect `yaml:"expect"`
}

// CompleteStep is an external completion scheduled after Tick ticks.
type CompleteStep struct {
	Tick   int    `yaml:"tick"`
	Reason string `yaml:"reason"`
}

// Expect lists the outcome properties a scenario asserts. Nil and empty
// fields are not checked.
type Expect struct {
	Reason    string   `yaml:"reason,omitempty"`
	Error     string   `yaml:"error,omitempty"` // runtime error code
	Ticks     *int64   `yaml:"ticks,omitempty"`
	Published *int64   `yaml:"published,omitempty"`
	Received  *int     `yaml:"received,omitempty"` // per subscriber
	FinalT    *float64 `yaml:"final_t,omitempty"`
	States    []string `yaml:"states,omitempty"`
}

// SubscriberCount returns the number of subscribers to attach.
func (s *Scenario) SubscriberCount() int {
	if s.Subscribers == nil {
		return 1
	}
	return *s.Subscribers
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
// The spec path is resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "interupt_at"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Spec != "" && !filepath.IsAbs(scenario.Spec) {
		scenario.Spec = filepath.Join(filepath.Dir(path), scenario.Spec)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}

	return &scenario, nil
}

// LoadScenarios loads every *.yaml and *.yml file in dir, sorted by file
// name. The first invalid file aborts the load.
func LoadScenarios(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}

	var paths []string
	for _, e := range entries {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Spec == "" {
		return fmt.Errorf("spec is required")
	}
	if _, err := os.Stat(s.Spec); os.IsNotExist(err) {
		return fmt.Errorf("spec file not found: %s", s.Spec)
	}

	if s.Ticks < 0 {
		return fmt.Errorf("ticks must be non-negative, got %d", s.Ticks)
	}

	subs := s.SubscriberCount()
	if subs < 0 {
		return fmt.Errorf("subscribers must be non-negative, got %d", subs)
	}
	if subs == 0 && s.Ticks > 0 {
		return fmt.Errorf("ticks require at least one subscriber")
	}

	if c := s.CompleteAt; c != nil {
		if c.Reason == "" {
			return fmt.Errorf("complete_at: reason is required")
		}
		if c.Tick < 0 || c.Tick > s.Ticks {
			return fmt.Errorf("complete_at: tick must be within 0..%d, got %d", s.Ticks, c.Tick)
		}
	}

	if at := s.InterruptAt; at != nil && (*at < 0 || *at > s.Ticks) {
		return fmt.Errorf("interrupt_at must be within 0..%d, got %d", s.Ticks, *at)
	}

	return nil
}
