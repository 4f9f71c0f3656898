package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/notitia/internal/engine"
	"github.com/roach88/notitia/internal/queryir"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is the path to a CUE schema file or directory. Relative paths
	// are resolved against the scenario file's directory.
	Schema string `yaml:"schema"`

	// Setup mutations run before subscriptions open. They must succeed.
	Setup []queryir.MutationDoc `yaml:"setup,omitempty"`

	Subscriptions []SubscriptionDef `yaml:"subscriptions,omitempty"`

	Steps []Step `yaml:"steps"`

	Assertions []Assertion `yaml:"assertions"`
}

// SubscriptionDef opens a named subscription.
type SubscriptionDef struct {
	Name  string           `yaml:"name"`
	Query queryir.QueryDoc `yaml:"query"`

	// ExpectError is the engine error code Subscribe must fail with, e.g.
	// ZERO_ROWS. A failed subscription is not opened.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Step is one action of the flow. Exactly one of Mutate and Close is set.
type Step struct {
	Mutate *queryir.MutationDoc `yaml:"mutate,omitempty"`

	// Close names a subscription to close.
	Close string `yaml:"close,omitempty"`

	// ExpectError is the engine error code Mutate must fail with, e.g.
	// MUTATION_CONFLICT.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// Assertion validates final subscription state.
type Assertion struct {
	// Type specifies the assertion type:
	// - "consistent": subscriptions equal a fresh query
	// - "rows": subscription rows match, on the listed columns
	// - "count": subscription holds Count rows
	// - "notified": subscription saw Count change notifications
	// - "conflicts": subscription saw Count conflicts
	// - "closed": subscription is closed
	Type string `yaml:"type"`

	// Subscription names the target. Optional for consistent, where it
	// defaults to every open subscription.
	Subscription string `yaml:"subscription,omitempty"`

	Rows []queryir.RowDoc `yaml:"rows,omitempty"`

	Count int `yaml:"count,omitempty"`
}

// Assertion type constants.
const (
	AssertConsistent = "consistent"
	AssertRows       = "rows"
	AssertCount      = "count"
	AssertNotified   = "notified"
	AssertConflicts  = "conflicts"
	AssertClosed     = "closed"
)

var errorCodes = map[string]bool{
	string(engine.CodeConnection):         true,
	string(engine.CodeQueryExecution):     true,
	string(engine.CodeZeroRows):           true,
	string(engine.CodeMultipleRows):       true,
	string(engine.CodeMutationConflict):   true,
	string(engine.CodeSubscriptionClosed): true,
	string(engine.CodeInvalidSpec):        true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Schema != "" && !filepath.IsAbs(scenario.Schema) {
		scenario.Schema = filepath.Join(filepath.Dir(path), scenario.Schema)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Schema == "" {
		return fmt.Errorf("schema is required")
	}
	if _, err := os.Stat(s.Schema); os.IsNotExist(err) {
		return fmt.Errorf("schema not found: %s", s.Schema)
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	names := make(map[string]bool, len(s.Subscriptions))
	for i, sub := range s.Subscriptions {
		if sub.Name == "" {
			return fmt.Errorf("subscriptions[%d]: name is required", i)
		}
		if names[sub.Name] {
			return fmt.Errorf("subscriptions[%d]: duplicate name %q", i, sub.Name)
		}
		names[sub.Name] = true
		if sub.ExpectError != "" && !errorCodes[sub.ExpectError] {
			return fmt.Errorf("subscriptions[%d]: unknown error code %q", i, sub.ExpectError)
		}
	}

	for i, step := range s.Steps {
		switch {
		case step.Mutate != nil && step.Close != "":
			return fmt.Errorf("steps[%d]: set exactly one of mutate, close", i)
		case step.Mutate == nil && step.Close == "":
			return fmt.Errorf("steps[%d]: mutate or close is required", i)
		case step.Close != "" && !names[step.Close]:
			return fmt.Errorf("steps[%d]: unknown subscription %q", i, step.Close)
		case step.Close != "" && step.ExpectError != "":
			return fmt.Errorf("steps[%d]: expect_error applies to mutate only", i)
		}
		if step.ExpectError != "" && !errorCodes[step.ExpectError] {
			return fmt.Errorf("steps[%d]: unknown error code %q", i, step.ExpectError)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i], names); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, names map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertConsistent:
		if a.Subscription == "" {
			return nil
		}
	case AssertRows, AssertCount, AssertNotified, AssertConflicts, AssertClosed:
		if a.Subscription == "" {
			return fmt.Errorf("assertions[%d]: subscription is required for %s", index, a.Type)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	if !names[a.Subscription] {
		return fmt.Errorf("assertions[%d]: unknown subscription %q", index, a.Subscription)
	}
	return nil
}
