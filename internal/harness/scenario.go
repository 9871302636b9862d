package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines one aggregation scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Specs lists spec files or directories, relative to the scenario file.
	Specs []string `yaml:"specs"`

	// Fixtures is a fixtures file keyed by collection name.
	Fixtures string `yaml:"fixtures,omitempty"`

	// Registry selects the registry to query. Optional when the specs define
	// exactly one.
	Registry string `yaml:"registry,omitempty"`

	// Chain is applied in order, starting from the registry's All().
	Chain []Step `yaml:"chain"`

	// SelectAll derives a projection from the match fields.
	SelectAll bool `yaml:"select_all,omitempty"`

	// Assertions validate the compiled pipeline and results.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is one link of the relation chain. Exactly one of its fields is set.
type Step struct {
	Scope   string         `yaml:"scope,omitempty"`
	Args    []any          `yaml:"args,omitempty"`
	Where   map[string]any `yaml:"where,omitempty"`
	Group   map[string]any `yaml:"group,omitempty"`
	Project map[string]any `yaml:"project,omitempty"`
	Sort    []string       `yaml:"sort,omitempty"`
	Limit   int64          `yaml:"limit,omitempty"`
	Stage   map[string]any `yaml:"stage,omitempty"`
}

func (s Step) kinds() int {
	n := 0
	for _, set := range []bool{s.Scope != "", s.Where != nil, s.Group != nil, s.Project != nil, len(s.Sort) > 0, s.Limit != 0, s.Stage != nil} {
		if set {
			n++
		}
	}
	return n
}

// Assertion validates the pipeline or the results.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Ops is the expected operator sequence (stage_order).
	Ops []string `yaml:"ops,omitempty"`

	// Count is the expected number (stage_count, result_count, count).
	Count int `yaml:"count,omitempty"`

	// Field and Values are the expected plucked values (pluck).
	Field  string `yaml:"field,omitempty"`
	Values []any  `yaml:"values,omitempty"`

	// Contains is the expected error text (error).
	Contains string `yaml:"contains,omitempty"`
}

// Assertion type constants.
const (
	AssertStageOrder  = "stage_order"
	AssertStageCount  = "stage_count"
	AssertResultCount = "result_count"
	AssertCount       = "count"
	AssertPluck       = "pluck"
	AssertError       = "error"
)

// LoadScenario reads and parses a scenario YAML file, resolving spec and
// fixture paths relative to the file. Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Dir(path)
	for i, specPath := range scenario.Specs {
		if !filepath.IsAbs(specPath) {
			scenario.Specs[i] = filepath.Join(base, specPath)
		}
	}
	if scenario.Fixtures != "" && !filepath.IsAbs(scenario.Fixtures) {
		scenario.Fixtures = filepath.Join(base, scenario.Fixtures)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every .yaml scenario in dir, in name order.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
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
	if len(s.Specs) == 0 {
		return fmt.Errorf("specs list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for _, specPath := range s.Specs {
		if _, err := os.Stat(specPath); os.IsNotExist(err) {
			return fmt.Errorf("spec path not found: %s", specPath)
		}
	}
	if s.Fixtures != "" {
		if _, err := os.Stat(s.Fixtures); os.IsNotExist(err) {
			return fmt.Errorf("fixtures file not found: %s", s.Fixtures)
		}
	}

	for i, step := range s.Chain {
		switch n := step.kinds(); {
		case n == 0:
			return fmt.Errorf("chain[%d]: step is empty", i)
		case n > 1:
			return fmt.Errorf("chain[%d]: step sets %d operations, expected one", i, n)
		}
		if step.Args != nil && step.Scope == "" {
			return fmt.Errorf("chain[%d]: args require scope", i)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a); err != nil {
			return err
		}
	}
	return nil
}

func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertStageOrder:
		if a.Ops == nil {
			return fmt.Errorf("assertions[%d]: ops is required for stage_order", index)
		}
	case AssertStageCount, AssertResultCount, AssertCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for %s", index, a.Type)
		}
	case AssertPluck:
		if a.Field == "" {
			return fmt.Errorf("assertions[%d]: field is required for pluck", index)
		}
	case AssertError:
		if a.Contains == "" {
			return fmt.Errorf("assertions[%d]: contains is required for error", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
