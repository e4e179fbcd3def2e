package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/flicker/internal/assertor"
	"github.com/roach88/flicker/internal/subject"
	"github.com/roach88/flicker/internal/tagging"
)

// Suite is a set of user-defined assertions loaded from YAML.
type Suite struct {
	// Name uniquely identifies this suite.
	Name string `yaml:"name"`

	// Description explains what this suite validates.
	Description string `yaml:"description"`

	// Catalog lists built-in assertions by name, evaluated on the whole
	// trace in addition to Assertions.
	Catalog []string `yaml:"catalog,omitempty"`

	// Assertions are evaluated in declaration order.
	Assertions []SuiteAssertion `yaml:"assertions"`
}

// SuiteAssertion is one assertion: a chain of expression steps evaluated
// over one half of the trace.
type SuiteAssertion struct {
	Name string `yaml:"name"`

	// Scenario restricts the assertion to intervals of one detected
	// scenario. Empty means the whole trace.
	Scenario string `yaml:"scenario,omitempty"`

	// Subject is "windows" or "layers" (default).
	Subject string `yaml:"subject,omitempty"`

	// Group is "blocking" or "non_blocking" (default).
	Group string `yaml:"group,omitempty"`

	// At is "all" (default), "start" or "end". For start and end every step
	// must hold on that single entry.
	At string `yaml:"at,omitempty"`

	// SkipUntilFirst ignores leading entries on which the first step fails.
	SkipUntilFirst bool `yaml:"skip_until_first,omitempty"`

	Steps []StepDef `yaml:"steps"`
}

// StepDef is one step of a chain. Consecutive steps are joined by "then".
type StepDef struct {
	// Expr is an expr-lang boolean expression, see Env.
	Expr     string `yaml:"expr"`
	Optional bool   `yaml:"optional,omitempty"`
}

// Suite field values.
const (
	SubjectWindows = "windows"
	SubjectLayers  = "layers"

	GroupBlocking    = "blocking"
	GroupNonBlocking = "non_blocking"

	AtAll   = "all"
	AtStart = "start"
	AtEnd   = "end"
)

var knownScenarios = map[string]bool{
	string(tagging.ScenarioAppLaunch): true,
	string(tagging.ScenarioAppClose):  true,
	string(tagging.ScenarioRotation):  true,
	string(tagging.ScenarioImeAppear): true,
}

// LoadSuite reads and parses a suite YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is invalid.
func LoadSuite(path string) (*Suite, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read suite file: %w", err)
	}
	return ParseSuite(data)
}

// ParseSuite parses suite YAML.
func ParseSuite(data []byte) (*Suite, error) {
	// Strict field validation catches typos like "step:" vs "steps:"
	var suite Suite
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&suite); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateSuite(&suite); err != nil {
		return nil, fmt.Errorf("invalid suite: %w", err)
	}
	return &suite, nil
}

// validateSuite checks required fields and enumerations. Expressions are
// checked when the suite is compiled.
func validateSuite(s *Suite) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if len(s.Assertions) == 0 && len(s.Catalog) == 0 {
		return fmt.Errorf("assertions or catalog list is required and must be non-empty")
	}

	for i, name := range s.Catalog {
		if _, ok := assertor.Lookup(name); !ok {
			return fmt.Errorf("catalog[%d]: unknown assertion %q", i, name)
		}
	}

	seen := make(map[string]bool)
	for i, a := range s.Assertions {
		if a.Name == "" {
			return fmt.Errorf("assertions[%d]: name is required", i)
		}
		if seen[a.Name] {
			return fmt.Errorf("assertions[%d]: duplicate name %q", i, a.Name)
		}
		seen[a.Name] = true

		if a.Scenario != "" && !knownScenarios[a.Scenario] {
			return fmt.Errorf("assertions[%d]: unknown scenario %q", i, a.Scenario)
		}
		switch a.Subject {
		case "", SubjectWindows, SubjectLayers:
		default:
			return fmt.Errorf("assertions[%d]: unknown subject %q", i, a.Subject)
		}
		switch a.Group {
		case "", GroupBlocking, GroupNonBlocking:
		default:
			return fmt.Errorf("assertions[%d]: unknown group %q", i, a.Group)
		}
		switch a.At {
		case "", AtAll, AtStart, AtEnd:
		default:
			return fmt.Errorf("assertions[%d]: unknown position %q", i, a.At)
		}
		if len(a.Steps) == 0 {
			return fmt.Errorf("assertions[%d]: steps list is required and must be non-empty", i)
		}
		for j, step := range a.Steps {
			if step.Expr == "" {
				return fmt.Errorf("assertions[%d].steps[%d]: expr is required", i, j)
			}
		}
	}
	return nil
}

func (a SuiteAssertion) kind() subject.Kind {
	if a.Subject == SubjectWindows {
		return subject.KindWindows
	}
	return subject.KindLayers
}

func (a SuiteAssertion) group() assertor.Group {
	if a.Group == GroupBlocking {
		return assertor.Blocking
	}
	return assertor.NonBlocking
}
