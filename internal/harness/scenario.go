package harness

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Scenario is a declarative exception-handling program with expectations.
//
// The program (Main plus Functions) runs on a fresh runtime. Expectations
// check how it ended and the final variables; assertions check the trace.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// MaxDepth overrides the runtime's checkpoint limit.
	MaxDepth int `yaml:"max_depth,omitempty"`

	// Functions are named step lists reachable with call.
	Functions map[string][]Step `yaml:"functions,omitempty"`

	// Main is the program entry point.
	Main []Step `yaml:"main"`

	// ExpectException is the exception expected to escape Main, if any.
	ExpectException *ExpectedException `yaml:"expect_exception,omitempty"`

	// ExpectFatal is the engine error code expected to end the program.
	ExpectFatal string `yaml:"expect_fatal,omitempty"`

	// Flags and Values are expected final variables. Unset flags read false.
	Flags  map[string]bool `yaml:"flags,omitempty"`
	Values map[string]int  `yaml:"values,omitempty"`

	// Assertions validate the event trace.
	Assertions []Assertion `yaml:"assertions,omitempty"`

	// Path is the file the scenario was loaded from.
	Path string `yaml:"-"`
}

// File returns the name used in trace locations.
func (s *Scenario) File() string {
	if s.Path != "" {
		return filepath.Base(s.Path)
	}
	return s.Name + ".yaml"
}

// Step is one program instruction. Exactly one field is set.
type Step struct {
	Set     string      `yaml:"set,omitempty"`
	Assign  *AssignStep `yaml:"assign,omitempty"`
	Throw   *ThrowStep  `yaml:"throw,omitempty"`
	Rethrow bool        `yaml:"rethrow,omitempty"`
	Return  *ReturnStep `yaml:"return,omitempty"`
	Try     *TryStep    `yaml:"try,omitempty"`
	Call    string      `yaml:"call,omitempty"`

	// Line is the step's line in the scenario file.
	Line int `yaml:"-"`
}

// UnmarshalYAML records the step's line number.
func (s *Step) UnmarshalYAML(n *yaml.Node) error {
	type plain Step
	var p plain
	if err := n.Decode(&p); err != nil {
		return err
	}
	*s = Step(p)
	s.Line = n.Line
	return nil
}

// AssignStep sets an integer variable.
type AssignStep struct {
	Name  string `yaml:"name"`
	Value int    `yaml:"value"`
}

// ThrowStep raises an exception.
type ThrowStep struct {
	Kind    int    `yaml:"kind"`
	Message string `yaml:"message,omitempty"`
}

// ReturnStep requests a deferred return from the innermost try.
// The value is Value, or the current value of variable From.
type ReturnStep struct {
	Value int    `yaml:"value,omitempty"`
	From  string `yaml:"from,omitempty"`
}

// TryStep is a protected block.
type TryStep struct {
	Body    []Step        `yaml:"body"`
	Catch   []CatchClause `yaml:"catch,omitempty"`
	Finally []Step        `yaml:"finally,omitempty"`

	// Result names the variable receiving a deferred-return value.
	Result string `yaml:"result,omitempty"`
}

// CatchClause is a handler. All selects a catch-all handler.
type CatchClause struct {
	Kind  int    `yaml:"kind,omitempty"`
	All   bool   `yaml:"all,omitempty"`
	Bind  string `yaml:"bind,omitempty"`
	Steps []Step `yaml:"steps"`
}

// ExpectedException describes the exception expected to escape the program.
type ExpectedException struct {
	Kind    int    `yaml:"kind"`
	Message string `yaml:"message,omitempty"`
}

// Assertion validates the event trace.
type Assertion struct {
	// Type is one of trace_contains, trace_order, trace_count, max_depth.
	Type string `yaml:"type"`

	// Event is the event type (trace_contains, trace_count).
	Event string `yaml:"event,omitempty"`

	// Kind filters events by exception kind (trace_contains, trace_count).
	Kind int `yaml:"kind,omitempty"`

	// Depth filters events by checkpoint depth (trace_contains, trace_count),
	// or is the expected maximum depth (max_depth).
	Depth *int `yaml:"depth,omitempty"`

	// Count is the expected number of matching events (trace_count).
	Count int `yaml:"count,omitempty"`

	// Events is the expected subsequence of event types (trace_order).
	Events []string `yaml:"events,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertMaxDepth      = "max_depth"
)

// LoadScenario reads, schema-validates and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed, violates the
// schema, or contains unknown fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	sc, err := ParseScenario(filepath.Base(path), data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	sc.Path = path
	return sc, nil
}

// ParseScenario validates data against the scenario schema and decodes it.
// filename is used in error positions.
func ParseScenario(filename string, data []byte) (*Scenario, error) {
	if err := ValidateDocument(filename, data); err != nil {
		return nil, err
	}

	var sc Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&sc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty scenario document")
		}
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&sc); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &sc, nil
}

// LoadScenarios loads every *.yaml and *.yml file in dir, sorted by name.
// It stops at the first invalid file.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := ScenarioFiles(dir)
	if err != nil {
		return nil, err
	}
	scenarios := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		sc, err := LoadScenario(p)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, nil
}

// ScenarioFiles lists the scenario files in dir, sorted by name.
func ScenarioFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		switch filepath.Ext(e.Name()) {
		case ".yaml", ".yml":
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// validateScenario checks what the schema cannot: references between
// functions and the shape of each step.
func validateScenario(s *Scenario) error {
	if len(s.Main) == 0 {
		return fmt.Errorf("main must contain at least one step")
	}
	if s.ExpectException != nil && s.ExpectFatal != "" {
		return fmt.Errorf("expect_exception and expect_fatal are mutually exclusive")
	}

	names := make([]string, 0, len(s.Functions))
	for name := range s.Functions {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := validateSteps(s, "functions."+name, s.Functions[name]); err != nil {
			return err
		}
	}
	return validateSteps(s, "main", s.Main)
}

func validateSteps(s *Scenario, where string, steps []Step) error {
	for i, st := range steps {
		at := fmt.Sprintf("%s[%d] (line %d)", where, i, st.Line)
		if n := st.fieldCount(); n != 1 {
			return fmt.Errorf("%s: step must set exactly one instruction, found %d", at, n)
		}
		switch {
		case st.Call != "":
			if _, ok := s.Functions[st.Call]; !ok {
				return fmt.Errorf("%s: call to undefined function %q", at, st.Call)
			}
		case st.Throw != nil:
			if st.Throw.Kind == 0 {
				return fmt.Errorf("%s: throw kind must be non-zero", at)
			}
		case st.Try != nil:
			if err := validateSteps(s, at+".body", st.Try.Body); err != nil {
				return err
			}
			for j, c := range st.Try.Catch {
				if c.All == (c.Kind != 0) {
					return fmt.Errorf("%s.catch[%d]: set either kind or all", at, j)
				}
				if err := validateSteps(s, fmt.Sprintf("%s.catch[%d]", at, j), c.Steps); err != nil {
					return err
				}
			}
			if err := validateSteps(s, at+".finally", st.Try.Finally); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s Step) fieldCount() int {
	n := 0
	for _, set := range []bool{
		s.Set != "",
		s.Assign != nil,
		s.Throw != nil,
		s.Rethrow,
		s.Return != nil,
		s.Try != nil,
		s.Call != "",
	} {
		if set {
			n++
		}
	}
	return n
}
