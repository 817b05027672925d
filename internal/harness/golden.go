package harness

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/tryblock/internal/ir"
)

// TraceSnapshot is the golden form of a scenario execution: how the program
// ended, its final variables and every engine event.
type TraceSnapshot struct {
	ScenarioName string
	Result       *Result
}

// Canonical implements ir.Canonicalizer.
func (s TraceSnapshot) Canonical() any {
	trace := make([]any, len(s.Result.Trace))
	for i, ev := range s.Result.Trace {
		trace[i] = ev
	}
	flags := make(map[string]any, len(s.Result.Flags))
	for k, v := range s.Result.Flags {
		flags[k] = v
	}
	values := make(map[string]any, len(s.Result.Values))
	for k, v := range s.Result.Values {
		values[k] = v
	}

	m := map[string]any{
		"scenario_name": s.ScenarioName,
		"trace_version": ir.TraceVersion,
		"ended":         "normal",
		"flags":         flags,
		"values":        values,
		"max_depth":     s.Result.MaxDepth,
		"trace":         trace,
	}
	switch {
	case s.Result.Exception != nil:
		m["ended"] = "exception"
		m["exception"] = map[string]any{
			"kind":    int(s.Result.Exception.Kind),
			"message": s.Result.Exception.Message,
		}
	case s.Result.Fatal != "":
		m["ended"] = "fatal"
		m["fatal"] = string(s.Result.Fatal)
	}
	return m
}

// MarshalSnapshot returns the canonical JSON of a scenario execution.
func MarshalSnapshot(name string, result *Result) ([]byte, error) {
	return ir.MarshalCanonical(TraceSnapshot{ScenarioName: name, Result: result})
}

// SnapshotDigest returns the content digest of a scenario execution.
// Identical programs produce identical digests.
func SnapshotDigest(name string, result *Result) (string, error) {
	return ir.TraceDigest(TraceSnapshot{ScenarioName: name, Result: result})
}

// RunWithGolden executes a scenario and compares its snapshot against
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns an error if the scenario cannot execute. Snapshot mismatches fail t
// through goldie.
func RunWithGolden(t *testing.T, sc *Scenario) error {
	t.Helper()

	result, err := Execute(sc)
	if err != nil {
		return err
	}
	return AssertGolden(t, sc.Name, result)
}

// AssertGolden compares an existing result against its golden file.
func AssertGolden(t *testing.T, name string, result *Result) error {
	t.Helper()

	data, err := MarshalSnapshot(name, result)
	if err != nil {
		return err
	}
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}

// ErrGoldenMismatch is returned by CheckGolden when a snapshot differs from
// its golden file.
var ErrGoldenMismatch = errors.New("trace does not match golden file")

// GoldenPath returns dir/{name}.golden.
func GoldenPath(dir, name string) string {
	return filepath.Join(dir, name+".golden")
}

// CheckGolden compares the snapshot of result with its golden file in dir.
// A missing golden file is not an error. With update set, the file is
// written instead of compared.
func CheckGolden(dir, name string, result *Result, update bool) error {
	data, err := MarshalSnapshot(name, result)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	path := GoldenPath(dir, name)

	if update {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create golden directory: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("failed to write golden file: %w", err)
		}
		return nil
	}

	want, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read golden file: %w", err)
	}
	if !bytes.Equal(want, data) {
		return fmt.Errorf("%s: %w (run with --update to regenerate)", path, ErrGoldenMismatch)
	}
	return nil
}
