package harness

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/roach88/tryblock/internal/engine"
)

// TestFunc is the body of a registered test, setup or teardown.
type TestFunc func(t *T)

// Suite is an ordered collection of tests sharing setup and teardown hooks.
//
// Tests run in declaration order. Every setup runs before each test and every
// teardown after it, also in declaration order.
type Suite struct {
	name      string
	setups    []hook
	teardowns []hook
	tests     []testCase
}

type hook struct {
	fn  TestFunc
	loc engine.Location
}

type testCase struct {
	name     string
	expected engine.Kind
	fn       TestFunc
	loc      engine.Location
}

// NewSuite creates an empty suite.
func NewSuite(name string) *Suite {
	return &Suite{name: name}
}

// Name returns the suite name.
func (s *Suite) Name() string {
	return s.name
}

// Setup registers a hook that runs before every test.
func (s *Suite) Setup(fn TestFunc) *Suite {
	s.setups = append(s.setups, hook{fn: fn, loc: callerLocation(2)})
	return s
}

// Teardown registers a hook that runs after every test.
func (s *Suite) Teardown(fn TestFunc) *Suite {
	s.teardowns = append(s.teardowns, hook{fn: fn, loc: callerLocation(2)})
	return s
}

// Test registers a test that must complete without an exception.
func (s *Suite) Test(name string, fn TestFunc) *Suite {
	return s.add(name, engine.KindNone, fn)
}

// TestExpecting registers a test that must end with an exception of kind.
// A test that completes normally, or throws a different kind, fails.
func (s *Suite) TestExpecting(name string, kind engine.Kind, fn TestFunc) *Suite {
	return s.add(name, kind, fn)
}

func (s *Suite) add(name string, kind engine.Kind, fn TestFunc) *Suite {
	s.tests = append(s.tests, testCase{name: name, expected: kind, fn: fn, loc: callerLocation(3)})
	return s
}

// Tests returns the registered test names in declaration order.
func (s *Suite) Tests() []string {
	names := make([]string, len(s.tests))
	for i, tc := range s.tests {
		names[i] = tc.name
	}
	return names
}

// T is the handle a test uses to reach its runtime and report failures.
//
// A T belongs to one test run and is not safe for concurrent use.
type T struct {
	name    string
	rt      *engine.Runtime
	failure string
	logs    []string
	skipped string

	// frame is the depth of the harness's protected call currently running
	// a hook or the body. abandoned collects the frames a Skip left behind.
	frame     int
	abandoned []int
}

// Name returns the running test's name.
func (t *T) Name() string {
	return t.name
}

// Runtime returns the test's exception runtime.
func (t *T) Runtime() *engine.Runtime {
	return t.rt
}

// Assert fails the test when cond is false. A failure throws
// KindAssertionFailed, so code after a failed assertion does not run.
func (t *T) Assert(cond bool, desc string) {
	if cond {
		return
	}
	t.fail(callerLocation(2), desc)
}

// Fail fails the test unconditionally.
func (t *T) Fail(msg string) {
	t.fail(callerLocation(2), msg)
}

// Failf is Fail with a formatted message.
func (t *T) Failf(format string, args ...any) {
	t.fail(callerLocation(2), fmt.Sprintf(format, args...))
}

// Logf records a line of test output. Logs are kept in the report.
func (t *T) Logf(format string, args ...any) {
	t.logs = append(t.logs, fmt.Sprintf(format, args...))
}

// Skip stops the test without failing it. Like testing.T.SkipNow it exits
// the test's goroutine, so a Skip from inside a protected block leaves that
// block's checkpoint behind and is reported as a leak.
func (t *T) Skip(reason string) {
	t.skipped = reason
	t.abandoned = append(t.abandoned, t.frame)
	runtime.Goexit()
}

func (t *T) fail(loc engine.Location, msg string) {
	t.failure = fmt.Sprintf("assertion failed in %s at %s: %s", t.name, loc, msg)
	t.rt.ThrowAt(loc, engine.KindAssertionFailed, t.failure)
}

// AssertEqual fails the test when got != want.
func AssertEqual[V comparable](t *T, want, got V) {
	if got == want {
		return
	}
	t.fail(callerLocation(2), fmt.Sprintf("expected %v, got %v", want, got))
}

// AssertNotEqual fails the test when got == notWant.
func AssertNotEqual[V comparable](t *T, notWant, got V) {
	if got != notWant {
		return
	}
	t.fail(callerLocation(2), fmt.Sprintf("expected a value other than %v", notWant))
}

func callerLocation(skip int) engine.Location {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return engine.Location{}
	}
	return engine.Location{File: filepath.Base(file), Line: line}
}
