package harness

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tryblock/internal/engine"
)

func parseInline(t *testing.T, doc string) *Scenario {
	t.Helper()
	sc, err := ParseScenario("inline.yaml", []byte(doc))
	require.NoError(t, err)
	return sc
}

func TestRunScenario_Testdata(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, sc := range scenarios {
		t.Run(sc.Name, func(t *testing.T) {
			result, err := RunScenario(sc)
			require.NoError(t, err)
			if !result.Pass {
				t.Logf("trace:\n%s", FormatTrace(result.Trace))
			}
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestExecute_UnhandledException(t *testing.T) {
	sc, err := LoadScenario("testdata/scenarios/unhandled.yaml")
	require.NoError(t, err)

	result, err := Execute(sc)
	require.NoError(t, err)
	require.NotNil(t, result.Exception)
	assert.Equal(t, engine.Kind(3), result.Exception.Kind)
	assert.Equal(t, "nobody wants this", result.Exception.Message)
	assert.Equal(t, "unhandled.yaml:6", result.Exception.Location.String())
	assert.Equal(t, engine.ErrCodeUnhandled, result.Fatal)

	last := result.Trace[len(result.Trace)-1]
	assert.Equal(t, "fatal", last.Type)
	assert.Equal(t, 3, last.Kind)
	assert.Equal(t, 0, last.Depth)
}

func TestExecute_StackOverflow(t *testing.T) {
	sc, err := LoadScenario("testdata/scenarios/overflow.yaml")
	require.NoError(t, err)

	result, err := Execute(sc)
	require.NoError(t, err)
	assert.Nil(t, result.Exception)
	assert.Equal(t, engine.ErrCodeStackOverflow, result.Fatal)
	assert.Equal(t, 4, result.MaxDepth)
	assert.False(t, result.Flags["caught"], "overflow is not delivered to handlers")
}

func TestExecute_MaxDepthOption(t *testing.T) {
	sc := parseInline(t, `name: nested
description: two nested blocks
main:
  - try:
      body:
        - try:
            body:
              - set: inner
`)
	result, err := Execute(sc, WithExecMaxDepth(1))
	require.NoError(t, err)
	assert.Equal(t, engine.ErrCodeStackOverflow, result.Fatal)

	result, err = Execute(sc, WithExecMaxDepth(2))
	require.NoError(t, err)
	assert.Empty(t, result.Fatal)
	assert.True(t, result.Flags["inner"])
	assert.Equal(t, 2, result.MaxDepth)
}

func TestExecute_ScenarioMaxDepthWins(t *testing.T) {
	sc := parseInline(t, `name: limited
description: the document's limit overrides the option
max_depth: 1
main:
  - try:
      body:
        - try:
            body:
              - set: inner
`)
	result, err := Execute(sc, WithExecMaxDepth(64))
	require.NoError(t, err)
	assert.Equal(t, engine.ErrCodeStackOverflow, result.Fatal)
}

func TestExecute_RethrowOutsideHandler(t *testing.T) {
	sc := parseInline(t, `name: early_rethrow
description: rethrow from a body has nothing to rethrow
main:
  - try:
      body:
        - rethrow: true
`)
	result, err := Execute(sc)
	require.NoError(t, err)
	assert.Equal(t, engine.ErrCodeRethrowOutsideHandler, result.Fatal)
}

func TestExecute_ProgramErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		line int
		msg  string
	}{
		{
			name: "return at top level",
			doc: `name: toplevel_return
description: return needs an enclosing try
main:
  - set: a
  - return: {value: 1}
`,
			line: 5,
			msg:  "return outside any try",
		},
		{
			name: "rethrow at top level",
			doc: `name: toplevel_rethrow
description: rethrow needs an enclosing try
main:
  - rethrow: true
`,
			line: 4,
			msg:  "rethrow outside any try",
		},
		{
			name: "unbounded recursion",
			doc: `name: forever
description: recursion without a try never overflows the checkpoint stack
functions:
  loop:
    - call: loop
main:
  - call: loop
`,
			line: 5,
			msg:  "call depth exceeds 1024",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := parseInline(t, tt.doc)
			_, err := Execute(sc)
			require.Error(t, err)

			var pe *ProgramError
			require.True(t, errors.As(err, &pe))
			assert.Equal(t, tt.line, pe.Line)
			assert.Equal(t, tt.msg, pe.Message)
		})
	}
}

func TestExecute_DeferredReturnFromNestedScope(t *testing.T) {
	sc := parseInline(t, `name: nested_return
description: a return inside a handler still targets the enclosing try
main:
  - try:
      result: out
      body:
        - throw: {kind: 2}
      catch:
        - kind: 2
          steps:
            - return: {value: 7}
      finally:
        - set: cleaned
`)
	result, err := Execute(sc)
	require.NoError(t, err)
	assert.Equal(t, 7, result.Values["out"])
	assert.True(t, result.Flags["cleaned"])

	var types []string
	for _, ev := range result.Trace {
		types = append(types, ev.Type)
	}
	assert.Equal(t, []string{"enter", "throw", "catch", "finally", "leave", "return"}, types)
}

func TestExecute_Deterministic(t *testing.T) {
	sc, err := LoadScenario("testdata/scenarios/bubbling.yaml")
	require.NoError(t, err)

	first, err := Execute(sc)
	require.NoError(t, err)
	second, err := Execute(sc)
	require.NoError(t, err)

	d1, err := SnapshotDigest(sc.Name, first)
	require.NoError(t, err)
	d2, err := SnapshotDigest(sc.Name, second)
	require.NoError(t, err)
	assert.Equal(t, d1, d2)
	assert.Equal(t, first.Trace, second.Trace)
}

func TestExecute_Observer(t *testing.T) {
	sc, err := LoadScenario("testdata/scenarios/catch_basic.yaml")
	require.NoError(t, err)

	rec := engine.NewRecorder()
	result, err := Execute(sc, WithExecObserver(rec))
	require.NoError(t, err)

	events := rec.Events()
	require.Len(t, events, len(result.Trace))
	for _, ev := range events {
		assert.Equal(t, "catch_basic", ev.RuntimeID)
	}
	assert.Equal(t, engine.EventCatch, events[2].Type)
	assert.Equal(t, 1, events[2].Handler)
}

func TestRunScenario_ReportsFailedExpectations(t *testing.T) {
	sc := parseInline(t, `name: wrong_expectations
description: expectations that do not hold
main:
  - try:
      body:
        - throw: {kind: 4}
      catch:
        - all: true
          bind: seen
          steps:
            - set: caught
flags:
  caught: false
values:
  seen: 5
  never: 1
assertions:
  - type: trace_count
    event: catch
    count: 2
`)
	result, err := RunScenario(sc)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, []string{
		"flag caught: expected false, got true",
		"value never: expected 1, never assigned",
		"value seen: expected 5, got 4",
		"assertions[0]: " + (&AssertionError{
			Type:     AssertTraceCount,
			Expected: "2 x catch",
			Actual:   "1 occurrences",
			Trace:    result.Trace,
		}).Error(),
	}, result.Errors)
}

func TestScenarioSuite(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)

	failing := parseInline(t, `name: expects_escape
description: claims an exception escapes but the program catches it
main:
  - try:
      body:
        - throw: {kind: 1}
      catch:
        - kind: 1
          steps:
            - set: caught
expect_exception:
  kind: 1
`)

	suite := ScenarioSuite("scenarios", append(scenarios, failing))
	report := Run(suite, RunConfig{})
	require.Equal(t, len(scenarios)+1, report.Total())
	for _, res := range report.Results[:len(scenarios)] {
		assert.Equal(t, OutcomePassed, res.Outcome, "%s: %s %v", res.Name, res.Message, res.Logs)
	}

	last := report.Results[len(scenarios)]
	assert.Equal(t, "expects_escape", last.Name)
	assert.Equal(t, OutcomeAssertionFailed, last.Outcome)
	assert.Contains(t, last.Message, "scenario expects_escape failed 1 check(s)")
	assert.Equal(t, []string{"expected exception kind 1 to escape, program completed normally"}, last.Logs)
	assert.Equal(t, 1, report.ExitCode())
}
