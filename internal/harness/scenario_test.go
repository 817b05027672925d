package harness

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_CatchBasic(t *testing.T) {
	sc, err := LoadScenario("testdata/scenarios/catch_basic.yaml")
	require.NoError(t, err)

	assert.Equal(t, "catch_basic", sc.Name)
	assert.Equal(t, "testdata/scenarios/catch_basic.yaml", sc.Path)
	assert.Equal(t, "catch_basic.yaml", sc.File())
	require.Len(t, sc.Main, 1)

	try := sc.Main[0].Try
	require.NotNil(t, try)
	assert.Equal(t, 4, sc.Main[0].Line)
	require.Len(t, try.Body, 3)
	assert.Equal(t, "reached_body", try.Body[0].Set)
	assert.Equal(t, 7, try.Body[1].Line)
	assert.Equal(t, &ThrowStep{Kind: 3, Message: "third"}, try.Body[1].Throw)

	require.Len(t, try.Catch, 3)
	assert.Equal(t, 1, try.Catch[0].Kind)
	assert.Equal(t, "seen", try.Catch[1].Bind)
	assert.True(t, try.Catch[2].All)
	require.Len(t, try.Finally, 1)

	assert.Equal(t, map[string]bool{"reached_body": true, "after_throw": false, "cleaned": true}, sc.Flags)
	assert.Equal(t, map[string]int{"caught": 3, "seen": 3}, sc.Values)
	require.Len(t, sc.Assertions, 3)
	assert.Equal(t, AssertTraceOrder, sc.Assertions[0].Type)
	require.NotNil(t, sc.Assertions[2].Depth)
	assert.Equal(t, 1, *sc.Assertions[2].Depth)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("testdata/scenarios/nope.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenarios_Directory(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)

	var names []string
	for _, sc := range scenarios {
		names = append(names, sc.Name)
	}
	// Sorted by file name, not scenario name.
	assert.Equal(t, []string{
		"bubbling",
		"catch_basic",
		"deferred_return",
		"finally_replaces",
		"nested_handler_throw",
		"overflow",
		"rethrow_runs_cleanup",
		"return_in_finally",
		"unhandled",
	}, names)
}

func TestScenarioFiles_IgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.yml", "a.yaml", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested.yaml"), 0o755))

	files, err := ScenarioFiles(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.yaml"), filepath.Join(dir, "b.yml")}, files)
}

func TestLoadScenario_SchemaViolations(t *testing.T) {
	tests := []struct {
		file string
	}{
		{"testdata/invalid/unknown_field.yaml"},
		{"testdata/invalid/zero_kind.yaml"},
	}
	for _, tt := range tests {
		t.Run(filepath.Base(tt.file), func(t *testing.T) {
			_, err := LoadScenario(tt.file)
			require.Error(t, err)

			var schemaErrs SchemaErrors
			require.True(t, errors.As(err, &schemaErrs), "expected SchemaErrors, got %T: %v", err, err)
			assert.NotEmpty(t, schemaErrs)
			assert.Contains(t, err.Error(), "schema validation failed")
		})
	}
}

func TestLoadScenario_UndefinedCall(t *testing.T) {
	_, err := LoadScenario("testdata/invalid/undefined_call.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `call to undefined function "missing"`)
	assert.Contains(t, err.Error(), "main[0] (line 4)")
}

func TestParseScenario_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{
			name:    "malformed yaml",
			doc:     "name: [unclosed\n",
			wantErr: "failed to parse YAML",
		},
		{
			name: "missing description",
			doc: `name: nodesc
main:
  - set: a
`,
			wantErr: "schema validation failed",
		},
		{
			name: "empty main",
			doc: `name: empty
description: nothing to run
main: []
`,
			wantErr: "schema validation failed",
		},
		{
			name: "catch with kind and all",
			doc: `name: both
description: a handler is either selective or catch-all
main:
  - try:
      body:
        - set: a
      catch:
        - kind: 1
          all: true
          steps: []
`,
			wantErr: "schema validation failed",
		},
		{
			name: "two instructions in one step",
			doc: `name: double
description: one instruction per step
main:
  - set: a
    call: b
`,
			wantErr: "schema validation failed",
		},
		{
			name: "unknown fatal code",
			doc: `name: badfatal
description: fatal codes are a closed set
main:
  - set: a
expect_fatal: EXPLODED
`,
			wantErr: "schema validation failed",
		},
		{
			name: "exclusive expectations",
			doc: `name: exclusive
description: an exception escape is not a fatal error
main:
  - throw: {kind: 1}
expect_exception: {kind: 1}
expect_fatal: UNHANDLED
`,
			wantErr: "expect_exception and expect_fatal are mutually exclusive",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario("inline.yaml", []byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateScenario_StepShape(t *testing.T) {
	sc := &Scenario{
		Name: "shape",
		Main: []Step{{Set: "a", Call: "b", Line: 9}},
	}
	err := validateScenario(sc)
	require.Error(t, err)
	assert.Equal(t, "main[0] (line 9): step must set exactly one instruction, found 2", err.Error())

	sc.Main = []Step{{Try: &TryStep{
		Body:  []Step{{Set: "a"}},
		Catch: []CatchClause{{Steps: []Step{{Set: "b"}}}},
	}}}
	err = validateScenario(sc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), ".catch[0]: set either kind or all")

	sc.Main = []Step{{Throw: &ThrowStep{}}}
	err = validateScenario(sc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throw kind must be non-zero")
}

func TestValidateScenario_FunctionBodies(t *testing.T) {
	sc := &Scenario{
		Name: "funcs",
		Functions: map[string][]Step{
			"helper": {{Call: "ghost", Line: 3}},
		},
		Main: []Step{{Call: "helper"}},
	}
	err := validateScenario(sc)
	require.Error(t, err)
	assert.Equal(t, `functions.helper[0] (line 3): call to undefined function "ghost"`, err.Error())
}

func TestScenario_FileWithoutPath(t *testing.T) {
	sc := &Scenario{Name: "inline"}
	assert.Equal(t, "inline.yaml", sc.File())
}
