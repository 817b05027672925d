package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tryblock/internal/harness"
)

func TestTraceCommand_Text(t *testing.T) {
	out, _, err := execute(t, "trace", "../harness/testdata/scenarios/unhandled.yaml")
	require.NoError(t, err)

	assert.Contains(t, out, "scenario unhandled\n")
	assert.Contains(t, out, "throw")
	assert.Contains(t, out, "at unhandled.yaml:6")
	assert.Contains(t, out, `ended: unhandled gc_out_of_space "nobody wants this" at unhandled.yaml:6`)
	assert.Contains(t, out, "max depth: 1\n")
	assert.Contains(t, out, "digest: ")
}

func TestTraceCommand_DigestIsStable(t *testing.T) {
	file := "../harness/testdata/scenarios/bubbling.yaml"
	first, _, err := execute(t, "trace", file, "--format", "json")
	require.NoError(t, err)
	second, _, err := execute(t, "trace", file, "--format", "json")
	require.NoError(t, err)

	var a, b struct {
		Data TraceOutput `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(first), &a))
	require.NoError(t, json.Unmarshal([]byte(second), &b))
	assert.Equal(t, "bubbling", a.Data.Scenario)
	assert.NotEmpty(t, a.Data.Digest)
	assert.Equal(t, a.Data.Digest, b.Data.Digest)
	assert.Equal(t, 3, a.Data.Result.MaxDepth)
}

func TestTraceCommand_Fatal(t *testing.T) {
	out, _, err := execute(t, "trace", "../harness/testdata/scenarios/overflow.yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "ended: fatal STACK_OVERFLOW\n")
}

func TestTraceCommand_ProgramError(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "a.yaml", `name: toplevel_return
description: return needs an enclosing try
main:
  - return: {value: 1}
`)
	out, _, err := execute(t, "trace", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "program error at line 4: return outside any try")
}

func TestTraceCommand_MissingFile(t *testing.T) {
	_, _, err := execute(t, "trace", "/nonexistent.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestDescribeEnding(t *testing.T) {
	assert.Equal(t, "normal", describeEnding(harness.NewResult()))
}
