package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tryblock/internal/harness"
	"github.com/roach88/tryblock/internal/store"
)

func TestRunCommand_HarnessScenarios(t *testing.T) {
	out, _, err := execute(t, "run", "../harness/testdata/scenarios")
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ catch_basic")
	assert.Contains(t, out, "✓ rethrow_runs_cleanup")
	assert.Contains(t, out, "scenarios: 9 tests, 9 passed, 0 failed, 0 skipped")
}

func TestRunCommand_FailingScenario(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "a.yaml", caughtScenario)
	writeScenario(t, dir, "b.yaml", wrongScenario)

	out, _, err := execute(t, "run", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "1 of 2 tests failed", err.Error())

	assert.Contains(t, out, "✓ caught\n")
	assert.Contains(t, out, "✗ wrong [assertion_failed]\n")
	assert.Contains(t, out, "  flag caught: expected false, got true\n")
}

func TestRunCommand_FailFast(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "a.yaml", wrongScenario)
	writeScenario(t, dir, "b.yaml", caughtScenario)

	out, _, err := execute(t, "run", dir, "--fail-fast")
	require.Error(t, err)
	assert.NotContains(t, out, "caught\n")
	assert.Contains(t, out, "stopped after first failure")
}

func TestRunCommand_Filter(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "a.yaml", wrongScenario)
	writeScenario(t, dir, "b.yaml", caughtScenario)

	out, _, err := execute(t, "run", dir, "--filter", "caught")
	require.NoError(t, err)
	assert.Contains(t, out, "1 tests, 1 passed")
}

func TestRunCommand_MissingDirectory(t *testing.T) {
	out, _, err := execute(t, "run", "/nonexistent/scenarios")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "scenario directory not found")
}

func TestRunCommand_EmptyDirectory(t *testing.T) {
	out, _, err := execute(t, "run", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}

func TestRunCommand_InvalidScenario(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "bad.yaml", "name: bad\nmain: []\n")

	out, _, err := execute(t, "run", dir)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "failed to load scenarios")
}

func TestRunCommand_MissingArgs(t *testing.T) {
	_, _, err := execute(t, "run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

func TestRunCommand_UpdateGolden(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "a.yaml", caughtScenario)

	_, _, err := execute(t, "run", dir, "--update")
	require.NoError(t, err)
	golden := harness.GoldenPath(filepath.Join(dir, "golden"), "caught")
	data, err := os.ReadFile(golden)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"scenario_name":"caught"`)

	// Unchanged program matches its golden file.
	_, _, err = execute(t, "run", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(golden, []byte(`{}`), 0o644))
	out, _, err := execute(t, "run", dir)
	require.Error(t, err)
	assert.Contains(t, out, "trace does not match golden file")
}

func TestRunCommand_JSON(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "a.yaml", caughtScenario)
	writeScenario(t, dir, "b.yaml", wrongScenario)

	out, _, err := execute(t, "run", dir, "--format", "json")
	require.Error(t, err)

	var resp struct {
		Status string         `json:"status"`
		Data   harness.Report `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "failed", resp.Status)
	assert.Equal(t, filepath.Base(dir), resp.Data.Suite)
	assert.Equal(t, 1, resp.Data.Passed)
	assert.Equal(t, 1, resp.Data.Failed)
	require.Len(t, resp.Data.Results, 2)
	assert.Equal(t, harness.OutcomeAssertionFailed, resp.Data.Results[1].Outcome)
}

func TestRunCommand_RecordsRun(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "a.yaml", caughtScenario)
	dbPath := filepath.Join(t.TempDir(), "runs.db")

	out, _, err := execute(t, "run", dir, "--db", dbPath, "--format", "json")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotEmpty(t, resp.RunID)

	st, err := store.Open(dbPath)
	require.NoError(t, err)
	defer st.Close()

	run, err := st.ReadRun(context.Background(), resp.RunID)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(dir), run.Suite)
	assert.Equal(t, 1, run.Passed)
	assert.Equal(t, 128, run.MaxDepth)
	require.Len(t, run.Results, 1)
	assert.Equal(t, "caught", run.Results[0].Name)
}
