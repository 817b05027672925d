package selftest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tryblock/internal/engine"
	"github.com/roach88/tryblock/internal/harness"
)

func TestSuite_AllPass(t *testing.T) {
	rec := engine.NewRecorder()
	report := harness.Run(Suite(), harness.RunConfig{Observer: rec})

	for _, res := range report.Results {
		assert.Equal(t, harness.OutcomePassed, res.Outcome, "%s: %s", res.Name, res.Message)
	}
	assert.Equal(t, len(Suite().Tests()), report.Total())
	assert.True(t, report.OK())
	assert.Zero(t, report.Skipped)

	// Every checkpoint pushed during the run was popped again.
	assert.Equal(t, rec.Count(engine.EventEnter), rec.Count(engine.EventLeave))
}

func TestSuite_RunsTwice(t *testing.T) {
	s := Suite()
	first := harness.Run(s, harness.RunConfig{})
	second := harness.Run(s, harness.RunConfig{})
	assert.Equal(t, first.Passed, second.Passed)
	assert.True(t, second.OK())
}

func TestSuite_ExpectedException(t *testing.T) {
	report := harness.Run(Suite(), harness.RunConfig{Filter: "can expect exceptions"})
	require.Len(t, report.Results, 1)
	res := report.Results[0]
	assert.Equal(t, harness.OutcomePassed, res.Outcome)
	assert.Equal(t, engine.Kind(5), res.Expected)
	assert.Equal(t, engine.Kind(5), res.Observed)
}

func TestSuite_Names(t *testing.T) {
	names := Suite().Tests()
	assert.Contains(t, names, "unhandled exceptions will bubble")
	assert.Contains(t, names, "rethrow runs the frame's finally first")
	assert.Equal(t, "can throw exceptions", names[0])
}
