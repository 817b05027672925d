package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTraceDigest_Known(t *testing.T) {
	d, err := TraceDigest(map[string]any{"a": 1})
	require.NoError(t, err)
	assert.Equal(t, "be6c9ea9c1378f7ccd475b4fb385150a7ed9b423f98f94c5268ad9503162478b", d)
}

func TestDigest_DomainSeparation(t *testing.T) {
	doc := map[string]any{"a": 1}

	run, err := RunDigest(doc)
	require.NoError(t, err)
	assert.Equal(t, "2d47fd17ea77d0f087f3b7f50b998f61d39acdff052cf3d7232c3118d8d6d53d", run)
	trace, err := TraceDigest(doc)
	require.NoError(t, err)
	assert.NotEqual(t, trace, run)
}

func TestTraceDigest_KeyOrderIndependent(t *testing.T) {
	a := map[string]any{"seq": 1, "type": "enter"}
	b := map[string]any{"type": "enter", "seq": 1}
	c := map[string]any{"seq": 2, "type": "enter"}

	da, err := TraceDigest(a)
	require.NoError(t, err)
	db, err := TraceDigest(b)
	require.NoError(t, err)
	dc, err := TraceDigest(c)
	require.NoError(t, err)
	assert.Equal(t, da, db)
	assert.NotEqual(t, da, dc)
}

func TestDigest_Errors(t *testing.T) {
	_, err := TraceDigest(1.5)
	assert.ErrorContains(t, err, "TraceDigest")
	_, err = RunDigest(nil)
	assert.ErrorContains(t, err, "RunDigest")
}
