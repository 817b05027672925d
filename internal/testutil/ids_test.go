package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedIDGenerator(t *testing.T) {
	g := NewFixedIDGenerator("scenario-a")
	assert.Equal(t, "scenario-a", g.Generate())
	assert.Equal(t, "scenario-a", g.Generate())

	assert.Equal(t, "test-runtime", NewFixedIDGenerator("").Generate())
}

func TestQuietLogger(t *testing.T) {
	logger := QuietLogger()
	assert.NotNil(t, logger)
	logger.Error("dropped")
}
