package testutil

import (
	"io"
	"log/slog"
)

// FixedIDGenerator returns the same runtime ID every time.
//
// Golden traces embed the runtime ID in every event, so scenarios run with a
// fixed ID to stay byte-identical across runs. It satisfies engine.IDGenerator.
type FixedIDGenerator struct {
	id string
}

// NewFixedIDGenerator creates a generator for id.
// An empty id falls back to "test-runtime".
func NewFixedIDGenerator(id string) *FixedIDGenerator {
	if id == "" {
		id = "test-runtime"
	}
	return &FixedIDGenerator{id: id}
}

// Generate returns the fixed ID.
func (g *FixedIDGenerator) Generate() string {
	return g.id
}

// QuietLogger returns a logger that discards everything.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
