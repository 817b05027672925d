package engine

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

// newTestRuntime returns a quiet runtime with a recorder attached. The
// cleanup asserts the checkpoint stack returned to depth 0.
func newTestRuntime(t *testing.T, opts ...Option) (*Runtime, *Recorder) {
	t.Helper()
	rec := NewRecorder()
	base := []Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithObserver(rec),
		WithIDGenerator(NewFixedGenerator("rt-test")),
	}
	rt := New(append(base, opts...)...)
	t.Cleanup(func() {
		assert.Equal(t, 0, rt.Depth(), "checkpoint leak:\n%s", rt.Snapshot())
	})
	return rt, rec
}

func throwException(rt *Runtime, kind Kind) {
	rt.Throw(kind, "unit test exception")
}

func eventTypes(events []Event) []EventType {
	out := make([]EventType, len(events))
	for i, ev := range events {
		out[i] = ev.Type
	}
	return out
}
