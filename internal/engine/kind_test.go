package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind_Values(t *testing.T) {
	assert.Equal(t, Kind(0), KindNone)
	assert.Equal(t, Kind(1), KindBadObjectType)
	assert.Equal(t, Kind(6), KindRandomSeedingFailed)
	assert.Equal(t, Kind(math.MaxInt32-3), KindAssertionFailed)
	assert.NotEqual(t, KindAssertionFailed, KindCancelled)
}

func TestKind_String(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindNone, "none"},
		{KindCannotPopStack, "cannot_pop_stack"},
		{KindCallStackExceeded, "call_stack_exceeded"},
		{KindAssertionFailed, "assertion_failed"},
		{KindCancelled, "cancelled"},
		{Kind(42), "kind(42)"},
		{Kind(-1), "kind(-1)"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.kind.String())
		})
	}
}
