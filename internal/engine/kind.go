package engine

import (
	"fmt"
	"math"
)

// Kind is the integer identity of an exception category.
//
// Kinds are flat: there is no hierarchy and no closed set. Applications define
// their own values; any non-zero Kind may be thrown.
type Kind int

// KindNone is the "no exception" sentinel. It is never thrown.
const KindNone Kind = 0

// Kinds shared by the runtime and its collaborators.
const (
	KindBadObjectType       Kind = iota + 1 // expected a different object type
	KindCannotPopStack                      // cannot pop the stack
	KindGCOutOfSpace                        // GC ran out of space
	KindOutOfRange                          // operation failed bounds check
	KindCallStackExceeded                   // stack overflow
	KindRandomSeedingFailed                 // failed to read the random seed
)

const (
	// KindAssertionFailed is thrown by the test harness when an assertion fails.
	// It sits far away from application kinds so it cannot collide with them.
	KindAssertionFailed Kind = math.MaxInt32 - 3

	// KindCancelled is thrown by Runtime.CheckContext once its context is done.
	KindCancelled Kind = math.MaxInt32 - 4
)

var kindNames = map[Kind]string{
	KindNone:                "none",
	KindBadObjectType:       "bad_object_type",
	KindCannotPopStack:      "cannot_pop_stack",
	KindGCOutOfSpace:        "gc_out_of_space",
	KindOutOfRange:          "out_of_range",
	KindCallStackExceeded:   "call_stack_exceeded",
	KindRandomSeedingFailed: "random_seeding_failed",
	KindAssertionFailed:     "assertion_failed",
	KindCancelled:           "cancelled",
}

// String returns the name of a predefined kind, or kind(N) for application kinds.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}
