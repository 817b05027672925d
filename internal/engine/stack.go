package engine

import (
	"fmt"
	"strings"
)

// DefaultMaxDepth is the default maximum protected-block nesting depth.
const DefaultMaxDepth = 128

// Checkpoint is one active protected region.
//
// Depth is assigned at push time and never changes. Owner is the frame ID of
// the controller that pushed the checkpoint; only that controller may pop it.
type Checkpoint struct {
	Depth    int      `json:"depth"`
	Location Location `json:"location"`
	Owner    uint64   `json:"owner"`
}

// CheckpointStack is a bounded LIFO stack of checkpoints.
//
// The stack records where each protected block was entered. The actual
// resumption point is the Go call frame of the owning controller: a throw
// panics, and unwinding lands in the innermost running controller, which is
// always the owner of the top checkpoint.
type CheckpointStack struct {
	entries  []Checkpoint
	maxDepth int
}

// NewCheckpointStack creates a stack holding at most maxDepth checkpoints.
// A non-positive maxDepth selects DefaultMaxDepth.
func NewCheckpointStack(maxDepth int) *CheckpointStack {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &CheckpointStack{
		entries:  make([]Checkpoint, 0, min(maxDepth, 16)),
		maxDepth: maxDepth,
	}
}

// Push registers a checkpoint at the next free slot and returns its depth.
//
// Returns an ErrCodeStackOverflow error when the stack is full.
func (s *CheckpointStack) Push(loc Location, owner uint64) (int, error) {
	depth := len(s.entries)
	if depth >= s.maxDepth {
		return depth, &EngineError{
			Code:    ErrCodeStackOverflow,
			Message: fmt.Sprintf("protected block nesting exceeds max depth %d at %s", s.maxDepth, loc),
		}
	}
	s.entries = append(s.entries, Checkpoint{Depth: depth, Location: loc, Owner: owner})
	return depth, nil
}

// Pop removes the topmost checkpoint.
//
// Returns ErrCodePopOnEmpty when the stack is empty and ErrCodeFrameMismatch
// when the top checkpoint belongs to another owner. Both mean the nesting
// discipline is broken.
func (s *CheckpointStack) Pop(owner uint64) error {
	if len(s.entries) == 0 {
		return &EngineError{
			Code:    ErrCodePopOnEmpty,
			Message: "pop on empty checkpoint stack",
		}
	}
	top := s.entries[len(s.entries)-1]
	if top.Owner != owner {
		return &EngineError{
			Code: ErrCodeFrameMismatch,
			Message: fmt.Sprintf("frame %d cannot pop checkpoint %d owned by frame %d (%s)",
				owner, top.Depth, top.Owner, top.Location),
		}
	}
	s.entries = s.entries[:len(s.entries)-1]
	return nil
}

// Top returns the topmost checkpoint, if any.
func (s *CheckpointStack) Top() (Checkpoint, bool) {
	if len(s.entries) == 0 {
		return Checkpoint{}, false
	}
	return s.entries[len(s.entries)-1], true
}

// Depth returns the number of live checkpoints.
func (s *CheckpointStack) Depth() int {
	return len(s.entries)
}

// MaxDepth returns the capacity of the stack.
func (s *CheckpointStack) MaxDepth() int {
	return s.maxDepth
}

// Reset drops every checkpoint. Only used after a fatal error.
func (s *CheckpointStack) Reset() {
	s.entries = s.entries[:0]
}

// Snapshot returns a copy of the live checkpoints, bottom first.
func (s *CheckpointStack) Snapshot() StackSnapshot {
	cps := make([]Checkpoint, len(s.entries))
	copy(cps, s.entries)
	return StackSnapshot{Depth: len(cps), Checkpoints: cps}
}

// StackSnapshot is the diagnostic view of a checkpoint stack.
// The harness uses it to report leaked frames after a test.
type StackSnapshot struct {
	Depth       int          `json:"depth"`
	Checkpoints []Checkpoint `json:"checkpoints"`
}

// String lists one checkpoint location per line.
func (s StackSnapshot) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "checkpoint stack (depth %d):\n", s.Depth)
	for _, cp := range s.Checkpoints {
		fmt.Fprintf(&b, "  [%d] %s\n", cp.Depth, cp.Location)
	}
	return b.String()
}
