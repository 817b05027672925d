package engine

import "sync/atomic"

// Sequencer issues strictly increasing event sequence numbers.
type Sequencer interface {
	Next() int64
}

// Clock is a monotonic logical clock that stamps engine events.
//
// Events are ordered by seq, never by wall-clock time, so two runs of the same
// program produce the same trace.
//
// Thread-safety: Clock is safe for concurrent use. Several runtimes may share
// one clock to get a single global order across goroutines.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number. The first call returns 1.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last issued sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
