package engine

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
)

// Runtime is one logical task's exception state: a checkpoint stack and a
// current-exception register.
//
// Thread-safety: a Runtime is NOT safe for concurrent use. Each goroutine that
// throws or protects code needs its own Runtime; sharing one would let a throw
// on one goroutine resume a checkpoint pushed by another.
type Runtime struct {
	id       string
	stack    *CheckpointStack
	register *Register
	clock    Sequencer
	logger   *slog.Logger
	observer Observer
	idGen    IDGenerator
	maxDepth int
	frames   uint64
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithMaxDepth sets the maximum protected-block nesting depth.
//
// Default: 128 (DefaultMaxDepth).
func WithMaxDepth(n int) Option {
	return func(r *Runtime) {
		r.maxDepth = n
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) {
		r.logger = l
	}
}

// WithObserver registers an observer for engine events.
func WithObserver(o Observer) Option {
	return func(r *Runtime) {
		r.observer = o
	}
}

// WithClock sets the sequencer stamping events, e.g. one clock shared between
// runtimes reporting to one recorder.
func WithClock(c Sequencer) Option {
	return func(r *Runtime) {
		r.clock = c
	}
}

// WithIDGenerator overrides the runtime ID generator (UUIDv7 by default).
func WithIDGenerator(g IDGenerator) Option {
	return func(r *Runtime) {
		r.idGen = g
	}
}

// New creates a Runtime with an empty checkpoint stack.
func New(opts ...Option) *Runtime {
	r := &Runtime{
		register: NewRegister(),
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.clock == nil {
		r.clock = NewClock()
	}
	if r.idGen == nil {
		r.idGen = UUIDv7Generator{}
	}
	r.stack = NewCheckpointStack(r.maxDepth)
	r.id = r.idGen.Generate()
	return r
}

// ID returns the runtime identifier.
func (r *Runtime) ID() string {
	return r.id
}

// Depth returns the current checkpoint depth.
func (r *Runtime) Depth() int {
	return r.stack.Depth()
}

// MaxDepth returns the configured nesting limit.
func (r *Runtime) MaxDepth() int {
	return r.stack.MaxDepth()
}

// Snapshot returns the live checkpoints for leak diagnostics.
func (r *Runtime) Snapshot() StackSnapshot {
	return r.stack.Snapshot()
}

// Current returns a copy of the most recently thrown exception.
func (r *Runtime) Current() (Exception, bool) {
	return r.register.Current()
}

// Handled reports whether the most recent exception has been claimed.
func (r *Runtime) Handled() bool {
	return r.register.Handled()
}

// MarkHandled claims the current exception and returns the previous flag.
func (r *Runtime) MarkHandled() bool {
	return r.register.MarkHandled()
}

// Throw raises an exception of the given kind. It never returns: control
// moves to the innermost protected block. With no protected block on the
// stack the exception is unhandled, which is fatal.
func (r *Runtime) Throw(kind Kind, message string) {
	r.throw(kind, message, callerLocation(2))
}

// Throwf is Throw with a formatted message.
func (r *Runtime) Throwf(kind Kind, format string, args ...any) {
	r.throw(kind, fmt.Sprintf(format, args...), callerLocation(2))
}

// ThrowAt is Throw with an explicit source location.
func (r *Runtime) ThrowAt(loc Location, kind Kind, message string) {
	r.throw(kind, message, loc)
}

// CheckContext throws KindCancelled if ctx is done.
func (r *Runtime) CheckContext(ctx context.Context) {
	if err := ctx.Err(); err != nil {
		r.throw(KindCancelled, err.Error(), callerLocation(2))
	}
}

// Supervise runs fn and converts a fatal engine error into a returned error.
//
// Checkpoints left behind by the failed frames are discarded and the register
// is reset, so the runtime can be reused. Application exceptions and foreign
// panics are not intercepted.
func (r *Runtime) Supervise(fn func()) (err error) {
	base := r.stack.Depth()
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		ee, ok := rec.(*EngineError)
		if !ok {
			panic(rec)
		}
		r.stack.truncate(base)
		r.register.Reset()
		err = ee
	}()
	fn()
	return nil
}

func (r *Runtime) throw(kind Kind, message string, loc Location) {
	if kind == KindNone {
		r.fatal(&EngineError{
			Code:    ErrCodeInvalidKind,
			Message: fmt.Sprintf("cannot throw %s at %s", kind, loc),
		})
	}
	exc := Exception{Kind: kind, Message: message, Location: loc}
	r.register.Record(exc)
	r.emit(Event{
		Type:     EventThrow,
		Depth:    r.stack.Depth(),
		Kind:     kind,
		Message:  message,
		Location: loc,
	})
	r.raise(exc)
}

// propagate re-raises exc against the next enclosing checkpoint after the
// current frame has been popped.
func (r *Runtime) propagate(exc Exception) {
	r.register.Record(exc)
	r.raise(exc)
}

// raise transfers control to the top checkpoint's controller.
func (r *Runtime) raise(exc Exception) {
	if r.stack.Depth() == 0 {
		r.fatal(&EngineError{
			Code:      ErrCodeUnhandled,
			Message:   fmt.Sprintf("unhandled exception thrown at %s", exc.Location),
			Exception: &exc,
		})
	}
	panic(&thrown{rt: r, exc: exc})
}

// fatal logs and raises an engine error.
func (r *Runtime) fatal(err *EngineError) {
	err.Snapshot = r.stack.Snapshot()
	attrs := []any{"runtime", r.id, "code", err.Code, "depth", err.Snapshot.Depth}
	ev := Event{Type: EventFatal, Depth: err.Snapshot.Depth, Message: err.Message}
	if err.Exception != nil {
		attrs = append(attrs, "kind", int(err.Exception.Kind), "message", err.Exception.Message)
		ev.Kind = err.Exception.Kind
		ev.Location = err.Exception.Location
	}
	r.logger.Error("fatal engine error", attrs...)
	r.emit(ev)
	panic(err)
}

func (r *Runtime) emit(ev Event) {
	if r.observer == nil {
		return
	}
	ev.Seq = r.clock.Next()
	ev.RuntimeID = r.id
	r.observer.OnEvent(ev)
}

func (r *Runtime) nextFrameID() uint64 {
	r.frames++
	return r.frames
}

// thrown is the panic value carrying an exception to the innermost controller
// of the runtime that raised it. Controllers of other runtimes let it pass.
type thrown struct {
	rt  *Runtime
	exc Exception

	// rethrownBy is the frame whose handler rethrew exc, zero for a throw.
	// Frames pushed after it, inside the handler, let the exception pass.
	rethrownBy uint64
}

// returnSignal is the panic value carrying a deferred return to its scope.
type returnSignal struct {
	rt    *Runtime
	owner uint64
	value any
}

// truncate drops checkpoints above depth. Only Supervise uses it, after a
// fatal error unwound frames without popping them.
func (s *CheckpointStack) truncate(depth int) {
	if depth < len(s.entries) {
		s.entries = s.entries[:depth]
	}
}

func callerLocation(skip int) Location {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return Location{}
	}
	return Location{File: filepath.Base(file), Line: line}
}
