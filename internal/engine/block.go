package engine

import "fmt"

// Phase is the state of one protected-block activation.
//
// Phases only move forward: Enter → Body → Dispatch → Finally → Unwind → Done.
// Dispatch is skipped when the body raised nothing.
type Phase int

const (
	PhaseEnter Phase = iota
	PhaseBody
	PhaseDispatch
	PhaseFinally
	PhaseUnwind
	PhaseDone
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseEnter:
		return "enter"
	case PhaseBody:
		return "body"
	case PhaseDispatch:
		return "dispatch"
	case PhaseFinally:
		return "finally"
	case PhaseUnwind:
		return "unwind"
	case PhaseDone:
		return "done"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Block is one try/catch/finally construct. T is the type of value a
// deferred return (Scope.Return) produces.
//
//	v, returned := engine.Try(rt, func(s *engine.Scope[int]) {
//		s.Return(compute())
//	}).Catch(KindOutOfRange, func(s *engine.Scope[int]) {
//		s.Return(-1)
//	}).Finally(func() {
//		release()
//	}).Run()
//
// Handlers are tried in declaration order; the first match wins. A Block runs
// once.
type Block[T any] struct {
	rt       *Runtime
	loc      Location
	body     func(*Scope[T])
	handlers []handler[T]
	cleanups []func()
	used     bool
}

type handler[T any] struct {
	kind     Kind
	all      bool
	catch    func(*Scope[T])
	catchAll func(*Scope[T], Exception)
}

// matches reports whether the handler accepts exc. It has no side effects;
// claiming the exception is a separate step taken only for the winner.
func (h handler[T]) matches(exc Exception) bool {
	return h.all || h.kind == exc.Kind
}

// Try declares a protected block whose body is fn. Nothing runs until Run.
func Try[T any](rt *Runtime, fn func(*Scope[T])) *Block[T] {
	return TryAt(rt, callerLocation(2), fn)
}

// Unit is the value type of blocks that never use a deferred return.
type Unit struct{}

// Try declares a protected block without a deferred-return value.
func (r *Runtime) Try(fn func(*Scope[Unit])) *Block[Unit] {
	return TryAt(r, callerLocation(2), fn)
}

// TryAt is Try with an explicit location for diagnostics.
func TryAt[T any](rt *Runtime, loc Location, fn func(*Scope[T])) *Block[T] {
	return &Block[T]{rt: rt, loc: loc, body: fn}
}

// Catch declares a handler for exceptions of exactly kind.
func (b *Block[T]) Catch(kind Kind, fn func(*Scope[T])) *Block[T] {
	b.mustBeUnused("Catch")
	b.handlers = append(b.handlers, handler[T]{kind: kind, catch: fn})
	return b
}

// CatchAll declares a handler for any exception not claimed by an earlier handler.
func (b *Block[T]) CatchAll(fn func(*Scope[T], Exception)) *Block[T] {
	b.mustBeUnused("CatchAll")
	b.handlers = append(b.handlers, handler[T]{all: true, catchAll: fn})
	return b
}

// Finally declares cleanup that runs once on every exit path.
// Several cleanups run in declaration order.
func (b *Block[T]) Finally(fn func()) *Block[T] {
	b.mustBeUnused("Finally")
	b.cleanups = append(b.cleanups, fn)
	return b
}

// Run executes the block.
//
// It returns the value passed to Scope.Return and true when a deferred return
// was requested, or the zero value and false when the block completed
// normally or handled its exception. An unhandled exception, or one raised by
// a handler or cleanup, leaves Run non-locally towards the enclosing block.
func (b *Block[T]) Run() (T, bool) {
	b.mustBeUnused("Run")
	b.used = true

	rt := b.rt
	f := &frame[T]{id: rt.nextFrameID(), matched: -1}
	s := &Scope[T]{rt: rt, f: f}

	f.phase = PhaseEnter
	depth, err := rt.stack.Push(b.loc, f.id)
	if err != nil {
		rt.fatal(err.(*EngineError))
	}
	f.depth = depth
	rt.logger.Debug("checkpoint pushed", "runtime", rt.id, "depth", depth, "location", b.loc.String())
	rt.emit(Event{Type: EventEnter, Depth: depth, Location: b.loc})

	f.phase = PhaseBody
	b.guard(f, func() { b.body(s) })

	if f.pending != nil {
		f.phase = PhaseDispatch
		b.dispatch(s, f)
	}

	f.phase = PhaseFinally
	if len(b.cleanups) > 0 {
		rt.emit(Event{Type: EventFinally, Depth: depth, Location: b.loc})
		for _, fn := range b.cleanups {
			b.guard(f, fn)
		}
	}

	f.phase = PhaseUnwind
	return b.unwind(f)
}

// frame is the controller-local state of one activation.
type frame[T any] struct {
	id        uint64
	depth     int
	phase     Phase
	pending   *Exception // exception the body raised
	handled   bool
	matched   int
	inHandler bool
	raised    *Exception // exception raised by a handler or cleanup
	returned  bool
	value     T
	escape    any // foreign panic or another scope's return, re-raised after cleanup
}

// guard runs fn and converts the engine's panic signals into frame state.
func (b *Block[T]) guard(f *frame[T], fn func()) {
	defer func() {
		rec := recover()
		if rec == nil {
			return
		}
		switch sig := rec.(type) {
		case *thrown:
			if sig.rt != b.rt || (sig.rethrownBy != 0 && f.id > sig.rethrownBy) {
				f.escape = rec
				return
			}
			b.verifyTop(f)
			exc := sig.exc
			switch f.phase {
			case PhaseBody:
				f.pending = &exc
			case PhaseFinally:
				// An exception leaving a cleanup replaces whatever was in flight.
				f.raised = &exc
				f.escape = nil
				f.returned = false
			default:
				f.raised = &exc
			}
		case *returnSignal:
			if sig.rt != b.rt || sig.owner != f.id {
				f.escape = rec
				return
			}
			f.returned = true
			f.value, _ = sig.value.(T)
		case *EngineError:
			panic(sig)
		default:
			f.escape = rec
		}
	}()
	fn()
}

func (b *Block[T]) dispatch(s *Scope[T], f *frame[T]) {
	rt := b.rt
	exc := *f.pending
	for i, h := range b.handlers {
		if !h.matches(exc) {
			continue
		}
		f.matched = i
		f.handled = true
		rt.register.MarkHandled()
		rt.logger.Debug("handler matched",
			"runtime", rt.id, "depth", f.depth, "kind", int(exc.Kind), "handler", i)
		rt.emit(Event{
			Type:     EventCatch,
			Depth:    f.depth,
			Kind:     exc.Kind,
			Message:  exc.Message,
			Location: b.loc,
			Handler:  i,
		})

		f.inHandler = true
		b.guard(f, func() {
			if h.all {
				h.catchAll(s, exc)
			} else {
				h.catch(s)
			}
		})
		f.inHandler = false
		return
	}
	rt.logger.Debug("no handler matched", "runtime", rt.id, "depth", f.depth, "kind", int(exc.Kind))
}

func (b *Block[T]) unwind(f *frame[T]) (T, bool) {
	rt := b.rt
	b.pop(f)
	f.phase = PhaseDone

	switch {
	case f.escape != nil:
		panic(f.escape)
	case f.raised != nil:
		exc := *f.raised
		rt.emit(Event{Type: EventUnwind, Depth: f.depth, Kind: exc.Kind, Message: exc.Message, Location: b.loc})
		rt.propagate(exc)
	case f.pending != nil && !f.handled:
		exc := *f.pending
		rt.logger.Debug("exception not handled in frame, propagating",
			"runtime", rt.id, "depth", f.depth, "kind", int(exc.Kind))
		rt.emit(Event{Type: EventUnwind, Depth: f.depth, Kind: exc.Kind, Message: exc.Message, Location: b.loc})
		rt.propagate(exc)
	}

	if f.returned {
		rt.emit(Event{Type: EventReturn, Depth: f.depth, Location: b.loc})
	}
	return f.value, f.returned
}

func (b *Block[T]) pop(f *frame[T]) {
	rt := b.rt
	if err := rt.stack.Pop(f.id); err != nil {
		rt.fatal(err.(*EngineError))
	}
	rt.logger.Debug("checkpoint popped", "runtime", rt.id, "depth", f.depth)
	rt.emit(Event{Type: EventLeave, Depth: f.depth, Location: b.loc})
}

// verifyTop checks that an exception landed on the frame owning the top
// checkpoint. Anything else means a nested frame leaked its checkpoint.
func (b *Block[T]) verifyTop(f *frame[T]) {
	top, ok := b.rt.stack.Top()
	if ok && top.Owner == f.id {
		return
	}
	b.rt.fatal(&EngineError{
		Code:    ErrCodeFrameMismatch,
		Message: fmt.Sprintf("exception landed on frame %d at depth %d but the top checkpoint belongs to frame %d", f.id, f.depth, top.Owner),
	})
}

func (b *Block[T]) mustBeUnused(op string) {
	if !b.used {
		return
	}
	b.rt.fatal(&EngineError{
		Code:    ErrCodeBlockReused,
		Message: fmt.Sprintf("%s called on a block that already ran (%s)", op, b.loc),
	})
}

// Scope is the handle a block's body and handlers use to talk to their
// controller.
type Scope[T any] struct {
	rt *Runtime
	f  *frame[T]
}

// Return requests a deferred return of v. It never returns: the enclosing
// cleanup runs first, then Run yields (v, true). v is evaluated at the call
// site, so later mutation cannot change it.
func (s *Scope[T]) Return(v T) {
	switch s.f.phase {
	case PhaseFinally:
		s.rt.fatal(&EngineError{
			Code:    ErrCodeReturnInFinally,
			Message: fmt.Sprintf("Return called from cleanup of frame at depth %d", s.f.depth),
		})
	case PhaseUnwind, PhaseDone:
		s.rt.fatal(&EngineError{
			Code:    ErrCodeBlockReused,
			Message: fmt.Sprintf("Return called on scope of completed frame at depth %d", s.f.depth),
		})
	}
	panic(&returnSignal{rt: s.rt, owner: s.f.id, value: v})
}

// Rethrow re-raises the exception bound to the running handler. The frame's
// cleanup runs, its checkpoint is popped, and the exception continues to the
// next enclosing block. The handler is not re-entered. Blocks the handler
// itself opened are left like any other exit: their cleanups run but their
// handlers do not see the rethrown exception.
func (s *Scope[T]) Rethrow() {
	s.rethrow(callerLocation(2))
}

// RethrowAt is Rethrow with an explicit source location.
func (s *Scope[T]) RethrowAt(loc Location) {
	s.rethrow(loc)
}

func (s *Scope[T]) rethrow(loc Location) {
	if !s.f.inHandler || s.f.pending == nil {
		s.rt.fatal(&EngineError{
			Code:    ErrCodeRethrowOutsideHandler,
			Message: fmt.Sprintf("Rethrow called outside a handler (frame depth %d, phase %s)", s.f.depth, s.f.phase),
		})
	}
	exc := *s.f.pending
	s.rt.register.Record(exc)
	s.rt.emit(Event{
		Type:     EventRethrow,
		Depth:    s.f.depth,
		Kind:     exc.Kind,
		Message:  exc.Message,
		Location: loc,
	})
	panic(&thrown{rt: s.rt, exc: exc, rethrownBy: s.f.id})
}

// Throw raises a new exception from inside the block.
func (s *Scope[T]) Throw(kind Kind, message string) {
	s.rt.throw(kind, message, callerLocation(2))
}

// Exception returns a copy of the exception this activation is handling.
func (s *Scope[T]) Exception() (Exception, bool) {
	if s.f.pending == nil {
		return Exception{}, false
	}
	return *s.f.pending, true
}

// Depth returns the depth of this activation's checkpoint.
func (s *Scope[T]) Depth() int {
	return s.f.depth
}

// Phase returns the activation's current phase.
func (s *Scope[T]) Phase() Phase {
	return s.f.phase
}

// Runtime returns the runtime the block runs on.
func (s *Scope[T]) Runtime() *Runtime {
	return s.rt
}
