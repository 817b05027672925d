// Package engine implements structured exception handling: protected blocks
// with selective handlers, catch-all handlers, cleanup blocks, rethrow and
// deferred return.
//
// ARCHITECTURE:
//
// Runtime:
// Each logical task owns one Runtime holding a bounded checkpoint stack and a
// current-exception register. Runtimes are never shared between goroutines.
//
// Protected-Block Protocol:
// A Block runs as a forward-only state machine:
//  1. Enter: push a checkpoint owned by this activation
//  2. Body: run the body once; Throw leaves it non-locally (panic)
//  3. Dispatch: if an exception landed, try handlers in declaration order
//  4. Finally: run cleanup exactly once, whatever happened before
//  5. Unwind: pop the checkpoint, then propagate an unhandled exception to
//     the next enclosing block or complete a deferred return
//
// Throwing:
// Throw records the exception in the register and panics with an engine
// signal. Go unwinding delivers it to the innermost running Block, which
// always owns the top checkpoint. A throw with an empty stack is fatal.
//
// CRITICAL PATTERNS:
//
// Strict LIFO:
// A checkpoint is popped only by the activation that pushed it and only while
// it is on top. Violations are fatal EngineErrors, never user exceptions.
//
// Match Then Claim:
// Handler matching is a pure predicate. Only the winning handler marks the
// exception handled.
//
// Cleanup On Every Path:
// Normal completion, handled and unhandled exceptions, rethrow, deferred
// return and foreign panics all run the cleanup block before leaving.
//
// Depth Returns To Baseline:
// After any Block finishes, normally or not, Runtime.Depth equals its value
// before the Block was entered.
package engine
