package engine

import (
	"errors"
	"fmt"
)

// EngineError is a fatal condition detected by the engine.
//
// Engine errors are never delivered to user handlers. They include:
//   - Unhandled exception: a throw or propagation found no enclosing checkpoint
//   - Stack overflow: protected blocks nested deeper than the configured maximum
//   - Invariant violations: pop on empty, frame mismatch, misuse of Rethrow/Return
//
// Outside Runtime.Supervise an EngineError is raised with panic and terminates
// the process.
type EngineError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Exception is the exception that went unhandled (ErrCodeUnhandled only).
	Exception *Exception

	// Snapshot is the checkpoint stack at the time of the failure.
	Snapshot StackSnapshot
}

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodeUnhandled indicates an exception reached depth 0 with no handler.
	ErrCodeUnhandled ErrorCode = "UNHANDLED"

	// ErrCodeStackOverflow indicates the maximum nesting depth was exceeded.
	ErrCodeStackOverflow ErrorCode = "STACK_OVERFLOW"

	// ErrCodePopOnEmpty indicates a pop was attempted on an empty stack.
	ErrCodePopOnEmpty ErrorCode = "POP_ON_EMPTY"

	// ErrCodeFrameMismatch indicates a controller tried to pop a checkpoint it does not own.
	ErrCodeFrameMismatch ErrorCode = "FRAME_MISMATCH"

	// ErrCodeInvalidKind indicates KindNone was thrown.
	ErrCodeInvalidKind ErrorCode = "INVALID_KIND"

	// ErrCodeRethrowOutsideHandler indicates Rethrow was called while no handler was running.
	ErrCodeRethrowOutsideHandler ErrorCode = "RETHROW_OUTSIDE_HANDLER"

	// ErrCodeReturnInFinally indicates Return was called from a cleanup block.
	ErrCodeReturnInFinally ErrorCode = "RETURN_IN_FINALLY"

	// ErrCodeBlockReused indicates a Block was run twice or modified after running.
	ErrCodeBlockReused ErrorCode = "BLOCK_REUSED"
)

// Error implements the error interface.
func (e *EngineError) Error() string {
	if e.Exception != nil {
		return fmt.Sprintf("%s: %s (kind=%d, message=%q)", e.Code, e.Message, int(e.Exception.Kind), e.Exception.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsUnhandled returns true if err is an unhandled-exception engine error.
// Uses errors.As to handle wrapped errors.
func IsUnhandled(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeUnhandled
	}
	return false
}

// IsStackOverflow returns true if err reports exceeded nesting depth.
func IsStackOverflow(err error) bool {
	var ee *EngineError
	if errors.As(err, &ee) {
		return ee.Code == ErrCodeStackOverflow
	}
	return false
}

// IsInvariantViolation returns true if err reports misuse of the engine
// rather than an application exception or resource exhaustion.
func IsInvariantViolation(err error) bool {
	var ee *EngineError
	if !errors.As(err, &ee) {
		return false
	}
	switch ee.Code {
	case ErrCodeUnhandled, ErrCodeStackOverflow:
		return false
	default:
		return true
	}
}

// UnhandledException extracts the exception carried by an unhandled-exception error.
func UnhandledException(err error) (Exception, bool) {
	var ee *EngineError
	if errors.As(err, &ee) && ee.Code == ErrCodeUnhandled && ee.Exception != nil {
		return *ee.Exception, true
	}
	return Exception{}, false
}
