package engine

import "fmt"

// Location is a source position captured for diagnostics.
type Location struct {
	File string `json:"file"`
	Line int    `json:"line"`
}

// String renders the location as file:line.
func (l Location) String() string {
	if l.File == "" {
		return "unknown"
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// IsZero reports whether the location was never captured.
func (l Location) IsZero() bool {
	return l.File == "" && l.Line == 0
}

// Exception is one thrown exception: a flat kind plus a message.
//
// Exceptions are values. Handlers receive copies, so a later throw can never
// rewrite the exception a handler is looking at.
type Exception struct {
	Kind     Kind     `json:"kind"`
	Message  string   `json:"message"`
	Location Location `json:"location"`
}

// Error implements the error interface.
func (e Exception) Error() string {
	return fmt.Sprintf("exception %s: %s", e.Kind, e.Message)
}

// Register holds the most recently thrown exception for one Runtime.
//
// It is written only by the engine. Handled starts out true: with nothing
// thrown there is nothing left to claim.
type Register struct {
	exc     Exception
	set     bool
	handled bool
}

// NewRegister creates an empty register.
func NewRegister() *Register {
	return &Register{handled: true}
}

// Record stores exc as the current exception and clears the handled flag.
func (r *Register) Record(exc Exception) {
	r.exc = exc
	r.set = true
	r.handled = false
}

// MarkHandled sets the handled flag and returns its previous value.
// Calling it repeatedly is harmless.
func (r *Register) MarkHandled() bool {
	prev := r.handled
	r.handled = true
	return prev
}

// Handled reports whether some handler has claimed the current exception.
func (r *Register) Handled() bool {
	return r.handled
}

// Current returns a copy of the current exception and whether one was ever recorded.
func (r *Register) Current() (Exception, bool) {
	return r.exc, r.set
}

// Reset returns the register to its initial, empty state.
func (r *Register) Reset() {
	r.exc = Exception{}
	r.set = false
	r.handled = true
}
