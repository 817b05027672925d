package harness

import (
	"github.com/roach88/tryblock/internal/engine"
)

// Outcome classifies one test run.
type Outcome string

const (
	OutcomePassed              Outcome = "passed"
	OutcomeAssertionFailed     Outcome = "assertion_failed"
	OutcomeUnexpectedException Outcome = "unexpected_exception"
	OutcomeLeak                Outcome = "leak"
	OutcomeError               Outcome = "error"
	OutcomeSkipped             Outcome = "skipped"
)

// Failed reports whether the outcome counts against the run.
func (o Outcome) Failed() bool {
	return o != OutcomePassed && o != OutcomeSkipped
}

// TestResult is the outcome of one registered test.
type TestResult struct {
	Name     string      `json:"name"`
	Expected engine.Kind `json:"expected_kind"`
	Observed engine.Kind `json:"observed_kind"`
	Outcome  Outcome     `json:"outcome"`
	Message  string      `json:"message,omitempty"`

	// LeakedDepth and Leaked describe checkpoints still live after teardown.
	LeakedDepth int                 `json:"leaked_depth,omitempty"`
	Leaked      []engine.Checkpoint `json:"leaked,omitempty"`

	Logs   []string       `json:"logs,omitempty"`
	Events []engine.Event `json:"-"`
}

// Report summarizes a suite run.
type Report struct {
	Suite   string       `json:"suite"`
	Results []TestResult `json:"results"`
	Passed  int          `json:"passed"`
	Failed  int          `json:"failed"`
	Skipped int          `json:"skipped"`

	// Stopped is set when FailFast ended the run before every test ran.
	Stopped bool `json:"stopped,omitempty"`
}

// OK reports whether no test failed.
func (r *Report) OK() bool {
	return r.Failed == 0
}

// ExitCode returns 0 when every test passed or was skipped and 1 otherwise.
func (r *Report) ExitCode() int {
	if r.OK() {
		return 0
	}
	return 1
}

// Total returns the number of tests that ran.
func (r *Report) Total() int {
	return len(r.Results)
}

func (r *Report) add(res TestResult) {
	r.Results = append(r.Results, res)
	switch {
	case res.Outcome == OutcomeSkipped:
		r.Skipped++
	case res.Outcome.Failed():
		r.Failed++
	default:
		r.Passed++
	}
}

// TraceEvent is the serialized form of one engine event in a scenario trace.
type TraceEvent struct {
	Seq      int64  `json:"seq"`
	Type     string `json:"type"`
	Depth    int    `json:"depth"`
	Kind     int    `json:"kind,omitempty"`
	Message  string `json:"message,omitempty"`
	Location string `json:"location,omitempty"`
	Handler  int    `json:"handler,omitempty"`
}

// NewTraceEvent converts an engine event.
func NewTraceEvent(ev engine.Event) TraceEvent {
	te := TraceEvent{
		Seq:     ev.Seq,
		Type:    string(ev.Type),
		Depth:   ev.Depth,
		Kind:    int(ev.Kind),
		Message: ev.Message,
		Handler: ev.Handler,
	}
	if !ev.Location.IsZero() {
		te.Location = ev.Location.String()
	}
	return te
}

// Canonical implements ir.Canonicalizer.
func (e TraceEvent) Canonical() any {
	m := map[string]any{
		"seq":   e.Seq,
		"type":  e.Type,
		"depth": e.Depth,
	}
	if e.Kind != 0 {
		m["kind"] = e.Kind
	}
	if e.Message != "" {
		m["message"] = e.Message
	}
	if e.Location != "" {
		m["location"] = e.Location
	}
	if e.Type == string(engine.EventCatch) {
		m["handler"] = e.Handler
	}
	return m
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every engine event in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains one message per failed expectation or assertion.
	Errors []string `json:"errors,omitempty"`

	// Exception is the exception that escaped the program, if any.
	Exception *engine.Exception `json:"exception,omitempty"`

	// Fatal is the engine error code that ended the program, if any.
	Fatal engine.ErrorCode `json:"fatal,omitempty"`

	// Flags and Values are the program's final variables.
	Flags  map[string]bool `json:"flags"`
	Values map[string]int  `json:"values"`

	// MaxDepth is the deepest checkpoint depth reached.
	MaxDepth int `json:"max_depth"`
}

// NewResult creates a passing result with empty state.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Flags:  make(map[string]bool),
		Values: make(map[string]int),
	}
}

// AddError records a failed check and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
