package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/tryblock/internal/engine"
)

// AssertionError is returned when an assertion fails.
// It includes the full trace to help debug the failure.
type AssertionError struct {
	Type     string
	Expected string
	Actual   string
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)
	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		buf.WriteString(FormatTrace(e.Trace))
	}
	return buf.String()
}

// FormatTrace renders a trace one event per line.
func FormatTrace(trace []TraceEvent) string {
	var buf strings.Builder
	for _, ev := range trace {
		fmt.Fprintf(&buf, "  [%d] %-8s depth=%d", ev.Seq, ev.Type, ev.Depth)
		if ev.Kind != 0 {
			fmt.Fprintf(&buf, " kind=%d", ev.Kind)
		}
		if ev.Type == string(engine.EventCatch) {
			fmt.Fprintf(&buf, " handler=%d", ev.Handler)
		}
		if ev.Location != "" {
			fmt.Fprintf(&buf, " at %s", ev.Location)
		}
		if ev.Message != "" {
			fmt.Fprintf(&buf, " %q", ev.Message)
		}
		buf.WriteByte('\n')
	}
	return buf.String()
}

// eventMatches applies the optional kind and depth filters of an assertion.
func eventMatches(ev TraceEvent, a Assertion) bool {
	if ev.Type != a.Event {
		return false
	}
	if a.Kind != 0 && ev.Kind != a.Kind {
		return false
	}
	if a.Depth != nil && ev.Depth != *a.Depth {
		return false
	}
	return true
}

func describeFilter(a Assertion) string {
	desc := a.Event
	if a.Kind != 0 {
		desc += fmt.Sprintf(" kind=%d", a.Kind)
	}
	if a.Depth != nil {
		desc += fmt.Sprintf(" depth=%d", *a.Depth)
	}
	return desc
}

func assertTraceContains(trace []TraceEvent, a Assertion) error {
	for _, ev := range trace {
		if eventMatches(ev, a) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("event %s", describeFilter(a)),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if eventMatches(ev, a) {
			count++
		}
	}
	if count == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceCount,
		Expected: fmt.Sprintf("%d x %s", a.Count, describeFilter(a)),
		Actual:   fmt.Sprintf("%d occurrences", count),
		Trace:    trace,
	}
}

// assertTraceOrder checks that the event types occur as a subsequence.
// Intervening events are allowed.
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, ev := range trace {
		if next < len(a.Events) && ev.Type == a.Events[next] {
			next++
		}
	}
	if next == len(a.Events) {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceOrder,
		Expected: fmt.Sprintf("events in order: %v", a.Events),
		Actual:   fmt.Sprintf("matched %v, then no %s", a.Events[:next], a.Events[next]),
		Trace:    trace,
	}
}

func assertMaxDepth(result *Result, a Assertion) error {
	want := 0
	if a.Depth != nil {
		want = *a.Depth
	}
	if result.MaxDepth == want {
		return nil
	}
	return &AssertionError{
		Type:     AssertMaxDepth,
		Expected: fmt.Sprintf("maximum checkpoint depth %d", want),
		Actual:   fmt.Sprintf("maximum checkpoint depth %d", result.MaxDepth),
	}
}

// EvaluateAssertions evaluates all trace assertions against the result.
// Returns one message per failed assertion.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertMaxDepth:
			err = assertMaxDepth(result, a)
		default:
			err = fmt.Errorf("unknown assertion type: %s", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

// EvaluateExpectations compares how the program ended and its final
// variables with the scenario's expectations.
func EvaluateExpectations(sc *Scenario, result *Result) []string {
	var errs []string

	switch {
	case sc.ExpectException != nil:
		want := sc.ExpectException
		switch {
		case result.Exception == nil:
			errs = append(errs, fmt.Sprintf("expected exception kind %d to escape, program %s", want.Kind, endedAs(result)))
		case int(result.Exception.Kind) != want.Kind:
			errs = append(errs, fmt.Sprintf("expected exception kind %d to escape, got kind %d", want.Kind, result.Exception.Kind))
		case want.Message != "" && result.Exception.Message != want.Message:
			errs = append(errs, fmt.Sprintf("expected exception message %q, got %q", want.Message, result.Exception.Message))
		}
	case sc.ExpectFatal != "":
		if string(result.Fatal) != sc.ExpectFatal {
			errs = append(errs, fmt.Sprintf("expected fatal %s, program %s", sc.ExpectFatal, endedAs(result)))
		}
	default:
		if result.Fatal != "" {
			errs = append(errs, fmt.Sprintf("expected normal completion, program %s", endedAs(result)))
		}
	}

	for _, name := range sortedKeys(sc.Flags) {
		if got := result.Flags[name]; got != sc.Flags[name] {
			errs = append(errs, fmt.Sprintf("flag %s: expected %t, got %t", name, sc.Flags[name], got))
		}
	}
	for _, name := range sortedKeys(sc.Values) {
		got, ok := result.Values[name]
		switch {
		case !ok:
			errs = append(errs, fmt.Sprintf("value %s: expected %d, never assigned", name, sc.Values[name]))
		case got != sc.Values[name]:
			errs = append(errs, fmt.Sprintf("value %s: expected %d, got %d", name, sc.Values[name], got))
		}
	}
	return errs
}

func endedAs(result *Result) string {
	switch {
	case result.Exception != nil:
		return fmt.Sprintf("ended with unhandled exception kind %d (%s)", result.Exception.Kind, result.Exception.Message)
	case result.Fatal != "":
		return fmt.Sprintf("ended with fatal %s", result.Fatal)
	default:
		return "completed normally"
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
