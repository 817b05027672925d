package store

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/tryblock/internal/engine"
	"github.com/roach88/tryblock/internal/harness"
	"github.com/roach88/tryblock/internal/ir"
)

// RunRecord is one stored harness run.
type RunRecord struct {
	ID       string `json:"id"`
	Suite    string `json:"suite"`
	MaxDepth int    `json:"runtime_max_depth"`
	Total    int    `json:"total"`
	Passed   int    `json:"passed"`
	Failed   int    `json:"failed"`
	Skipped  int    `json:"skipped"`
	ExitCode int    `json:"exit_code"`

	// TraceHash is the digest of the run's canonical form.
	TraceHash     string `json:"trace_hash"`
	EngineVersion string `json:"engine_version"`

	// Seq orders runs. WriteRun assigns it when zero.
	Seq int64 `json:"seq"`

	Results []ResultRecord `json:"results,omitempty"`
	Events  []EventRecord  `json:"-"`
}

// ResultRecord is one test result of a run.
type ResultRecord struct {
	Position    int      `json:"position"`
	Name        string   `json:"name"`
	Expected    int      `json:"expected_kind"`
	Observed    int      `json:"observed_kind"`
	Outcome     string   `json:"outcome"`
	Message     string   `json:"message,omitempty"`
	LeakedDepth int      `json:"leaked_depth,omitempty"`
	Logs        []string `json:"logs,omitempty"`
}

// EventRecord is one engine event of a run, attributed to the test that
// produced it.
type EventRecord struct {
	TestName string `json:"test_name"`
	Seq      int64  `json:"seq"`
	Type     string `json:"type"`
	Depth    int    `json:"depth"`
	Kind     int    `json:"kind,omitempty"`
	Message  string `json:"message,omitempty"`
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
	Handler  int    `json:"handler,omitempty"`
}

// NewRunID returns a time-ordered UUIDv7 run ID.
func NewRunID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate run id: %w", err)
	}
	return id.String(), nil
}

// NewRunRecord converts a harness report into a record and computes its
// trace hash. maxDepth is the checkpoint limit the run used.
func NewRunRecord(id string, report *harness.Report, maxDepth int) (RunRecord, error) {
	rec := RunRecord{
		ID:            id,
		Suite:         report.Suite,
		MaxDepth:      maxDepth,
		Total:         report.Total(),
		Passed:        report.Passed,
		Failed:        report.Failed,
		Skipped:       report.Skipped,
		ExitCode:      report.ExitCode(),
		EngineVersion: ir.EngineVersion,
	}
	for i, res := range report.Results {
		rec.Results = append(rec.Results, ResultRecord{
			Position:    i,
			Name:        res.Name,
			Expected:    int(res.Expected),
			Observed:    int(res.Observed),
			Outcome:     string(res.Outcome),
			Message:     res.Message,
			LeakedDepth: res.LeakedDepth,
			Logs:        res.Logs,
		})
		for _, ev := range res.Events {
			rec.Events = append(rec.Events, newEventRecord(res.Name, ev))
		}
	}

	hash, err := rec.Digest()
	if err != nil {
		return RunRecord{}, err
	}
	rec.TraceHash = hash
	return rec, nil
}

func newEventRecord(test string, ev engine.Event) EventRecord {
	return EventRecord{
		TestName: test,
		Seq:      ev.Seq,
		Type:     string(ev.Type),
		Depth:    ev.Depth,
		Kind:     int(ev.Kind),
		Message:  ev.Message,
		File:     ev.Location.File,
		Line:     ev.Location.Line,
		Handler:  ev.Handler,
	}
}

// Canonical implements ir.Canonicalizer. It covers the suite, results and
// events; the ID, sequence and hash are identity, not content.
func (r RunRecord) Canonical() any {
	results := make([]any, len(r.Results))
	for i, res := range r.Results {
		logs := res.Logs
		if logs == nil {
			logs = []string{}
		}
		results[i] = map[string]any{
			"position":      res.Position,
			"name":          res.Name,
			"expected_kind": res.Expected,
			"observed_kind": res.Observed,
			"outcome":       res.Outcome,
			"message":       res.Message,
			"leaked_depth":  res.LeakedDepth,
			"logs":          logs,
		}
	}
	events := make([]any, len(r.Events))
	for i, ev := range r.Events {
		events[i] = map[string]any{
			"test_name": ev.TestName,
			"seq":       ev.Seq,
			"type":      ev.Type,
			"depth":     ev.Depth,
			"kind":      ev.Kind,
			"message":   ev.Message,
			"file":      ev.File,
			"line":      ev.Line,
			"handler":   ev.Handler,
		}
	}
	return map[string]any{
		"suite":             r.Suite,
		"runtime_max_depth": r.MaxDepth,
		"engine_version":    r.EngineVersion,
		"results":           results,
		"events":            events,
	}
}

// Digest returns the run digest of the record's canonical form.
func (r RunRecord) Digest() (string, error) {
	hash, err := ir.RunDigest(r)
	if err != nil {
		return "", fmt.Errorf("digest run %s: %w", r.ID, err)
	}
	return hash, nil
}
