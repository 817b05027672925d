package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// ReadRun returns a run with its results and events.
// Returns ErrRunNotFound if the ID is unknown.
func (s *Store) ReadRun(ctx context.Context, id string) (RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, suite, runtime_max_depth, total, passed, failed, skipped, exit_code, trace_hash, engine_version, seq
		FROM runs
		WHERE id = ?
	`, id)
	rec, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return RunRecord{}, fmt.Errorf("read run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return RunRecord{}, fmt.Errorf("read run %s: %w", id, err)
	}

	if rec.Results, err = s.readResults(ctx, id); err != nil {
		return RunRecord{}, err
	}
	if rec.Events, err = s.ReadEvents(ctx, id, ""); err != nil {
		return RunRecord{}, err
	}
	return rec, nil
}

// ListRuns returns every run summary in write order. Results and events are
// not loaded.
func (s *Store) ListRuns(ctx context.Context) ([]RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, suite, runtime_max_depth, total, passed, failed, skipped, exit_code, trace_hash, engine_version, seq
		FROM runs
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		rec, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadEvents returns the events of a run in sequence order. A non-empty
// testName restricts them to one test.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ReadEvents(ctx context.Context, runID, testName string) ([]EventRecord, error) {
	query := `
		SELECT test_name, seq, type, depth, kind, message, file, line, handler
		FROM events
		WHERE run_id = ?`
	args := []any{runID}
	if testName != "" {
		query += ` AND test_name = ?`
		args = append(args, testName)
	}
	query += ` ORDER BY seq ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []EventRecord{}
	for rows.Next() {
		var ev EventRecord
		if err := rows.Scan(
			&ev.TestName, &ev.Seq, &ev.Type, &ev.Depth, &ev.Kind,
			&ev.Message, &ev.File, &ev.Line, &ev.Handler,
		); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}

func (s *Store) readResults(ctx context.Context, runID string) ([]ResultRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT position, name, expected_kind, observed_kind, outcome, message, leaked_depth, logs
		FROM results
		WHERE run_id = ?
		ORDER BY position ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	results := []ResultRecord{}
	for rows.Next() {
		var res ResultRecord
		var logs string
		if err := rows.Scan(
			&res.Position, &res.Name, &res.Expected, &res.Observed,
			&res.Outcome, &res.Message, &res.LeakedDepth, &logs,
		); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if res.Logs, err = unmarshalLogs(logs); err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return results, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunRecord, error) {
	var rec RunRecord
	err := row.Scan(
		&rec.ID, &rec.Suite, &rec.MaxDepth, &rec.Total, &rec.Passed, &rec.Failed,
		&rec.Skipped, &rec.ExitCode, &rec.TraceHash, &rec.EngineVersion, &rec.Seq,
	)
	return rec, err
}
