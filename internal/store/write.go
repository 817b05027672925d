package store

import (
	"context"
	"database/sql"
	"fmt"
)

// WriteRun stores a run with its results and events in one transaction.
//
// A run whose ID already exists is left untouched and WriteRun returns nil,
// so retrying a write is safe. When rec.Seq is zero the run is appended after
// every stored run.
func (s *Store) WriteRun(ctx context.Context, rec RunRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write run: begin: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, rec.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	if exists > 0 {
		return nil
	}

	if rec.Seq == 0 {
		if rec.Seq, err = nextRunSeq(ctx, tx); err != nil {
			return err
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, suite, runtime_max_depth, total, passed, failed, skipped, exit_code, trace_hash, engine_version, seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.ID,
		rec.Suite,
		rec.MaxDepth,
		rec.Total,
		rec.Passed,
		rec.Failed,
		rec.Skipped,
		rec.ExitCode,
		rec.TraceHash,
		rec.EngineVersion,
		rec.Seq,
	)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}

	for _, res := range rec.Results {
		if err := writeResult(ctx, tx, rec.ID, res); err != nil {
			return err
		}
	}
	for _, ev := range rec.Events {
		if err := writeEvent(ctx, tx, rec.ID, ev); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write run: commit: %w", err)
	}
	return nil
}

func nextRunSeq(ctx context.Context, tx *sql.Tx) (int64, error) {
	var last int64
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM runs`).Scan(&last); err != nil {
		return 0, fmt.Errorf("write run: next seq: %w", err)
	}
	return last + 1, nil
}

func writeResult(ctx context.Context, tx *sql.Tx, runID string, res ResultRecord) error {
	logs, err := marshalLogs(res.Logs)
	if err != nil {
		return fmt.Errorf("write result %q: %w", res.Name, err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO results
		(run_id, position, name, expected_kind, observed_kind, outcome, message, leaked_depth, logs)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		res.Position,
		res.Name,
		res.Expected,
		res.Observed,
		res.Outcome,
		res.Message,
		res.LeakedDepth,
		logs,
	)
	if err != nil {
		return fmt.Errorf("write result %q: %w", res.Name, err)
	}
	return nil
}

func writeEvent(ctx context.Context, tx *sql.Tx, runID string, ev EventRecord) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO events
		(run_id, test_name, seq, type, depth, kind, message, file, line, handler)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		runID,
		ev.TestName,
		ev.Seq,
		ev.Type,
		ev.Depth,
		ev.Kind,
		ev.Message,
		ev.File,
		ev.Line,
		ev.Handler,
	)
	if err != nil {
		return fmt.Errorf("write event %d: %w", ev.Seq, err)
	}
	return nil
}
