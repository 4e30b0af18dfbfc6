package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// StartRun inserts a new run in state "running".
func (s *SQLiteStore) StartRun(ctx context.Context, runID, pendingFile string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, pending_file, state, started_at)
		VALUES (?, ?, 'running', ?)
	`, runID, pendingFile, time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to start run %q: %w", runID, err)
	}
	return nil
}

// RecordAttempt appends one attempt row. Attempts are append-only.
func (s *SQLiteStore) RecordAttempt(ctx context.Context, a Attempt) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	startedAt := a.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO attempts (run_id, entry, resource, outcome, exit_code, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, a.RunID, a.Entry, a.Resource, string(a.Outcome), a.ExitCode, startedAt.UnixNano(), a.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("failed to record attempt for %q: %w", a.Entry, err)
	}
	return nil
}

// FinishRun marks a run as drained or halted.
func (s *SQLiteStore) FinishRun(ctx context.Context, runID, state string, runErr error) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	errorStr := ""
	if runErr != nil {
		errorStr = runErr.Error()
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET state = ?, error = ?, finished_at = ?
		WHERE id = ?
	`, state, errorStr, time.Now().UnixNano(), runID)
	if err != nil {
		return fmt.Errorf("failed to finish run %q: %w", runID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("run %q not found", runID)
	}
	return nil
}

// ListAttempts returns the most recent attempts, newest first.
// Returns an empty slice (not nil) when there are none.
func (s *SQLiteStore) ListAttempts(ctx context.Context, limit int) ([]Attempt, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, entry, resource, outcome, exit_code, started_at, duration_ms
		FROM attempts
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts: %w", err)
	}
	defer rows.Close()

	attempts := []Attempt{}
	for rows.Next() {
		var (
			a          Attempt
			outcome    string
			startedAt  int64
			durationMs int64
		)
		if err := rows.Scan(&a.RunID, &a.Entry, &a.Resource, &outcome, &a.ExitCode, &startedAt, &durationMs); err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		a.Outcome = AttemptOutcome(outcome)
		a.StartedAt = time.Unix(0, startedAt)
		a.Duration = time.Duration(durationMs) * time.Millisecond
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attempts: %w", err)
	}

	return attempts, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if limit <= 0 {
		limit = -1
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pending_file, state, COALESCE(error, ''), started_at, finished_at
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var (
			r          Run
			startedAt  int64
			finishedAt sql.NullInt64
		)
		if err := rows.Scan(&r.ID, &r.PendingFile, &r.State, &r.Error, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		r.StartedAt = time.Unix(0, startedAt)
		if finishedAt.Valid {
			t := time.Unix(0, finishedAt.Int64)
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}
