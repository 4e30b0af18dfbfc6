package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// AttemptOutcome is what happened to one queue entry during a run.
type AttemptOutcome string

const (
	OutcomeCompleted   AttemptOutcome = "completed"
	OutcomeFailed      AttemptOutcome = "failed"
	OutcomeSkipped     AttemptOutcome = "skipped"
	OutcomeLaunchError AttemptOutcome = "launch_error"
)

// Attempt is one row of the run ledger.
type Attempt struct {
	RunID     string
	Entry     string
	Resource  string
	Outcome   AttemptOutcome
	ExitCode  int
	StartedAt time.Time
	Duration  time.Duration
}

// Run summarizes one sequencer invocation.
type Run struct {
	ID          string
	PendingFile string
	StartedAt   time.Time
	FinishedAt  *time.Time
	State       string // "running", "drained", "halted"
	Error       string
}

// Ledger is an audit trail of runs and job attempts. It is never consulted
// to decide what to run; the pending file alone drives the queue.
type Ledger interface {
	StartRun(ctx context.Context, runID, pendingFile string) error
	RecordAttempt(ctx context.Context, a Attempt) error
	FinishRun(ctx context.Context, runID, state string, runErr error) error
	ListAttempts(ctx context.Context, limit int) ([]Attempt, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	Close() error
}

// SQLiteStore implements Ledger using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the ledger at dbPath.
// Creates parent directories if needed. Enables WAL mode and busy timeout.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create parent directories: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", dbPath)
	return openStore(ctx, connStr)
}

// NewMemoryStore creates an in-memory ledger for testing.
func NewMemoryStore(ctx context.Context) (*SQLiteStore, error) {
	// A private in-memory database per store; one connection keeps it alive
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open memory database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func openStore(ctx context.Context, connStr string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.init(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) init(ctx context.Context) error {
	// modernc.org/sqlite needs foreign keys enabled via PRAGMA
	if _, err := s.db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if err := s.initSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
