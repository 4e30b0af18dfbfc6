package persistence

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

// testStore creates an in-memory store for testing and registers cleanup.
func testStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewMemoryStore(context.Background())
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func TestRunLifecycle(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	runID := uuid.NewString()

	if err := store.StartRun(ctx, runID, "train/wait_experiments.txt"); err != nil {
		t.Fatalf("failed to start run: %v", err)
	}

	runs, err := store.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	if runs[0].State != "running" || runs[0].FinishedAt != nil {
		t.Errorf("new run = %+v, want running and unfinished", runs[0])
	}

	if err := store.FinishRun(ctx, runID, "halted", errors.New("job exp-2 failed")); err != nil {
		t.Fatalf("failed to finish run: %v", err)
	}

	runs, err = store.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("failed to list runs: %v", err)
	}
	if runs[0].State != "halted" {
		t.Errorf("State = %q, want halted", runs[0].State)
	}
	if runs[0].Error != "job exp-2 failed" {
		t.Errorf("Error = %q", runs[0].Error)
	}
	if runs[0].FinishedAt == nil {
		t.Error("FinishedAt should be set")
	}
}

func TestFinishRunNotFound(t *testing.T) {
	store := testStore(t)

	err := store.FinishRun(context.Background(), "nonexistent", "drained", nil)
	if err == nil {
		t.Fatal("expected error when finishing non-existent run, got nil")
	}
	if !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected 'not found' error, got: %v", err)
	}
}

func TestRecordAndListAttempts(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	runID := uuid.NewString()

	if err := store.StartRun(ctx, runID, "pending.txt"); err != nil {
		t.Fatalf("failed to start run: %v", err)
	}

	attempts := []Attempt{
		{RunID: runID, Entry: "A", Resource: "train/A.yaml", Outcome: OutcomeCompleted, Duration: 1500 * time.Millisecond},
		{RunID: runID, Entry: "B", Resource: "train/B.yaml", Outcome: OutcomeSkipped, ExitCode: 0},
		{RunID: runID, Entry: "C", Resource: "train/C.yaml", Outcome: OutcomeFailed, ExitCode: 137},
	}
	for _, a := range attempts {
		if err := store.RecordAttempt(ctx, a); err != nil {
			t.Fatalf("failed to record attempt %s: %v", a.Entry, err)
		}
	}

	got, err := store.ListAttempts(ctx, 0)
	if err != nil {
		t.Fatalf("failed to list attempts: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(got))
	}

	// Newest first
	if got[0].Entry != "C" || got[2].Entry != "A" {
		t.Errorf("order = %s,%s,%s; want C,B,A", got[0].Entry, got[1].Entry, got[2].Entry)
	}
	if got[0].Outcome != OutcomeFailed || got[0].ExitCode != 137 {
		t.Errorf("attempt C = %+v", got[0])
	}
	if got[2].Duration != 1500*time.Millisecond {
		t.Errorf("attempt A duration = %v", got[2].Duration)
	}
	if got[2].StartedAt.IsZero() {
		t.Error("StartedAt should default to now")
	}

	limited, err := store.ListAttempts(ctx, 1)
	if err != nil {
		t.Fatalf("failed to list attempts: %v", err)
	}
	if len(limited) != 1 || limited[0].Entry != "C" {
		t.Errorf("limited = %+v", limited)
	}
}

func TestListAttemptsEmpty(t *testing.T) {
	store := testStore(t)

	got, err := store.ListAttempts(context.Background(), 10)
	if err != nil {
		t.Fatalf("failed to list attempts: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Errorf("expected empty non-nil slice, got %#v", got)
	}
}

func TestForeignKeyEnforced(t *testing.T) {
	store := testStore(t)

	err := store.RecordAttempt(context.Background(), Attempt{
		RunID:   "no-such-run",
		Entry:   "A",
		Outcome: OutcomeCompleted,
	})
	if err == nil {
		t.Fatal("expected error when recording attempt for non-existent run, got nil")
	}
}

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "history.db")
	runID := uuid.NewString()

	store, err := NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	if err := store.StartRun(ctx, runID, "pending.txt"); err != nil {
		t.Fatalf("failed to start run: %v", err)
	}
	if err := store.RecordAttempt(ctx, Attempt{RunID: runID, Entry: "A", Resource: "A.yaml", Outcome: OutcomeCompleted}); err != nil {
		t.Fatalf("failed to record attempt: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}

	reopened, err := NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer reopened.Close()

	attempts, err := reopened.ListAttempts(ctx, 10)
	if err != nil {
		t.Fatalf("failed to list attempts: %v", err)
	}
	if len(attempts) != 1 || attempts[0].RunID != runID {
		t.Errorf("attempts after reopen = %+v", attempts)
	}
}
