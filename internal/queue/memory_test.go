package queue

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestMemoryStore_MatchesFileContract(t *testing.T) {
	ctx := context.Background()

	if _, err := NewMissingMemoryStore().LoadPending(ctx); !errors.Is(err, ErrQueueMissing) {
		t.Errorf("missing store: expected ErrQueueMissing, got %v", err)
	}
	if _, err := NewMemoryStore(nil).LoadPending(ctx); !errors.Is(err, ErrQueueEmpty) {
		t.Errorf("empty store: expected ErrQueueEmpty, got %v", err)
	}
	if _, err := NewMemoryStore([]Entry{"", "  "}).LoadPending(ctx); !errors.Is(err, ErrQueueEmpty) {
		t.Errorf("blank store: expected ErrQueueEmpty, got %v", err)
	}

	store := NewMemoryStore([]Entry{"A", "", "B", "C"})
	got, err := store.LoadPending(ctx)
	if err != nil {
		t.Fatalf("LoadPending failed: %v", err)
	}
	if !reflect.DeepEqual(got, []Entry{"A", "B", "C"}) {
		t.Errorf("LoadPending = %v", got)
	}

	if err := store.AppendCompleted(ctx, "A"); err != nil {
		t.Fatalf("AppendCompleted failed: %v", err)
	}
	if err := store.RewritePending(ctx, []Entry{"B", "C"}); err != nil {
		t.Fatalf("RewritePending failed: %v", err)
	}

	if !reflect.DeepEqual(store.Pending(), []Entry{"B", "C"}) {
		t.Errorf("Pending = %v", store.Pending())
	}
	if !reflect.DeepEqual(store.Completed(), []Entry{"A"}) {
		t.Errorf("Completed = %v", store.Completed())
	}
	if store.Rewrites() != 1 {
		t.Errorf("Rewrites = %d, want 1", store.Rewrites())
	}
}

func TestMemoryStore_FailureHooks(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("disk full")

	store := NewMemoryStore([]Entry{"A"})
	store.AppendErr = boom

	err := store.AppendCompleted(ctx, "A")
	var perr *PersistenceError
	if !errors.As(err, &perr) || !errors.Is(err, boom) {
		t.Fatalf("expected PersistenceError wrapping %v, got %v", boom, err)
	}
	if len(store.Completed()) != 0 {
		t.Errorf("failed append must not record entry")
	}

	store.AppendErr = nil
	store.RewriteErr = boom
	if err := store.RewritePending(ctx, nil); !errors.Is(err, boom) {
		t.Fatalf("expected rewrite failure, got %v", err)
	}
	if !reflect.DeepEqual(store.Pending(), []Entry{"A"}) {
		t.Errorf("failed rewrite must not change pending, got %v", store.Pending())
	}
}

func TestFormatEntries(t *testing.T) {
	if got := FormatEntries(nil); got != "" {
		t.Errorf("FormatEntries(nil) = %q", got)
	}
	if got := FormatEntries([]Entry{"A", "B"}); got != "A\nB\n" {
		t.Errorf("FormatEntries = %q", got)
	}
}
