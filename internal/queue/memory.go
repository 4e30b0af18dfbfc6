package queue

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store with the same contract as FileStore.
// Used by tests and by dry runs so nothing on disk changes.
type MemoryStore struct {
	mu        sync.Mutex
	exists    bool
	pending   []Entry
	completed []Entry
	rewrites  int

	// Fail hooks let tests simulate persistence failures.
	RewriteErr error
	AppendErr  error
}

// NewMemoryStore creates a MemoryStore whose pending list holds entries.
// A nil slice still counts as an existing (empty) pending file.
func NewMemoryStore(entries []Entry) *MemoryStore {
	return &MemoryStore{
		exists:  true,
		pending: append([]Entry(nil), entries...),
	}
}

// NewMissingMemoryStore creates a MemoryStore with no pending file at all.
func NewMissingMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// LoadPending returns a copy of the pending list.
func (m *MemoryStore) LoadPending(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.exists {
		return nil, ErrQueueMissing
	}
	// Round-trip through the text form so blank/whitespace entries behave like the file
	entries := ParseEntries(FormatEntries(m.pending))
	if len(entries) == 0 {
		return nil, ErrQueueEmpty
	}
	return entries, nil
}

// RewritePending replaces the pending list.
func (m *MemoryStore) RewritePending(ctx context.Context, remaining []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.RewriteErr != nil {
		return &PersistenceError{Op: "rewrite", Path: "memory:pending", Err: m.RewriteErr}
	}
	m.exists = true
	m.pending = append([]Entry(nil), remaining...)
	m.rewrites++
	return nil
}

// AppendCompleted appends to the completed log.
func (m *MemoryStore) AppendCompleted(ctx context.Context, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.AppendErr != nil {
		return &PersistenceError{Op: "append", Path: "memory:completed", Err: m.AppendErr}
	}
	m.completed = append(m.completed, entry)
	return nil
}

// Pending returns a snapshot of the pending list.
func (m *MemoryStore) Pending() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.pending...)
}

// Completed returns a snapshot of the completed log.
func (m *MemoryStore) Completed() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.completed...)
}

// Rewrites returns how many times RewritePending succeeded.
func (m *MemoryStore) Rewrites() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rewrites
}
