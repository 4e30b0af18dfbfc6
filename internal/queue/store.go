package queue

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Entry is one experiment identifier in the pending queue.
type Entry string

var (
	// ErrQueueMissing is returned by LoadPending when the pending file does not exist.
	ErrQueueMissing = errors.New("pending queue not found")

	// ErrQueueEmpty is returned by LoadPending when the pending file has no entries.
	ErrQueueEmpty = errors.New("pending queue is empty")
)

// PersistenceError reports a failed write to one of the queue files.
// The caller must not advance past the entry that triggered it.
type PersistenceError struct {
	Op   string // "rewrite" or "append"
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Store is the durable queue: an ordered pending list plus an append-only completed log.
type Store interface {
	// LoadPending returns the pending entries in file order.
	// Returns ErrQueueMissing or ErrQueueEmpty (wrapped) when there is nothing to do.
	LoadPending(ctx context.Context) ([]Entry, error)

	// RewritePending replaces the pending list with exactly remaining.
	RewritePending(ctx context.Context, remaining []Entry) error

	// AppendCompleted appends one entry to the completed log and flushes it.
	AppendCompleted(ctx context.Context, entry Entry) error
}

// ParseEntries splits newline-delimited text into entries.
// Surrounding whitespace is trimmed and blank lines are dropped.
func ParseEntries(data string) []Entry {
	var entries []Entry
	for _, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		entries = append(entries, Entry(line))
	}
	return entries
}

// FormatEntries renders entries one per line, with a trailing newline iff non-empty.
func FormatEntries(entries []Entry) string {
	if len(entries) == 0 {
		return ""
	}
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(string(e))
		b.WriteByte('\n')
	}
	return b.String()
}
