package queue

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileStore backs the queue with two plain text files.
type FileStore struct {
	pendingPath   string
	completedPath string
}

// NewFileStore creates a FileStore. Neither file needs to exist yet.
func NewFileStore(pendingPath, completedPath string) *FileStore {
	return &FileStore{
		pendingPath:   pendingPath,
		completedPath: completedPath,
	}
}

// PendingPath returns the path of the pending file.
func (s *FileStore) PendingPath() string { return s.pendingPath }

// CompletedPath returns the path of the completed log.
func (s *FileStore) CompletedPath() string { return s.completedPath }

// LoadPending reads the pending file.
func (s *FileStore) LoadPending(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.pendingPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrQueueMissing, s.pendingPath)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.pendingPath, err)
	}

	entries := ParseEntries(string(data))
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrQueueEmpty, s.pendingPath)
	}
	return entries, nil
}

// RewritePending replaces the pending file via temp file + rename so a crash
// never leaves a half-written list behind.
func (s *FileStore) RewritePending(ctx context.Context, remaining []Entry) error {
	if err := writeFileAtomic(s.pendingPath, []byte(FormatEntries(remaining))); err != nil {
		return &PersistenceError{Op: "rewrite", Path: s.pendingPath, Err: err}
	}
	return nil
}

// AppendCompleted appends entry to the completed log, creating it (and its
// parent directories) on first use. The write is fsynced before returning.
func (s *FileStore) AppendCompleted(ctx context.Context, entry Entry) error {
	if err := appendLine(s.completedPath, string(entry)); err != nil {
		return &PersistenceError{Op: "append", Path: s.completedPath, Err: err}
	}
	return nil
}

// ReadCompleted returns the completed log. A missing log is an empty log.
// The sequencer never calls this; it exists for status reporting.
func (s *FileStore) ReadCompleted() ([]Entry, error) {
	data, err := os.ReadFile(s.completedPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.completedPath, err)
	}
	return ParseEntries(string(data)), nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)

	mode := fs.FileMode(0644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	// Remove the temp file on any failure before the rename
	renamed := false
	defer func() {
		if !renamed {
			os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return fmt.Errorf("setting mode on temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	renamed = true

	// Persist the rename itself; not every filesystem allows syncing a directory.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		d.Close()
	}
	return nil
}

func appendLine(path, line string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening: %w", err)
	}

	if _, err := f.WriteString(line + "\n"); err != nil {
		f.Close()
		return fmt.Errorf("writing: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("syncing: %w", err)
	}
	return f.Close()
}
