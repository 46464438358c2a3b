package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// FileLedger persists the processed-hash set as a small JSON file. It is the
// default backend for single-node deployments.
type FileLedger struct {
	path string

	mu  sync.Mutex
	set map[string]struct{}
}

type fileState struct {
	Processed []string `json:"processed"`
}

// NewFileLedger loads (or initializes) the ledger at path. The parent
// directory is created if missing.
func NewFileLedger(path string) (*FileLedger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ledger: create dir: %w", err)
	}

	l := &FileLedger{path: path, set: make(map[string]struct{})}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return l, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: read %s: %w", path, err)
	}

	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("ledger: parse %s: %w", path, err)
	}
	for _, h := range state.Processed {
		l.set[h] = struct{}{}
	}
	return l, nil
}

// IsNew reports whether the hash has not been processed yet.
func (l *FileLedger) IsNew(ctx context.Context, hash string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.set[hash]
	return !ok, nil
}

// MarkProcessed records hashes and rewrites the file atomically.
func (l *FileLedger) MarkProcessed(ctx context.Context, hashes ...string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	changed := false
	for _, h := range hashes {
		if h == "" {
			continue
		}
		if _, ok := l.set[h]; !ok {
			l.set[h] = struct{}{}
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return l.persistLocked()
}

// Hashes returns all processed hashes, sorted.
func (l *FileLedger) Hashes(ctx context.Context) ([]string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.set))
	for h := range l.set {
		out = append(out, h)
	}
	sort.Strings(out)
	return out, nil
}

// Clear empties the set and persists the empty state.
func (l *FileLedger) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.set = make(map[string]struct{})
	return l.persistLocked()
}

func (l *FileLedger) persistLocked() error {
	hashes := make([]string, 0, len(l.set))
	for h := range l.set {
		hashes = append(hashes, h)
	}
	sort.Strings(hashes)

	data, err := json.MarshalIndent(fileState{Processed: hashes}, "", "  ")
	if err != nil {
		return fmt.Errorf("ledger: marshal: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(l.path), ".ledger-*")
	if err != nil {
		return fmt.Errorf("ledger: create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("ledger: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("ledger: close temp: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("ledger: replace %s: %w", l.path, err)
	}
	return nil
}
