package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// ErrNotFound is returned when a named snapshot does not exist. Engines treat
// it as "no input yet" and produce empty outputs.
var ErrNotFound = errors.New("dataset: snapshot not found")

const fileExt = ".flx"

// Store persists named columnar snapshots. Each Save replaces the previous
// snapshot under that name in full; there is no partial update.
type Store interface {
	Load(ctx context.Context, name string) (*Table, error)
	Save(ctx context.Context, name string, t *Table) error
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]string, error)
}

// FileStore keeps snapshots as <dir>/<name>.flx, replaced atomically via a
// temp file and rename so readers never observe a torn write.
type FileStore struct {
	dir string
	log *slog.Logger
}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithFileStoreLogger overrides the default logger.
func WithFileStoreLogger(log *slog.Logger) FileStoreOption {
	return func(s *FileStore) { s.log = log }
}

// NewFileStore creates the directory if needed and returns the store.
func NewFileStore(dir string, opts ...FileStoreOption) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("dataset: create store dir: %w", err)
	}
	s := &FileStore{dir: dir, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the directory snapshots are stored in.
func (s *FileStore) Dir() string { return s.dir }

func (s *FileStore) path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return "", fmt.Errorf("dataset: invalid snapshot name %q", name)
	}
	return filepath.Join(s.dir, name+fileExt), nil
}

// Load reads and decodes the named snapshot.
func (s *FileStore) Load(ctx context.Context, name string) (*Table, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("dataset: read snapshot %s: %w", name, err)
	}
	t, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("dataset: decode snapshot %s: %w", name, err)
	}
	return t, nil
}

// Save encodes the table and atomically replaces the named snapshot.
func (s *FileStore) Save(ctx context.Context, name string, t *Table) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	data, err := Encode(t)
	if err != nil {
		return fmt.Errorf("dataset: encode snapshot %s: %w", name, err)
	}

	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("dataset: create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("dataset: write snapshot %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("dataset: close temp snapshot %s: %w", name, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("dataset: replace snapshot %s: %w", name, err)
	}

	s.log.Debug("snapshot saved", "name", name, "rows", t.NumRows(), "cols", t.NumCols(), "bytes", len(data))
	return nil
}

// Delete removes the named snapshot; deleting a missing snapshot is a no-op.
func (s *FileStore) Delete(ctx context.Context, name string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("dataset: delete snapshot %s: %w", name, err)
	}
	return nil
}

// List returns the stored snapshot names, sorted.
func (s *FileStore) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("dataset: list snapshots: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), fileExt))
	}
	sort.Strings(names)
	return names, nil
}

// MemStore is an in-memory Store for tests. It round-trips through the codec
// so callers get the same copy semantics as the file store.
type MemStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string][]byte)}
}

// Load decodes the named snapshot.
func (s *MemStore) Load(ctx context.Context, name string) (*Table, error) {
	s.mu.RLock()
	data, ok := s.data[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return Decode(data)
}

// Save encodes and stores the table under name.
func (s *MemStore) Save(ctx context.Context, name string, t *Table) error {
	data, err := Encode(t)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data[name] = data
	s.mu.Unlock()
	return nil
}

// Delete removes the named snapshot; missing names are a no-op.
func (s *MemStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	delete(s.data, name)
	s.mu.Unlock()
	return nil
}

// List returns the stored snapshot names, sorted.
func (s *MemStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.data))
	for name := range s.data {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
