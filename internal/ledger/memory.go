package ledger

import (
	"context"
	"sort"
	"sync"
)

// MemoryLedger is an in-process Ledger for tests and single-shot runs.
type MemoryLedger struct {
	mu  sync.RWMutex
	set map[string]struct{}
}

// NewMemoryLedger returns an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{set: make(map[string]struct{})}
}

// IsNew reports whether the hash has not been processed yet.
func (l *MemoryLedger) IsNew(ctx context.Context, hash string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.set[hash]
	return !ok, nil
}

// MarkProcessed records hashes as processed.
func (l *MemoryLedger) MarkProcessed(ctx context.Context, hashes ...string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, h := range hashes {
		if h != "" {
			l.set[h] = struct{}{}
		}
	}
	return nil
}

// Hashes returns all processed hashes, sorted.
func (l *MemoryLedger) Hashes(ctx context.Context) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.set))
	for h := range l.set {
		out = append(out, h)
	}
	sort.Strings(out)
	return out, nil
}

// Clear removes every recorded hash.
func (l *MemoryLedger) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.set = make(map[string]struct{})
	return nil
}
