// Package ledger tracks which raw-file content hashes have already been
// merged into snapshots. It is the only mutable cross-run state in the
// system: append-only except for an explicit reset.
package ledger

import (
	"context"
	"time"
)

// Clock supplies timestamps; injectable for deterministic tests.
type Clock func() time.Time

// Ledger is the persisted set of processed content hashes. Implementations
// must be safe for concurrent use. Callers mark hashes only after the merged
// snapshot is durably saved, so a crash in between re-processes the file on
// the next scan (at-least-once) rather than losing it.
type Ledger interface {
	// IsNew reports whether the hash has not been processed yet.
	IsNew(ctx context.Context, hash string) (bool, error)
	// MarkProcessed records hashes as processed. Already-known hashes are
	// ignored.
	MarkProcessed(ctx context.Context, hashes ...string) error
	// Hashes returns all processed hashes, sorted.
	Hashes(ctx context.Context) ([]string, error)
	// Clear removes every recorded hash.
	Clear(ctx context.Context) error
}
