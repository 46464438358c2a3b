package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresLedger persists processed content hashes in PostgreSQL for
// deployments where several nodes share one ingestion history.
type PostgresLedger struct {
	db    *sql.DB
	clock Clock
}

// PostgresLedgerOption configures a PostgresLedger instance.
type PostgresLedgerOption func(*PostgresLedger)

// WithPostgresClock sets the clock function for testability.
func WithPostgresClock(clock Clock) PostgresLedgerOption {
	return func(l *PostgresLedger) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// NewPostgresLedger constructs a PostgreSQL-backed ledger.
func NewPostgresLedger(db *sql.DB, opts ...PostgresLedgerOption) *PostgresLedger {
	l := &PostgresLedger{
		db:    db,
		clock: time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// EnsureSchema creates the ledger table when missing.
func (l *PostgresLedger) EnsureSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS ingest_ledger (
			content_hash TEXT PRIMARY KEY,
			processed_at TIMESTAMPTZ NOT NULL
		)
	`
	if _, err := l.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensure ledger schema: %w", err)
	}
	return nil
}

// IsNew reports whether the hash has not been processed yet.
func (l *PostgresLedger) IsNew(ctx context.Context, hash string) (bool, error) {
	var exists bool
	err := l.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM ingest_ledger WHERE content_hash = $1)`, hash).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check ledger hash: %w", err)
	}
	return !exists, nil
}

// MarkProcessed inserts hashes in one round trip using unnest; hashes already
// present are left untouched so re-marking is idempotent.
func (l *PostgresLedger) MarkProcessed(ctx context.Context, hashes ...string) error {
	valid := make([]string, 0, len(hashes))
	for _, h := range hashes {
		if h != "" {
			valid = append(valid, h)
		}
	}
	if len(valid) == 0 {
		return nil
	}

	query := `
		INSERT INTO ingest_ledger (content_hash, processed_at)
		SELECT unnest($1::text[]), $2
		ON CONFLICT (content_hash) DO NOTHING
	`
	if _, err := l.db.ExecContext(ctx, query, pq.Array(valid), l.clock()); err != nil {
		return fmt.Errorf("mark hashes processed: %w", err)
	}
	return nil
}

// Hashes returns all processed hashes, sorted.
func (l *PostgresLedger) Hashes(ctx context.Context) ([]string, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT content_hash FROM ingest_ledger ORDER BY content_hash`)
	if err != nil {
		return nil, fmt.Errorf("list ledger hashes: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scan ledger hash: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger hashes: %w", err)
	}
	return out, nil
}

// Clear removes every recorded hash.
func (l *PostgresLedger) Clear(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM ingest_ledger`); err != nil {
		return fmt.Errorf("clear ledger: %w", err)
	}
	return nil
}
