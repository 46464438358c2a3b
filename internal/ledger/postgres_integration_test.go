//go:build integration

package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"fluxmap/internal/ledger"
	"fluxmap/pkg/testutil/containers"
)

type PostgresLedgerSuite struct {
	suite.Suite

	pg     *containers.PostgresContainer
	ledger *ledger.PostgresLedger
}

func TestPostgresLedgerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresLedgerSuite))
}

func (s *PostgresLedgerSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())

	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.ledger = ledger.NewPostgresLedger(s.pg.DB,
		ledger.WithPostgresClock(func() time.Time { return fixed }))

	s.Require().NoError(s.ledger.EnsureSchema(context.Background()))
}

func (s *PostgresLedgerSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(context.Background(), "ingest_ledger"))
}

func (s *PostgresLedgerSuite) TestMarkAndLookup() {
	ctx := context.Background()

	isNew, err := s.ledger.IsNew(ctx, "h1")
	s.Require().NoError(err)
	s.True(isNew)

	s.Require().NoError(s.ledger.MarkProcessed(ctx, "h1", "h2"))

	isNew, err = s.ledger.IsNew(ctx, "h1")
	s.Require().NoError(err)
	s.False(isNew)

	hashes, err := s.ledger.Hashes(ctx)
	s.Require().NoError(err)
	s.Equal([]string{"h1", "h2"}, hashes)
}

func (s *PostgresLedgerSuite) TestBatchMarkIsIdempotent() {
	ctx := context.Background()

	s.Require().NoError(s.ledger.MarkProcessed(ctx, "h1"))
	// Re-marking an existing hash alongside a new one must not fail.
	s.Require().NoError(s.ledger.MarkProcessed(ctx, "h1", "h3"))

	hashes, err := s.ledger.Hashes(ctx)
	s.Require().NoError(err)
	s.Equal([]string{"h1", "h3"}, hashes)
}

func (s *PostgresLedgerSuite) TestClear() {
	ctx := context.Background()

	s.Require().NoError(s.ledger.MarkProcessed(ctx, "h1", "h2"))
	s.Require().NoError(s.ledger.Clear(ctx))

	hashes, err := s.ledger.Hashes(ctx)
	s.Require().NoError(err)
	s.Empty(hashes)
}
