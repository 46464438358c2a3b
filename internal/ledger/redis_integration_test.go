//go:build integration

package ledger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"fluxmap/internal/ledger"
	"fluxmap/pkg/testutil/containers"
)

type RedisLedgerSuite struct {
	suite.Suite

	redis  *containers.RedisContainer
	ledger *ledger.RedisLedger
}

func TestRedisLedgerSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisLedgerSuite))
}

func (s *RedisLedgerSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.ledger = ledger.NewRedisLedger(s.redis.Client,
		ledger.WithRedisKey("fluxmap:test:hashes"))
}

func (s *RedisLedgerSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisLedgerSuite) TestMarkAndLookup() {
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

func (s *RedisLedgerSuite) TestClear() {
	ctx := context.Background()

	s.Require().NoError(s.ledger.MarkProcessed(ctx, "h1"))
	s.Require().NoError(s.ledger.Clear(ctx))

	isNew, err := s.ledger.IsNew(ctx, "h1")
	s.Require().NoError(err)
	s.True(isNew)
}
