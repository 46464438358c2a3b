package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var lookupDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "fluxmap_ledger_lookup_duration_ms",
	Help:    "Latency of content-hash lookups in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
})

const defaultRedisKey = "fluxmap:ledger:hashes"

// RedisLedger stores processed content hashes in a single Redis set, for
// distributed deployments that share ingestion state.
type RedisLedger struct {
	client *redis.Client
	key    string
}

// RedisLedgerOption configures a RedisLedger instance.
type RedisLedgerOption func(*RedisLedger)

// WithRedisKey overrides the set key, e.g. to isolate environments.
func WithRedisKey(key string) RedisLedgerOption {
	return func(l *RedisLedger) {
		if key != "" {
			l.key = key
		}
	}
}

// NewRedisLedger constructs a Redis-backed ledger.
func NewRedisLedger(client *redis.Client, opts ...RedisLedgerOption) *RedisLedger {
	l := &RedisLedger{
		client: client,
		key:    defaultRedisKey,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// IsNew reports whether the hash has not been processed yet.
func (l *RedisLedger) IsNew(ctx context.Context, hash string) (bool, error) {
	start := time.Now()
	defer func() {
		lookupDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	member, err := l.client.SIsMember(ctx, l.key, hash).Result()
	if err != nil {
		return false, fmt.Errorf("ledger sismember: %w", err)
	}
	return !member, nil
}

// MarkProcessed adds hashes to the set in one round trip.
func (l *RedisLedger) MarkProcessed(ctx context.Context, hashes ...string) error {
	members := make([]any, 0, len(hashes))
	for _, h := range hashes {
		if h != "" {
			members = append(members, h)
		}
	}
	if len(members) == 0 {
		return nil
	}
	if err := l.client.SAdd(ctx, l.key, members...).Err(); err != nil {
		return fmt.Errorf("ledger sadd: %w", err)
	}
	return nil
}

// Hashes returns all processed hashes, sorted.
func (l *RedisLedger) Hashes(ctx context.Context) ([]string, error) {
	members, err := l.client.SMembers(ctx, l.key).Result()
	if err != nil {
		return nil, fmt.Errorf("ledger smembers: %w", err)
	}
	sort.Strings(members)
	return members, nil
}

// Clear removes the whole set.
func (l *RedisLedger) Clear(ctx context.Context) error {
	if err := l.client.Del(ctx, l.key).Err(); err != nil {
		return fmt.Errorf("ledger del: %w", err)
	}
	return nil
}
