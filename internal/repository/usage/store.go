package usage

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kailas-cloud/realtorbot/internal/db"
	"github.com/kailas-cloud/realtorbot/internal/domain"
	domusage "github.com/kailas-cloud/realtorbot/internal/domain/usage"
)

// store is the consumer interface for usage counters (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrBy(ctx context.Context, key string, val int64) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Store keeps per-tenant token counters in INCRBY keys bucketed by day and month.
type Store struct {
	store    store
	dailyTTL time.Duration
	monthTTL time.Duration
}

// New creates a usage store.
// dailyTTL is the TTL for daily keys (recommended: 48h).
// monthTTL is the TTL for monthly keys (recommended: 62 days).
func New(s store, dailyTTL, monthTTL time.Duration) *Store {
	return &Store{store: s, dailyTTL: dailyTTL, monthTTL: monthTTL}
}

// Add records tokens consumed by a tenant at the given time in both buckets.
func (s *Store) Add(ctx context.Context, tenantID string, at time.Time, tokens int64) error {
	if tokens <= 0 {
		return nil
	}
	for _, p := range []domusage.Period{domusage.PeriodDay, domusage.PeriodMonth} {
		key := Key(tenantID, p, at)
		if _, err := s.store.IncrBy(ctx, key, tokens); err != nil {
			return fmt.Errorf("usage INCRBY %s: %w", key, err)
		}
		// NX keeps the original expiry on repeat increments.
		if err := s.store.Expire(ctx, key, s.ttl(p), true); err != nil {
			return fmt.Errorf("usage EXPIRE %s: %w", key, err)
		}
	}
	return nil
}

// Used returns the tokens consumed by a tenant in the period containing at.
// A missing key means zero.
func (s *Store) Used(ctx context.Context, tenantID string, p domusage.Period, at time.Time) (int64, error) {
	key := Key(tenantID, p, at)
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("usage GET %s: %w", key, err)
	}

	val, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("usage GET %s parse: %w", key, err)
	}
	return val, nil
}

func (s *Store) ttl(p domusage.Period) time.Duration {
	if p == domusage.PeriodDay {
		return s.dailyTTL
	}
	return s.monthTTL
}

// Key builds the counter key, e.g. realtorbot:usage:acme:month:2026-02.
func Key(tenantID string, p domusage.Period, at time.Time) string {
	return fmt.Sprintf("%susage:%s:%s:%s", domain.KeyPrefix, tenantID, p, p.Bucket(at))
}
