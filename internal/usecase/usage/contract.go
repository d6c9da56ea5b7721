package usage

import (
	"context"
	"time"

	domusage "github.com/kailas-cloud/realtorbot/internal/domain/usage"
)

// Store persists per-tenant token counters.
type Store interface {
	Add(ctx context.Context, tenantID string, at time.Time, tokens int64) error
	Used(ctx context.Context, tenantID string, p domusage.Period, at time.Time) (int64, error)
}
