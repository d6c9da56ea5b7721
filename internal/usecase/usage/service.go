package usage

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/realtorbot/internal/domain"
	"github.com/kailas-cloud/realtorbot/internal/domain/tenant"
	domusage "github.com/kailas-cloud/realtorbot/internal/domain/usage"
	"github.com/kailas-cloud/realtorbot/internal/metrics"
)

// Meter enforces and reports per-tenant monthly model token quotas.
// Counters live in the store so every replica sees the same totals.
type Meter struct {
	store  Store
	now    func() time.Time
	logger *zap.Logger
}

// New creates a Meter.
func New(store Store, logger *zap.Logger) *Meter {
	return &Meter{store: store, now: time.Now, logger: logger}
}

// Check returns domain.ErrTokenQuotaExceeded once the tenant's monthly quota is spent.
// A store failure fails open: the request proceeds and the error is logged.
func (m *Meter) Check(ctx context.Context, t tenant.Tenant) error {
	limit := t.Rules().MonthlyTokenLimit
	if limit <= 0 {
		return nil
	}
	used, err := m.store.Used(ctx, t.ID(), domusage.PeriodMonth, m.now())
	if err != nil {
		m.logger.Warn("Failed to read tenant usage, allowing request",
			zap.String("tenant_id", t.ID()), zap.Error(err))
		return nil
	}
	if used >= limit {
		return fmt.Errorf("tenant %s used %d of %d tokens: %w", t.ID(), used, limit, domain.ErrTokenQuotaExceeded)
	}
	return nil
}

// Record adds consumed tokens. Failures are logged, never surfaced: the
// answer has already been produced.
func (m *Meter) Record(ctx context.Context, t tenant.Tenant, tokens int) {
	if tokens <= 0 {
		return
	}
	now := m.now()
	if err := m.store.Add(ctx, t.ID(), now, int64(tokens)); err != nil {
		m.logger.Warn("Failed to record tenant usage",
			zap.String("tenant_id", t.ID()), zap.Int("tokens", tokens), zap.Error(err))
		return
	}
	if limit := t.Rules().MonthlyTokenLimit; limit > 0 {
		if used, err := m.store.Used(ctx, t.ID(), domusage.PeriodMonth, now); err == nil {
			metrics.TenantTokensRemaining.WithLabelValues(t.ID()).Set(float64(max(limit-used, 0)))
		}
	}
}

// Report builds a usage report for the period containing now.
func (m *Meter) Report(ctx context.Context, t tenant.Tenant, period domusage.Period) (domusage.Report, error) {
	now := m.now()
	start, end := period.Bounds(now)
	used, err := m.store.Used(ctx, t.ID(), period, now)
	if err != nil {
		return domusage.Report{}, fmt.Errorf("usage report %s: %w", t.ID(), err)
	}

	// the quota is monthly; daily reports carry no limit
	var limit int64
	if period == domusage.PeriodMonth {
		limit = t.Rules().MonthlyTokenLimit
	}
	return domusage.NewReport(t.ID(), period, start, end, used, limit), nil
}
