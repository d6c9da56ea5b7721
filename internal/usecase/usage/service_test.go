package usage

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kailas-cloud/realtorbot/internal/domain"
	"github.com/kailas-cloud/realtorbot/internal/domain/tenant"
	domusage "github.com/kailas-cloud/realtorbot/internal/domain/usage"
	"github.com/kailas-cloud/realtorbot/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.RegisterPipelineMetrics()
	os.Exit(m.Run())
}

type mockStore struct {
	used    map[domusage.Period]int64
	added   int64
	usedErr error
	addErr  error
}

func (m *mockStore) Add(_ context.Context, _ string, _ time.Time, tokens int64) error {
	if m.addErr != nil {
		return m.addErr
	}
	m.added += tokens
	m.used[domusage.PeriodMonth] += tokens
	m.used[domusage.PeriodDay] += tokens
	return nil
}

func (m *mockStore) Used(_ context.Context, _ string, p domusage.Period, _ time.Time) (int64, error) {
	if m.usedErr != nil {
		return 0, m.usedErr
	}
	return m.used[p], nil
}

var fixedNow = time.Date(2026, time.April, 15, 10, 0, 0, 0, time.UTC)

func newMeter(s Store) *Meter {
	m := New(s, zap.NewNop())
	m.now = func() time.Time { return fixedNow }
	return m
}

func mustTenant(t *testing.T, limit int64) tenant.Tenant {
	t.Helper()
	tn, err := tenant.New("acme", "", "p", "", "", tenant.Rules{MonthlyTokenLimit: limit})
	require.NoError(t, err)
	return tn
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name    string
		limit   int64
		used    int64
		usedErr error
		wantErr bool
	}{
		{"unlimited", 0, 1e9, nil, false},
		{"under", 1000, 999, nil, false},
		{"at limit", 1000, 1000, nil, true},
		{"store error fails open", 1000, 0, errors.New("down"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &mockStore{used: map[domusage.Period]int64{domusage.PeriodMonth: tt.used}, usedErr: tt.usedErr}
			err := newMeter(s).Check(context.Background(), mustTenant(t, tt.limit))
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrTokenQuotaExceeded)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRecord(t *testing.T) {
	s := &mockStore{used: map[domusage.Period]int64{}}
	m := newMeter(s)

	m.Record(context.Background(), mustTenant(t, 1000), 250)
	m.Record(context.Background(), mustTenant(t, 1000), 0)
	assert.Equal(t, int64(250), s.added)

	s.addErr = errors.New("down")
	m.Record(context.Background(), mustTenant(t, 1000), 10) // logged, not surfaced
	assert.Equal(t, int64(250), s.added)
}

func TestReport(t *testing.T) {
	s := &mockStore{used: map[domusage.Period]int64{domusage.PeriodMonth: 600, domusage.PeriodDay: 50}}
	m := newMeter(s)

	r, err := m.Report(context.Background(), mustTenant(t, 1000), domusage.PeriodMonth)
	require.NoError(t, err)
	assert.Equal(t, int64(600), r.Used())
	assert.Equal(t, int64(400), r.Remaining())
	assert.Equal(t, time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC), r.PeriodStart())
	assert.Equal(t, time.Date(2026, time.May, 1, 0, 0, 0, 0, time.UTC), r.PeriodEnd())

	d, err := m.Report(context.Background(), mustTenant(t, 1000), domusage.PeriodDay)
	require.NoError(t, err)
	assert.Equal(t, int64(50), d.Used())
	assert.Equal(t, int64(-1), d.Remaining(), "daily reports are unlimited")

	s.usedErr = errors.New("down")
	_, err = m.Report(context.Background(), mustTenant(t, 1000), domusage.PeriodMonth)
	assert.Error(t, err)
}
