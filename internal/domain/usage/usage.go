// Package usage describes per-tenant model token consumption.
package usage

import (
	"fmt"
	"strings"
	"time"
)

// Period is the aggregation granularity.
type Period string

// Aggregation period constants.
const (
	PeriodDay   Period = "day"
	PeriodMonth Period = "month"
)

// ParsePeriod validates a period name. Empty means month.
func ParsePeriod(s string) (Period, error) {
	switch Period(strings.ToLower(strings.TrimSpace(s))) {
	case "", PeriodMonth:
		return PeriodMonth, nil
	case PeriodDay:
		return PeriodDay, nil
	default:
		return "", fmt.Errorf("unknown usage period %q", s)
	}
}

// Bounds returns the UTC start (inclusive) and end (exclusive) of the period containing at.
func (p Period) Bounds(at time.Time) (time.Time, time.Time) {
	at = at.UTC()
	switch p {
	case PeriodDay:
		start := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 0, 1)
	default:
		start := time.Date(at.Year(), at.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0)
	}
}

// Bucket returns the storage suffix identifying the period containing at.
func (p Period) Bucket(at time.Time) string {
	at = at.UTC()
	if p == PeriodDay {
		return at.Format("2006-01-02")
	}
	return at.Format("2006-01")
}

// Report is a tenant's token usage for one period.
type Report struct {
	tenantID string
	period   Period
	start    time.Time
	end      time.Time
	used     int64
	limit    int64
}

// NewReport creates a usage report. A zero limit means unlimited.
func NewReport(tenantID string, period Period, start, end time.Time, used, limit int64) Report {
	return Report{tenantID: tenantID, period: period, start: start, end: end, used: used, limit: limit}
}

// TenantID returns the tenant the report belongs to.
func (r Report) TenantID() string { return r.tenantID }

// Period returns the aggregation granularity.
func (r Report) Period() Period { return r.period }

// PeriodStart returns the period start.
func (r Report) PeriodStart() time.Time { return r.start }

// PeriodEnd returns the period end, which is also when the quota resets.
func (r Report) PeriodEnd() time.Time { return r.end }

// Used returns the tokens consumed in the period.
func (r Report) Used() int64 { return r.used }

// Limit returns the token cap (0 = unlimited).
func (r Report) Limit() int64 { return r.limit }

// Remaining returns tokens left, or -1 when unlimited.
func (r Report) Remaining() int64 {
	if r.limit <= 0 {
		return -1
	}
	if left := r.limit - r.used; left > 0 {
		return left
	}
	return 0
}

// Exhausted reports whether a limited quota is spent.
func (r Report) Exhausted() bool {
	return r.limit > 0 && r.used >= r.limit
}
