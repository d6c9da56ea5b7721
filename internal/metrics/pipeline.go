package metrics

import "github.com/prometheus/client_golang/prometheus"

// Chat pipeline Prometheus metrics.
var (
	ChatRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "realtorbot",
			Name:      "chat_requests_total",
			Help:      "Total chat answers by outcome",
		},
		[]string{"tenant", "status"},
	)

	ChatDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "realtorbot",
			Name:      "chat_duration_seconds",
			Help:      "End-to-end chat pipeline duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
		},
		[]string{"tenant"},
	)

	ModelTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "realtorbot",
			Name:      "model_tokens_total",
			Help:      "Chat model tokens consumed",
		},
		[]string{"tenant", "type"}, // "prompt" / "completion"
	)

	ModelRetriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "realtorbot",
			Name:      "model_retries_total",
			Help:      "Chat model calls retried after an overload signal",
		},
		[]string{"model"},
	)

	SearchSlotsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "realtorbot",
			Name:      "search_slots_total",
			Help:      "Hybrid search slot executions by slot and status",
		},
		[]string{"slot", "status"}, // status: "ok" / "error" / "skipped"
	)

	ContextTokens = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "realtorbot",
			Name:      "context_tokens",
			Help:      "Tokens spent on the assembled context block",
			Buckets:   prometheus.LinearBuckets(0, 512, 8),
		},
	)

	TenantTokensRemaining = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "realtorbot",
			Name:      "tenant_tokens_remaining",
			Help:      "Remaining monthly model tokens per tenant",
		},
		[]string{"tenant"},
	)
)

var pipelineMetricsRegistered bool

// RegisterPipelineMetrics registers Prometheus chat pipeline metrics. Must be called once from main.
func RegisterPipelineMetrics() {
	if pipelineMetricsRegistered {
		return
	}
	prometheus.MustRegister(
		ChatRequestsTotal,
		ChatDuration,
		ModelTokensTotal,
		ModelRetriesTotal,
		SearchSlotsTotal,
		ContextTokens,
		TenantTokensRemaining,
	)
	pipelineMetricsRegistered = true
}
