package telemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the MafCoach gateway.
type Metrics struct {
	RequestTotal      *prometheus.CounterVec
	RequestDurationMs *prometheus.HistogramVec
	AttemptTotal      *prometheus.CounterVec
	WinnerIndex       *prometheus.HistogramVec
	FallbackTotal     *prometheus.CounterVec
	QuotaDeniedTotal  *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		RequestTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mafcoach_request_total",
			Help: "Total number of requests processed by the gateway.",
		}, []string{"route", "method", "status"}),

		RequestDurationMs: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mafcoach_request_duration_ms",
			Help:    "Request duration in milliseconds, including remote latency.",
			Buckets: []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		}, []string{"route"}),

		AttemptTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mafcoach_remote_attempt_total",
			Help: "Remote auth strategy attempts by outcome.",
		}, []string{"operation", "strategy", "outcome"}),

		WinnerIndex: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mafcoach_remote_winner_index",
			Help:    "Zero-based index of the strategy that succeeded.",
			Buckets: []float64{0, 1, 2, 3, 4},
		}, []string{"operation"}),

		FallbackTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mafcoach_fallback_total",
			Help: "Read operations served from a source other than a live remote fetch.",
		}, []string{"kind", "source"}),

		QuotaDeniedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mafcoach_quota_denied_total",
			Help: "Requests denied by rate limits or ingestion quotas.",
		}, []string{"dimension"}),
	}
}

// RecordRequest records a completed gateway request.
func (m *Metrics) RecordRequest(route, method string, status int, durationMs float64) {
	m.RequestTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.RequestDurationMs.WithLabelValues(route).Observe(durationMs)
}

// RecordAttempt records one strategy attempt outcome.
func (m *Metrics) RecordAttempt(operation, strategy, outcome string) {
	m.AttemptTotal.WithLabelValues(operation, strategy, outcome).Inc()
}

// RecordWinnerIndex records which strategy position succeeded.
func (m *Metrics) RecordWinnerIndex(operation string, index int) {
	m.WinnerIndex.WithLabelValues(operation).Observe(float64(index))
}

// RecordFallback records a read served from snapshot or empty fallback.
// source is one of "remote", "snapshot", "empty".
func (m *Metrics) RecordFallback(kind, source string) {
	m.FallbackTotal.WithLabelValues(kind, source).Inc()
}

// RecordQuotaDenied records a rate-limit or quota rejection.
func (m *Metrics) RecordQuotaDenied(dimension string) {
	m.QuotaDeniedTotal.WithLabelValues(dimension).Inc()
}
