package telemetry

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()

	if m.RequestTotal == nil {
		t.Error("RequestTotal should not be nil")
	}
	if m.AttemptTotal == nil {
		t.Error("AttemptTotal should not be nil")
	}
	if m.WinnerIndex == nil {
		t.Error("WinnerIndex should not be nil")
	}
	if m.FallbackTotal == nil {
		t.Error("FallbackTotal should not be nil")
	}
	if m.QuotaDeniedTotal == nil {
		t.Error("QuotaDeniedTotal should not be nil")
	}
}

func TestRecordAttempt(t *testing.T) {
	// Use a fresh registry to avoid polluting the default one
	reg := prometheus.NewRegistry()

	attemptTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_mafcoach_remote_attempt_total",
		Help: "Test counter",
	}, []string{"operation", "strategy", "outcome"})
	reg.MustRegister(attemptTotal)

	m := &Metrics{AttemptTotal: attemptTotal}

	m.RecordAttempt("chat-history", "organization-secret", "rejected")
	m.RecordAttempt("chat-history", "organization-secret", "rejected")
	m.RecordAttempt("chat-history", "bearer-org-id", "success")

	var metric dto.Metric
	c, err := attemptTotal.GetMetricWithLabelValues("chat-history", "organization-secret", "rejected")
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Write(&metric); err != nil {
		t.Fatal(err)
	}
	if got := metric.GetCounter().GetValue(); got != 2 {
		t.Errorf("expected 2 rejected attempts, got %v", got)
	}
}

func TestRecordFallback(t *testing.T) {
	reg := prometheus.NewRegistry()

	fallbackTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "test_mafcoach_fallback_total",
		Help: "Test counter",
	}, []string{"kind", "source"})
	reg.MustRegister(fallbackTotal)

	m := &Metrics{FallbackTotal: fallbackTotal}
	m.RecordFallback("replica-list", "snapshot")

	var metric dto.Metric
	c, err := fallbackTotal.GetMetricWithLabelValues("replica-list", "snapshot")
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Write(&metric); err != nil {
		t.Fatal(err)
	}
	if got := metric.GetCounter().GetValue(); got != 1 {
		t.Errorf("expected 1 fallback serve, got %v", got)
	}
}
