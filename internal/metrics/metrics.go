// Package metrics exposes Prometheus collectors for the background workers.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Refresh outcomes.
const (
	OutcomeUpdated  = "updated"
	OutcomeConflict = "conflict"
	OutcomeSkipped  = "skipped"
	OutcomeError    = "error"
)

// Metrics groups every collector on its own registry so tests can build
// independent instances.
type Metrics struct {
	registry *prometheus.Registry

	RecurrencesMaterialized prometheus.Counter
	RecurrencesRetired      prometheus.Counter
	BudgetRefreshes         *prometheus.CounterVec
	AlertsEmitted           *prometheus.CounterVec
	RefreshDuration         prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RecurrencesMaterialized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "recurrences_materialized_total",
			Help:      "Occurrences of recurring expenses written as plain expenses.",
		}),
		RecurrencesRetired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "recurrences_retired_total",
			Help:      "Recurring templates whose end date has passed.",
		}),
		BudgetRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "budget_refreshes_total",
			Help:      "Budget recomputations by outcome.",
		}, []string{"outcome"}),
		AlertsEmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "budget_alerts_total",
			Help:      "Budget alerts emitted by delivery channel.",
		}, []string{"channel"}),
		RefreshDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ledger",
			Name:      "budget_refresh_duration_seconds",
			Help:      "Time spent recomputing one budget.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}),
	}
	m.registry.MustRegister(
		m.RecurrencesMaterialized,
		m.RecurrencesRetired,
		m.BudgetRefreshes,
		m.AlertsEmitted,
		m.RefreshDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveRefresh records one refresh with its outcome and duration.
func (m *Metrics) ObserveRefresh(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.BudgetRefreshes.WithLabelValues(outcome).Inc()
	m.RefreshDuration.Observe(d.Seconds())
}

func (m *Metrics) AlertEmitted(channel string) {
	if m == nil {
		return
	}
	m.AlertsEmitted.WithLabelValues(channel).Inc()
}

func (m *Metrics) Materialized(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RecurrencesMaterialized.Add(float64(n))
}

func (m *Metrics) Retired() {
	if m == nil {
		return
	}
	m.RecurrencesRetired.Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry is exposed for tests and for callers adding their own collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
