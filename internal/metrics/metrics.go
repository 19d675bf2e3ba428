// Package metrics exposes Prometheus counters for the ledger, the
// notification merger, subscriptions and the export worker. A nil
// *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	LedgerCommits       *prometheus.CounterVec
	LedgerConflicts     prometheus.Counter
	LedgerFailures      *prometheus.CounterVec
	LedgerAttempts      prometheus.Histogram
	Notifications       *prometheus.CounterVec
	ActiveSubscriptions prometheus.Gauge
	Exports             *prometheus.CounterVec
	CacheLookups        *prometheus.CounterVec
	HTTPRequests        *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		LedgerCommits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pocketbook_ledger_commits_total",
				Help: "Committed ledger entries by entry type",
			},
			[]string{"type"},
		),
		LedgerConflicts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pocketbook_ledger_conflicts_total",
				Help: "Optimistic transaction conflicts retried by the ledger",
			},
		),
		LedgerFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pocketbook_ledger_failures_total",
				Help: "Ledger operations that failed by error class",
			},
			[]string{"class"},
		),
		LedgerAttempts: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pocketbook_ledger_attempts",
				Help:    "Transaction attempts needed per committed ledger entry",
				Buckets: []float64{1, 2, 3, 5, 8, 13},
			},
		),
		Notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pocketbook_notifications_total",
				Help: "Notifications added to the feed by kind",
			},
			[]string{"kind"},
		),
		ActiveSubscriptions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "pocketbook_active_subscriptions",
				Help: "Live document store subscriptions",
			},
		),
		Exports: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pocketbook_exports_total",
				Help: "Transactions mirrored to the spreadsheet by result",
			},
			[]string{"result"},
		),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pocketbook_cache_lookups_total",
				Help: "Point-read cache lookups by result",
			},
			[]string{"result"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pocketbook_http_requests_total",
				Help: "Ops endpoint requests by route and status code",
			},
			[]string{"route", "code"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "pocketbook_http_request_duration_seconds",
				Help:    "Ops endpoint latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}

	m.registry.MustRegister(
		m.LedgerCommits,
		m.LedgerConflicts,
		m.LedgerFailures,
		m.LedgerAttempts,
		m.Notifications,
		m.ActiveSubscriptions,
		m.Exports,
		m.CacheLookups,
		m.HTTPRequests,
		m.HTTPDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) LedgerCommitted(entryType string, attempts int) {
	if m == nil {
		return
	}
	m.LedgerCommits.WithLabelValues(entryType).Inc()
	m.LedgerAttempts.Observe(float64(attempts))
}

func (m *Metrics) LedgerConflict() {
	if m == nil {
		return
	}
	m.LedgerConflicts.Inc()
}

func (m *Metrics) LedgerFailed(class string) {
	if m == nil {
		return
	}
	m.LedgerFailures.WithLabelValues(class).Inc()
}

func (m *Metrics) NotificationAdded(kind string) {
	if m == nil {
		return
	}
	m.Notifications.WithLabelValues(kind).Inc()
}

// SetActiveSubscriptions matches docstore.Hub.OnActiveChange.
func (m *Metrics) SetActiveSubscriptions(n int) {
	if m == nil {
		return
	}
	m.ActiveSubscriptions.Set(float64(n))
}

func (m *Metrics) Exported(result string) {
	if m == nil {
		return
	}
	m.Exports.WithLabelValues(result).Inc()
}

// ObserveCache records the hit and miss deltas of a cache.
func (m *Metrics) ObserveCache(hits, misses int64) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues("hit").Add(float64(hits))
	m.CacheLookups.WithLabelValues("miss").Add(float64(misses))
}

func (m *Metrics) ObserveHTTP(route string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.HTTPDuration.WithLabelValues(route).Observe(d.Seconds())
}
