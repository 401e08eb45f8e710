// Package observability exposes Prometheus metrics for the retrieval stack.
//
// A nil *Metrics is valid everywhere one is accepted: every method is
// nil-safe, so components can be wired without a metrics provider.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for search, indexing, and
// migration activity.
type Metrics struct {
	registry *prometheus.Registry

	searches       *prometheus.CounterVec
	degradations   *prometheus.CounterVec
	searchDuration *prometheus.HistogramVec
	docsIndexed    prometheus.Counter
	docsRejected   prometheus.Counter
	docsBackfilled prometheus.Counter
	migrations     *prometheus.CounterVec
}

// Option configures the metrics provider.
type Option func(*options)

type options struct {
	registry        *prometheus.Registry
	durationBuckets []float64
	goCollectors    bool
}

// WithRegistry uses an existing Prometheus registry.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(o *options) { o.registry = registry }
}

// WithDurationBuckets sets custom buckets for the search duration histogram.
func WithDurationBuckets(buckets []float64) Option {
	return func(o *options) { o.durationBuckets = buckets }
}

// WithoutGoCollectors skips the Go runtime collectors, mainly for tests that
// build several providers in one process.
func WithoutGoCollectors() Option {
	return func(o *options) { o.goCollectors = false }
}

// New creates a metrics provider backed by its own registry unless one is
// supplied.
//
// Example:
//
//	metrics := observability.New()
//	http.Handle("/metrics", metrics.Handler())
func New(opts ...Option) *Metrics {
	o := &options{
		durationBuckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		goCollectors:    true,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.registry == nil {
		o.registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: o.registry,
		searches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docuchat_searches_total",
			Help: "Search requests by final execution mode.",
		}, []string{"mode"}),
		degradations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docuchat_search_degradations_total",
			Help: "Searches degraded from their requested mode, by reason.",
		}, []string{"reason"}),
		searchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docuchat_search_duration_seconds",
			Help:    "Search latency by final execution mode.",
			Buckets: o.durationBuckets,
		}, []string{"mode"}),
		docsIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docuchat_documents_indexed_total",
			Help: "Chunk records successfully written to the index.",
		}),
		docsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docuchat_documents_rejected_total",
			Help: "Chunk records dropped by validation or bulk item failures.",
		}),
		docsBackfilled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "docuchat_embeddings_backfilled_total",
			Help: "Documents updated with embeddings by backfill runs.",
		}),
		migrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docuchat_index_migrations_total",
			Help: "Index repair runs by outcome.",
		}, []string{"outcome"}),
	}

	o.registry.MustRegister(m.searches, m.degradations, m.searchDuration,
		m.docsIndexed, m.docsRejected, m.docsBackfilled, m.migrations)
	if o.goCollectors {
		o.registry.MustRegister(collectors.NewGoCollector())
		o.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	return m
}

// Handler returns the scrape endpoint for this provider's registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveSearch records one completed search in its final mode.
func (m *Metrics) ObserveSearch(mode string, seconds float64) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(mode).Inc()
	m.searchDuration.WithLabelValues(mode).Observe(seconds)
}

// ObserveDegradation records one degradation step by reason.
func (m *Metrics) ObserveDegradation(reason string) {
	if m == nil {
		return
	}
	m.degradations.WithLabelValues(reason).Inc()
}

// AddIndexed records successfully indexed chunk records.
func (m *Metrics) AddIndexed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.docsIndexed.Add(float64(n))
}

// AddRejected records dropped or failed chunk records.
func (m *Metrics) AddRejected(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.docsRejected.Add(float64(n))
}

// AddBackfilled records documents updated with embeddings.
func (m *Metrics) AddBackfilled(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.docsBackfilled.Add(float64(n))
}

// ObserveMigration records one index repair run by outcome.
func (m *Metrics) ObserveMigration(outcome string) {
	if m == nil {
		return
	}
	m.migrations.WithLabelValues(outcome).Inc()
}
