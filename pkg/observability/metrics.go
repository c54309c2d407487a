package observability

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the application. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	WebHits            *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec
	Shares             *prometheus.CounterVec
	Confirmations      *prometheus.CounterVec
	Mail               *prometheus.CounterVec
	BreadcrumbsWritten prometheus.Counter
	BreadcrumbsDropped prometheus.Counter
	CacheHits          prometheus.Counter
	CacheMisses        prometheus.Counter

	mu      sync.Mutex
	pending map[string]float64
}

// NewMetrics creates a collector set on its own registry
func NewMetrics(namespace string) *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		WebHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "web_hits_total",
			Help:      "Authenticated requests by URI",
		}, []string{"uri"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		Shares: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collaboration_shares_total",
			Help:      "Collaboration requests by outcome",
		}, []string{"outcome"}),
		Confirmations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collaboration_confirmations_total",
			Help:      "Collaboration confirmations by outcome",
		}, []string{"outcome"}),
		Mail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mail_total",
			Help:      "Outgoing email by outcome",
		}, []string{"outcome"}),
		BreadcrumbsWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breadcrumbs_written_total",
			Help:      "Breadcrumbs persisted",
		}),
		BreadcrumbsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "breadcrumbs_dropped_total",
			Help:      "Breadcrumbs dropped because the buffer was full or the write failed",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		}),
		pending: make(map[string]float64),
	}

	registry.MustRegister(
		m.WebHits,
		m.HTTPDuration,
		m.Shares,
		m.Confirmations,
		m.Mail,
		m.BreadcrumbsWritten,
		m.BreadcrumbsDropped,
		m.CacheHits,
		m.CacheMisses,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordWebHit counts a request against uri. Counts are also buffered for
// the CloudWatch flusher.
func (m *Metrics) RecordWebHit(uri string) {
	if m == nil {
		return
	}
	m.WebHits.WithLabelValues(uri).Inc()

	m.mu.Lock()
	m.pending[uri]++
	m.mu.Unlock()
}

// drainWebHits returns and resets the hits buffered since the last call
func (m *Metrics) drainWebHits() map[string]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.pending
	m.pending = make(map[string]float64)
	return out
}

func (m *Metrics) RecordShare(outcome string) {
	if m == nil {
		return
	}
	m.Shares.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordConfirmation(outcome string) {
	if m == nil {
		return
	}
	m.Confirmations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordMail(sent bool) {
	if m == nil {
		return
	}
	if sent {
		m.Mail.WithLabelValues("sent").Inc()
		return
	}
	m.Mail.WithLabelValues("failed").Inc()
}

func (m *Metrics) RecordBreadcrumb(written bool) {
	if m == nil {
		return
	}
	if written {
		m.BreadcrumbsWritten.Inc()
		return
	}
	m.BreadcrumbsDropped.Inc()
}

func (m *Metrics) RecordCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.Inc()
		return
	}
	m.CacheMisses.Inc()
}
