// Package metrics exposes Prometheus collectors for stratum.
//
// A [Metrics] value is fed from two directions: it subscribes to a
// registry's event bus for layer, compute and export events, and it
// implements the [observability] hook interfaces for cache and store
// traffic. [Metrics.Install] registers it as the process-wide hooks.
//
// All metric operations are safe for concurrent use.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/stratum/pkg/event"
	"github.com/matzehuels/stratum/pkg/observability"
)

const namespace = "stratum"

var durationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// =============================================================================
// Metric Definitions
// =============================================================================

// Metrics holds the collectors.
type Metrics struct {
	// EventsTotal counts bus events by kind.
	EventsTotal *prometheus.CounterVec

	// Layers tracks the number of layers in the registry.
	Layers prometheus.Gauge

	// Tags tracks the number of published broadcast tags.
	Tags prometheus.Gauge

	// ComputeSeconds measures node and layer evaluation time.
	// Labels: scope (node, layer), status (ok, error)
	ComputeSeconds *prometheus.HistogramVec

	// ExportSeconds measures flatten/export time. Labels: status
	ExportSeconds *prometheus.HistogramVec

	// ExportSources observes the number of sources per export.
	ExportSources prometheus.Histogram

	// CacheRequests counts cache lookups.
	// Labels: type (export, topology), result (hit, miss)
	CacheRequests *prometheus.CounterVec

	// CacheBytes counts bytes written to the cache. Labels: type
	CacheBytes *prometheus.CounterVec

	// StoreSeconds measures project store operations.
	// Labels: backend, op (load, save), status
	StoreSeconds *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New creates the collectors and registers them with reg. A nil reg uses a
// fresh private registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		EventsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Registry events by kind",
		}, []string{"kind"}),
		Layers: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "layers",
			Help:      "Number of layers in the registry",
		}),
		Tags: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "broadcast_tags",
			Help:      "Number of published broadcast tags",
		}),
		ComputeSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "compute_seconds",
			Help:      "Evaluation time by scope",
			Buckets:   durationBuckets,
		}, []string{"scope", "status"}),
		ExportSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "export_seconds",
			Help:      "Flatten and export time",
			Buckets:   durationBuckets,
		}, []string{"status"}),
		ExportSources: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "export_sources",
			Help:      "Number of source fields per export",
			Buckets:   prometheus.LinearBuckets(1, 1, 8),
		}),
		CacheRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "requests_total",
			Help:      "Cache lookups by key type and result",
		}, []string{"type", "result"}),
		CacheBytes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "written_bytes_total",
			Help:      "Bytes written to the cache by key type",
		}, []string{"type"}),
		StoreSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "op_seconds",
			Help:      "Project store operation time",
			Buckets:   durationBuckets,
		}, []string{"backend", "op", "status"}),
		gatherer: reg,
	}
}

// Handler serves the collected metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Install registers m as the process-wide observability hooks.
func (m *Metrics) Install() {
	observability.SetExportHooks(m)
	observability.SetCacheHooks(m)
	observability.SetStoreHooks(m)
}

// =============================================================================
// Event bus
// =============================================================================

// Watch subscribes m to bus and returns the unsubscribe function.
func (m *Metrics) Watch(bus *event.Bus) func() {
	return bus.Subscribe(m.Observe)
}

// Observe records a single event.
func (m *Metrics) Observe(e event.Event) {
	m.EventsTotal.WithLabelValues(e.Kind.String()).Inc()
	switch e.Kind {
	case event.LayerAdded:
		m.Layers.Inc()
	case event.LayerRemoved:
		m.Layers.Dec()
	case event.TagAdded:
		m.Tags.Inc()
	case event.TagRemoved:
		m.Tags.Dec()
	case event.ComputeFinished:
		scope := "layer"
		if e.Node != "" {
			scope = "node"
		}
		m.ComputeSeconds.WithLabelValues(scope, status(e.Error == "")).Observe(e.Duration.Seconds())
	}
}

// =============================================================================
// Hooks
// =============================================================================

// OnExportStart implements observability.ExportHooks.
func (m *Metrics) OnExportStart(_ context.Context, sources int, _ [2]int) {
	m.ExportSources.Observe(float64(sources))
}

// OnExportComplete implements observability.ExportHooks.
func (m *Metrics) OnExportComplete(_ context.Context, d time.Duration, err error) {
	m.ExportSeconds.WithLabelValues(status(err == nil)).Observe(d.Seconds())
}

// OnCacheHit implements observability.CacheHooks.
func (m *Metrics) OnCacheHit(_ context.Context, keyType string) {
	m.CacheRequests.WithLabelValues(keyType, "hit").Inc()
}

// OnCacheMiss implements observability.CacheHooks.
func (m *Metrics) OnCacheMiss(_ context.Context, keyType string) {
	m.CacheRequests.WithLabelValues(keyType, "miss").Inc()
}

// OnCacheSet implements observability.CacheHooks.
func (m *Metrics) OnCacheSet(_ context.Context, keyType string, size int) {
	m.CacheBytes.WithLabelValues(keyType).Add(float64(size))
}

// OnLoad implements observability.StoreHooks.
func (m *Metrics) OnLoad(_ context.Context, backend string, d time.Duration, err error) {
	m.StoreSeconds.WithLabelValues(backend, "load", status(err == nil)).Observe(d.Seconds())
}

// OnSave implements observability.StoreHooks.
func (m *Metrics) OnSave(_ context.Context, backend string, _ int, d time.Duration, err error) {
	m.StoreSeconds.WithLabelValues(backend, "save", status(err == nil)).Observe(d.Seconds())
}

func status(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
