// Copyright 2025 The Doc-Searcher Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package metrics exposes Prometheus collectors for the core search,
// indexing, embedding, and backend-call concerns.
// A nil *Metrics is safe to call every method on — Record/Set/Inc/Dec become
// no-ops, so callers can wire metrics optionally without nil-checking.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config configures the Prometheus registry.
type Config struct {
	// Enabled turns on metrics collection.
	Enabled bool `yaml:"enabled,omitempty"`

	// Endpoint is the path a caller should mount Handler() on.
	// Default: "/metrics"
	Endpoint string `yaml:"endpoint,omitempty"`

	// Namespace prefixes all metric names.
	// Default: "doc_searcher"
	Namespace string `yaml:"namespace,omitempty"`
}

const (
	DefaultMetricsEndpoint = "/metrics"
	DefaultNamespace       = "doc_searcher"
)

// SetDefaults fills zero-valued fields with their defaults.
func (c *Config) SetDefaults() {
	if c.Endpoint == "" {
		c.Endpoint = DefaultMetricsEndpoint
	}
	if c.Namespace == "" {
		c.Namespace = DefaultNamespace
	}
}

// Metrics collects Prometheus metrics for every core component.
type Metrics struct {
	config   *Config
	registry *prometheus.Registry

	// Backend client
	backendCalls     *prometheus.CounterVec
	backendCallDur   *prometheus.HistogramVec
	backendErrors    *prometheus.CounterVec
	backendRetries   *prometheus.CounterVec

	// Index/folder service
	indexOps       *prometheus.CounterVec
	indexOpErrors  *prometheus.CounterVec
	infoFolderHits *prometheus.CounterVec

	// Document service
	docsIndexed  *prometheus.CounterVec
	docsSkipped  *prometheus.CounterVec
	docsErrors   *prometheus.CounterVec
	chunksPerDoc *prometheus.HistogramVec

	// Search service
	searches        *prometheus.CounterVec
	searchDuration  *prometheus.HistogramVec
	searchResults   *prometheus.HistogramVec
	scrollsOpened   prometheus.Counter
	scrollsExpired  prometheus.Counter
	scrollCacheSize prometheus.Gauge

	// Embedding client
	embeddingCalls    *prometheus.CounterVec
	embeddingCallDur  *prometheus.HistogramVec
	embeddingErrors   *prometheus.CounterVec
}

// New builds a Metrics collector from cfg. Returns nil, nil when metrics are
// disabled — every method on a nil *Metrics is a safe no-op.
func New(cfg *Config) (*Metrics, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, nil
	}
	cfg.SetDefaults()

	m := &Metrics{
		config:   cfg,
		registry: prometheus.NewRegistry(),
	}

	m.initBackendMetrics()
	m.initIndexMetrics()
	m.initDocumentMetrics()
	m.initSearchMetrics()
	m.initEmbeddingMetrics()

	return m, nil
}

func (m *Metrics) initBackendMetrics() {
	m.backendCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace,
		Subsystem: "backend",
		Name:      "calls_total",
		Help:      "Total number of calls made to the search backend",
	}, []string{"operation"})

	m.backendCallDur = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace,
		Subsystem: "backend",
		Name:      "call_duration_seconds",
		Help:      "Search backend call duration in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to 10s
	}, []string{"operation"})

	m.backendErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace,
		Subsystem: "backend",
		Name:      "errors_total",
		Help:      "Total number of backend call errors",
	}, []string{"operation", "kind"})

	m.backendRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace,
		Subsystem: "backend",
		Name:      "retries_total",
		Help:      "Total number of backend call retries",
	}, []string{"operation"})

	m.registry.MustRegister(m.backendCalls, m.backendCallDur, m.backendErrors, m.backendRetries)
}

func (m *Metrics) initIndexMetrics() {
	m.indexOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace,
		Subsystem: "index",
		Name:      "operations_total",
		Help:      "Total number of index/folder lifecycle operations",
	}, []string{"operation", "kind"})

	m.indexOpErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace,
		Subsystem: "index",
		Name:      "operation_errors_total",
		Help:      "Total number of index/folder lifecycle operation errors",
	}, []string{"operation", "kind"})

	m.infoFolderHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace,
		Subsystem: "index",
		Name:      "info_folder_cache_hits_total",
		Help:      "Total number of info-folder cache lookups by outcome",
	}, []string{"outcome"}) // hit, miss, expired

	m.registry.MustRegister(m.indexOps, m.indexOpErrors, m.infoFolderHits)
}

func (m *Metrics) initDocumentMetrics() {
	m.docsIndexed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace,
		Subsystem: "document",
		Name:      "indexed_total",
		Help:      "Total number of documents indexed",
	}, []string{"kind"})

	m.docsSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace,
		Subsystem: "document",
		Name:      "skipped_total",
		Help:      "Total number of documents skipped during a bulk operation",
	}, []string{"kind", "reason"})

	m.docsErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace,
		Subsystem: "document",
		Name:      "errors_total",
		Help:      "Total number of document operation errors",
	}, []string{"operation", "kind"})

	m.chunksPerDoc = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace,
		Subsystem: "document",
		Name:      "chunks_per_document",
		Help:      "Number of chunks produced per indexed large document",
		Buckets:   prometheus.LinearBuckets(0, 5, 20),
	}, []string{"kind"})

	m.registry.MustRegister(m.docsIndexed, m.docsSkipped, m.docsErrors, m.chunksPerDoc)
}

func (m *Metrics) initSearchMetrics() {
	m.searches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace,
		Subsystem: "search",
		Name:      "queries_total",
		Help:      "Total number of search queries",
	}, []string{"search_kind"})

	m.searchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace,
		Subsystem: "search",
		Name:      "query_duration_seconds",
		Help:      "Search query duration in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"search_kind"})

	m.searchResults = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace,
		Subsystem: "search",
		Name:      "results_count",
		Help:      "Number of results returned by a search query",
		Buckets:   prometheus.LinearBuckets(0, 10, 11),
	}, []string{"search_kind"})

	m.scrollsOpened = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.config.Namespace,
		Subsystem: "search",
		Name:      "scrolls_opened_total",
		Help:      "Total number of scroll contexts opened",
	})

	m.scrollsExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.config.Namespace,
		Subsystem: "search",
		Name:      "scrolls_expired_total",
		Help:      "Total number of scroll contexts that expired or were rejected on paginate",
	})

	m.scrollCacheSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: m.config.Namespace,
		Subsystem: "search",
		Name:      "scroll_cache_size",
		Help:      "Current number of tracked open scroll contexts",
	})

	m.registry.MustRegister(m.searches, m.searchDuration, m.searchResults,
		m.scrollsOpened, m.scrollsExpired, m.scrollCacheSize)
}

func (m *Metrics) initEmbeddingMetrics() {
	m.embeddingCalls = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace,
		Subsystem: "embedding",
		Name:      "calls_total",
		Help:      "Total number of embedding service calls",
	}, []string{})

	m.embeddingCallDur = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.config.Namespace,
		Subsystem: "embedding",
		Name:      "call_duration_seconds",
		Help:      "Embedding service call duration in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
	}, []string{})

	m.embeddingErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.config.Namespace,
		Subsystem: "embedding",
		Name:      "errors_total",
		Help:      "Total number of embedding service errors",
	}, []string{"kind"})

	m.registry.MustRegister(m.embeddingCalls, m.embeddingCallDur, m.embeddingErrors)
}

// RecordBackendCall records a single backend call outcome.
func (m *Metrics) RecordBackendCall(operation string, duration time.Duration) {
	if m == nil {
		return
	}
	m.backendCalls.WithLabelValues(operation).Inc()
	m.backendCallDur.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordBackendError records a backend call error of the given kind (see
// pkg/apperrors.Kind).
func (m *Metrics) RecordBackendError(operation, kind string) {
	if m == nil {
		return
	}
	m.backendErrors.WithLabelValues(operation, kind).Inc()
}

// RecordBackendRetry records a single retry attempt for a backend call.
func (m *Metrics) RecordBackendRetry(operation string) {
	if m == nil {
		return
	}
	m.backendRetries.WithLabelValues(operation).Inc()
}

// RecordIndexOp records an index/folder lifecycle operation.
func (m *Metrics) RecordIndexOp(operation, kind string) {
	if m == nil {
		return
	}
	m.indexOps.WithLabelValues(operation, kind).Inc()
}

// RecordIndexOpError records an index/folder lifecycle operation error.
func (m *Metrics) RecordIndexOpError(operation, kind string) {
	if m == nil {
		return
	}
	m.indexOpErrors.WithLabelValues(operation, kind).Inc()
}

// RecordInfoFolderCacheOutcome records a cache lookup outcome: "hit", "miss",
// or "expired".
func (m *Metrics) RecordInfoFolderCacheOutcome(outcome string) {
	if m == nil {
		return
	}
	m.infoFolderHits.WithLabelValues(outcome).Inc()
}

// RecordDocIndexed records a successfully indexed document.
func (m *Metrics) RecordDocIndexed(kind string) {
	if m == nil {
		return
	}
	m.docsIndexed.WithLabelValues(kind).Inc()
}

// RecordDocSkipped records a document skipped during a bulk operation.
func (m *Metrics) RecordDocSkipped(kind, reason string) {
	if m == nil {
		return
	}
	m.docsSkipped.WithLabelValues(kind, reason).Inc()
}

// RecordDocError records a document operation error.
func (m *Metrics) RecordDocError(operation, kind string) {
	if m == nil {
		return
	}
	m.docsErrors.WithLabelValues(operation, kind).Inc()
}

// RecordChunkCount records the number of chunks produced for one document.
func (m *Metrics) RecordChunkCount(kind string, count int) {
	if m == nil {
		return
	}
	m.chunksPerDoc.WithLabelValues(kind).Observe(float64(count))
}

// RecordSearch records a search query.
func (m *Metrics) RecordSearch(searchKind string, duration time.Duration, resultCount int) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(searchKind).Inc()
	m.searchDuration.WithLabelValues(searchKind).Observe(duration.Seconds())
	m.searchResults.WithLabelValues(searchKind).Observe(float64(resultCount))
}

// RecordScrollOpened records a newly opened scroll context.
func (m *Metrics) RecordScrollOpened() {
	if m == nil {
		return
	}
	m.scrollsOpened.Inc()
}

// RecordScrollExpired records a scroll context that expired or was rejected.
func (m *Metrics) RecordScrollExpired() {
	if m == nil {
		return
	}
	m.scrollsExpired.Inc()
}

// SetScrollCacheSize sets the current tracked scroll-context count.
func (m *Metrics) SetScrollCacheSize(n int) {
	if m == nil {
		return
	}
	m.scrollCacheSize.Set(float64(n))
}

// RecordEmbeddingCall records an embedding service call.
func (m *Metrics) RecordEmbeddingCall(duration time.Duration) {
	if m == nil {
		return
	}
	m.embeddingCalls.WithLabelValues().Inc()
	m.embeddingCallDur.WithLabelValues().Observe(duration.Seconds())
}

// RecordEmbeddingError records an embedding service error of the given kind.
func (m *Metrics) RecordEmbeddingError(kind string) {
	if m == nil {
		return
	}
	m.embeddingErrors.WithLabelValues(kind).Inc()
}

// Handler returns an HTTP handler serving the Prometheus exposition format.
// A nil *Metrics returns a handler that always responds 503.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying Prometheus registry, or nil.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}
