package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/church-news-api/internal/models"
)

// Extraction run outcomes used as metric labels.
const (
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeCancelled = "cancelled"
	OutcomeSkipped   = "skipped"
	OutcomeOK        = "ok"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	extractionsStarted prometheus.Counter
	extractionRuns     *prometheus.CounterVec
	extractionDuration prometheus.Histogram
	extractionActive   prometheus.Gauge
	pagesTotal         *prometheus.CounterVec
	providerDuration   *prometheus.HistogramVec

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	startedCount         uint64
	completedCount       uint64
	failedCount          uint64
	activeCount          int64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	extractionsStarted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "extraction_runs_started_total",
		Help: "Extraction runs accepted for processing",
	})

	extractionRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "extraction_runs_total",
		Help: "Finished extraction runs by outcome",
	}, []string{"outcome"})

	extractionDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "extraction_run_duration_seconds",
		Help:    "Wall time of extraction runs",
		Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200, 2400},
	})

	extractionActive := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "extraction_runs_active",
		Help: "Extraction runs currently executing in this process",
	})

	pagesTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "extraction_pages_total",
		Help: "Pages handled per phase and outcome",
	}, []string{"phase", "outcome"})

	providerDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ai_provider_call_duration_seconds",
		Help:    "Duration of AI provider calls",
		Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 90},
	}, []string{"provider", "operation", "outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		extractionsStarted, extractionRuns, extractionDuration, extractionActive, pagesTotal, providerDuration, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:           registry,
		handler:            handler,
		requestDuration:    requestDuration,
		requestTotal:       requestTotal,
		cacheLatency:       cacheLatency,
		cacheWrite:         cacheWrite,
		cacheHitRatio:      cacheHitRatio,
		cacheHits:          cacheHits,
		cacheMisses:        cacheMisses,
		extractionsStarted: extractionsStarted,
		extractionRuns:     extractionRuns,
		extractionDuration: extractionDuration,
		extractionActive:   extractionActive,
		pagesTotal:         pagesTotal,
		providerDuration:   providerDuration,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// TrackQueueDepth exports the number of jobs waiting in the named queue.
func (m *MetricsService) TrackQueueDepth(queue string, depth func() int) error {
	if m == nil || depth == nil {
		return nil
	}
	gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "job_queue_pending",
		Help:        "Jobs waiting for a worker",
		ConstLabels: prometheus.Labels{"queue": queue},
	}, func() float64 {
		return float64(depth())
	})
	return m.registry.Register(gauge)
}

// Registry exposes the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics and aggregates simple stats for snapshots.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
	atomic.AddUint64(&m.requestCount, 1)
	atomic.AddUint64(&m.requestDurationTotal, uint64(duration.Nanoseconds()))
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil || m.cacheWrite == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ExtractionStarted counts an accepted run and marks it active.
func (m *MetricsService) ExtractionStarted() {
	if m == nil {
		return
	}
	m.extractionsStarted.Inc()
	m.extractionActive.Inc()
	atomic.AddUint64(&m.startedCount, 1)
	atomic.AddInt64(&m.activeCount, 1)
}

// ExtractionFinished records the outcome and wall time of a run.
func (m *MetricsService) ExtractionFinished(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.extractionRuns.WithLabelValues(outcome).Inc()
	m.extractionDuration.Observe(duration.Seconds())
	m.extractionActive.Dec()
	atomic.AddInt64(&m.activeCount, -1)
	if outcome == OutcomeCompleted {
		atomic.AddUint64(&m.completedCount, 1)
	} else {
		atomic.AddUint64(&m.failedCount, 1)
	}
}

// ObservePage counts one page attempt in the given phase.
func (m *MetricsService) ObservePage(phase, outcome string) {
	if m == nil {
		return
	}
	m.pagesTotal.WithLabelValues(phase, outcome).Inc()
}

// ObserveProviderCall matches the oracle observer signature.
func (m *MetricsService) ObserveProviderCall(provider, operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeFailed
	}
	m.providerDuration.WithLabelValues(provider, operation, outcome).Observe(duration.Seconds())
}

// Snapshot returns aggregated metrics suitable for the admin dashboard.
func (m *MetricsService) Snapshot() models.SystemMetrics {
	if m == nil {
		return models.SystemMetrics{}
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	requests := atomic.LoadUint64(&m.requestCount)
	reqDuration := atomic.LoadUint64(&m.requestDurationTotal)

	var cacheRatio float64
	totalLookups := hits + misses
	if totalLookups > 0 {
		cacheRatio = float64(hits) / float64(totalLookups)
	}

	var avgRequestMs float64
	if requests > 0 {
		avgRequestMs = float64(reqDuration) / float64(requests) / float64(time.Millisecond)
	}

	return models.SystemMetrics{
		CacheHitRatio:            cacheRatio,
		CacheHits:                hits,
		CacheMisses:              misses,
		RequestsTotal:            requests,
		AverageRequestDurationMs: avgRequestMs,
		ExtractionsStarted:       atomic.LoadUint64(&m.startedCount),
		ExtractionsCompleted:     atomic.LoadUint64(&m.completedCount),
		ExtractionsFailed:        atomic.LoadUint64(&m.failedCount),
		ActiveExtractions:        atomic.LoadInt64(&m.activeCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
