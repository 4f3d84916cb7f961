package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/sfd-aulas-api/internal/models"
)

// MetricsService encapsulates Prometheus instrumentation and provides lightweight snapshots for API consumption.
type MetricsService struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	cacheLatency      prometheus.Observer
	cacheWrite        prometheus.Observer
	cacheHitRatio     prometheus.Gauge
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	batchDuration     *prometheus.HistogramVec
	batchFailures     *prometheus.CounterVec
	sessionsGenerated prometheus.Counter
	horizonExhausted  prometheus.Counter
	cascades          prometheus.Counter
	sessionsShifted   prometheus.Counter
	archives          *prometheus.CounterVec
	stateTransitions  *prometheus.CounterVec

	cacheHitCount        uint64
	cacheMissCount       uint64
	requestCount         uint64
	requestDurationTotal uint64
	sessionsCount        uint64
	horizonCount         uint64
	cascadeCount         uint64
	batchFailureCount    uint64
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

	batchDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aula_batch_duration_seconds",
		Help:    "Duration of transactional aula batches",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	batchFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aula_batch_failures_total",
		Help: "Aula batches that failed to commit",
	}, []string{"operation"})

	sessionsGenerated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aula_sessions_generated_total",
		Help: "Sessions produced by the generator and persisted",
	})

	horizonExhausted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aula_schedule_horizon_exhausted_total",
		Help: "Schedules that ran out of search horizon before placing every session",
	})

	cascades := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aula_reschedule_cascades_total",
		Help: "Committed session reschedules",
	})

	sessionsShifted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "aula_sessions_shifted_total",
		Help: "Sessions moved by reschedule cascades",
	})

	archives := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aula_archives_total",
		Help: "Archived cycles by kind",
	}, []string{"kind"})

	stateTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "aula_state_transitions_total",
		Help: "Derived state changes written by the refresher",
	}, []string{"from", "to"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheHits, cacheMisses,
		batchDuration, batchFailures, sessionsGenerated, horizonExhausted, cascades, sessionsShifted, archives, stateTransitions, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:          registry,
		handler:           handler,
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		cacheLatency:      cacheLatency,
		cacheWrite:        cacheWrite,
		cacheHitRatio:     cacheHitRatio,
		cacheHits:         cacheHits,
		cacheMisses:       cacheMisses,
		batchDuration:     batchDuration,
		batchFailures:     batchFailures,
		sessionsGenerated: sessionsGenerated,
		horizonExhausted:  horizonExhausted,
		cascades:          cascades,
		sessionsShifted:   sessionsShifted,
		archives:          archives,
		stateTransitions:  stateTransitions,
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

// ObserveBatch records how long a transactional batch took and whether it failed.
func (m *MetricsService) ObserveBatch(operation string, duration time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.batchDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if failed {
		m.batchFailures.WithLabelValues(operation).Inc()
		atomic.AddUint64(&m.batchFailureCount, 1)
	}
}

// AddSessionsGenerated counts persisted generator output.
func (m *MetricsService) AddSessionsGenerated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sessionsGenerated.Add(float64(n))
	atomic.AddUint64(&m.sessionsCount, uint64(n))
}

// IncHorizonExhausted counts schedules that could not be fully placed.
func (m *MetricsService) IncHorizonExhausted() {
	if m == nil {
		return
	}
	m.horizonExhausted.Inc()
	atomic.AddUint64(&m.horizonCount, 1)
}

// RecordCascade counts a committed reschedule and how many sessions it touched.
func (m *MetricsService) RecordCascade(shifted int) {
	if m == nil {
		return
	}
	m.cascades.Inc()
	if shifted > 0 {
		m.sessionsShifted.Add(float64(shifted))
	}
	atomic.AddUint64(&m.cascadeCount, 1)
}

// RecordArchive counts an archived cycle; kind is "advance" or "closure".
func (m *MetricsService) RecordArchive(kind string) {
	if m == nil {
		return
	}
	m.archives.WithLabelValues(kind).Inc()
}

// RecordStateTransition counts a derived state write.
func (m *MetricsService) RecordStateTransition(from, to models.AulaState) {
	if m == nil {
		return
	}
	m.stateTransitions.WithLabelValues(string(from), string(to)).Inc()
}

// Snapshot returns aggregated metrics suitable for the metrics summary endpoint.
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
		SessionsGenerated:        atomic.LoadUint64(&m.sessionsCount),
		HorizonExhausted:         atomic.LoadUint64(&m.horizonCount),
		CascadesApplied:          atomic.LoadUint64(&m.cascadeCount),
		BatchFailures:            atomic.LoadUint64(&m.batchFailureCount),
		Goroutines:               runtime.NumGoroutine(),
		GeneratedAt:              time.Now().UTC(),
	}
}
