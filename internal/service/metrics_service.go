package service

import (
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP layer,
// the course cache and catalog domain events.
type MetricsService struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	cacheLatency      prometheus.Histogram
	cacheWrite        prometheus.Histogram
	cacheHitRatio     prometheus.Gauge
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	enrollments       *prometheus.CounterVec
	courseTransitions *prometheus.CounterVec
	moduleCompletions *prometheus.CounterVec
	reviewsUpserted   prometheus.Counter
	mediaUploads      *prometheus.CounterVec
	persistenceErrors *prometheus.CounterVec

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	m := &MetricsService{
		registry: registry,
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		cacheLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_latency_seconds",
			Help:    "Latency for cache lookups",
			Buckets: prometheus.DefBuckets,
		}),
		cacheWrite: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cache_write_seconds",
			Help:    "Latency for cache set operations",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHitRatio: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cache_hit_ratio",
			Help: "Ratio of cache hits to total cache lookups",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total cache hits",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total cache misses",
		}),
		enrollments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_enrollments_total",
			Help: "Enrollment attempts by outcome",
		}, []string{"outcome"}),
		courseTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_course_transitions_total",
			Help: "Course lifecycle transitions by action and outcome",
		}, []string{"action", "outcome"}),
		moduleCompletions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_module_completion_events_total",
			Help: "Module completion events by direction",
		}, []string{"completed"}),
		reviewsUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "catalog_reviews_upserted_total",
			Help: "Reviews created or replaced",
		}),
		mediaUploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_media_uploads_total",
			Help: "Media uploads by kind and outcome",
		}, []string{"kind", "outcome"}),
		persistenceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "catalog_persistence_errors_total",
			Help: "Store failures surfaced to callers by operation",
		}, []string{"operation"}),
	}

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(
		m.requestDuration, m.requestTotal,
		m.cacheLatency, m.cacheWrite,
		m.cacheHitRatio, m.cacheHits, m.cacheMisses,
		m.enrollments, m.courseTransitions, m.moduleCompletions, m.reviewsUpserted,
		m.mediaUploads, m.persistenceErrors, goroutines,
	)
	m.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	return m
}

// Registry exposes the underlying registry.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	total := hits + atomic.LoadUint64(&m.cacheMissCount)
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordEnrollment counts an enrollment attempt, e.g. "created" or "duplicate".
func (m *MetricsService) RecordEnrollment(outcome string) {
	if m == nil {
		return
	}
	m.enrollments.WithLabelValues(outcome).Inc()
}

// RecordCourseTransition counts a lifecycle command.
func (m *MetricsService) RecordCourseTransition(action, outcome string) {
	if m == nil {
		return
	}
	m.courseTransitions.WithLabelValues(action, outcome).Inc()
}

// RecordModuleCompletion counts a mark or unmark event.
func (m *MetricsService) RecordModuleCompletion(completed bool) {
	if m == nil {
		return
	}
	m.moduleCompletions.WithLabelValues(strconv.FormatBool(completed)).Inc()
}

// RecordReviewUpsert counts a stored review.
func (m *MetricsService) RecordReviewUpsert() {
	if m == nil {
		return
	}
	m.reviewsUpserted.Inc()
}

// RecordMediaUpload counts an upload by kind ("thumbnail", "video").
func (m *MetricsService) RecordMediaUpload(kind, outcome string) {
	if m == nil {
		return
	}
	m.mediaUploads.WithLabelValues(kind, outcome).Inc()
}

// RecordPersistenceError counts a store failure for operation.
func (m *MetricsService) RecordPersistenceError(operation string) {
	if m == nil {
		return
	}
	m.persistenceErrors.WithLabelValues(operation).Inc()
}
