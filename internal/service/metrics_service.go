package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the scheduling
// engine on a private registry.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	previewTotal    *prometheus.CounterVec
	commitTotal     *prometheus.CounterVec
	conflictTotal   *prometheus.CounterVec
	mutationTotal   *prometheus.CounterVec
	resolutionTotal *prometheus.CounterVec
	coverageGap     prometheus.Counter
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers the collectors.
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

	previewTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_previews_total",
		Help: "Distribution plan previews generated, by strategy",
	}, []string{"strategy"})

	commitTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_commits_total",
		Help: "Plan commit attempts, by outcome",
	}, []string{"outcome"})

	conflictTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_conflicts_detected_total",
		Help: "Conflicts reported by the detector, by kind and severity",
	}, []string{"kind", "severity"})

	mutationTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_slot_mutations_total",
		Help: "Applied slot lifecycle transitions, by operation",
	}, []string{"operation"})

	resolutionTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "absence_resolutions_total",
		Help: "Absence resolver runs, by mode",
	}, []string{"mode"})

	coverageGap := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "absence_uncovered_occurrences_total",
		Help: "Slot occurrences left uncovered by resolver runs",
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

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, previewTotal, commitTotal,
		conflictTotal, mutationTotal, resolutionTotal, coverageGap,
		cacheHitRatio, cacheHits, cacheMisses, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		previewTotal:    previewTotal,
		commitTotal:     commitTotal,
		conflictTotal:   conflictTotal,
		mutationTotal:   mutationTotal,
		resolutionTotal: resolutionTotal,
		coverageGap:     coverageGap,
		cacheHitRatio:   cacheHitRatio,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
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

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordPreview counts a generated plan preview.
func (m *MetricsService) RecordPreview(strategy string) {
	if m == nil {
		return
	}
	m.previewTotal.WithLabelValues(strategy).Inc()
}

// RecordCommit counts a commit attempt. Outcome is committed, stale or conflict.
func (m *MetricsService) RecordCommit(outcome string) {
	if m == nil {
		return
	}
	m.commitTotal.WithLabelValues(outcome).Inc()
}

// RecordConflict counts one detected conflict.
func (m *MetricsService) RecordConflict(kind, severity string) {
	if m == nil {
		return
	}
	m.conflictTotal.WithLabelValues(kind, severity).Inc()
}

// RecordSlotMutation counts an applied lifecycle transition.
func (m *MetricsService) RecordSlotMutation(operation string) {
	if m == nil {
		return
	}
	m.mutationTotal.WithLabelValues(operation).Inc()
}

// RecordAbsenceResolution counts a resolver run and its coverage gap.
func (m *MetricsService) RecordAbsenceResolution(mode string, covered, uncovered int) {
	if m == nil {
		return
	}
	m.resolutionTotal.WithLabelValues(mode).Inc()
	if uncovered > 0 {
		m.coverageGap.Add(float64(uncovered))
	}
}

// RecordCacheOperation records cache hit/miss metrics and updates the ratio.
func (m *MetricsService) RecordCacheOperation(hit bool) {
	if m == nil {
		return
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
