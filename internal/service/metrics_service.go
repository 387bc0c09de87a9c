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

// Checkout outcomes recorded by RecordCheckout.
const (
	CheckoutSucceeded = "succeeded"
	CheckoutDeclined  = "declined"
	CheckoutFailed    = "failed"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry            *prometheus.Registry
	handler             http.Handler
	requestDuration     *prometheus.HistogramVec
	requestTotal        *prometheus.CounterVec
	cacheLatency        *prometheus.HistogramVec
	cacheWrite          *prometheus.HistogramVec
	cacheHitRatio       prometheus.Gauge
	cacheLookups        *prometheus.CounterVec
	enrollmentRequests  *prometheus.CounterVec
	enrollmentDecisions *prometheus.CounterVec
	checkouts           *prometheus.CounterVec

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "area", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "area", "status"})

	cacheLatency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cache_read_seconds",
		Help:    "Latency of cache reads by key family",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5},
	}, []string{"family"})

	cacheWrite := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency of cache writes by key family",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5},
	}, []string{"family"})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Cache lookups by key family and result",
	}, []string{"family", "result"})

	enrollmentRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enrollment_requests_total",
		Help: "Enrollment requests by whether a new enrollment was created",
	}, []string{"created"})

	enrollmentDecisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enrollment_decisions_total",
		Help: "Enrollment decisions by resulting status",
	}, []string{"status"})

	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "checkouts_total",
		Help: "Checkout attempts by outcome",
	}, []string{"outcome"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio, cacheLookups,
		enrollmentRequests, enrollmentDecisions, checkouts, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:            registry,
		handler:             handler,
		requestDuration:     requestDuration,
		requestTotal:        requestTotal,
		cacheLatency:        cacheLatency,
		cacheWrite:          cacheWrite,
		cacheHitRatio:       cacheHitRatio,
		cacheLookups:        cacheLookups,
		enrollmentRequests:  enrollmentRequests,
		enrollmentDecisions: enrollmentDecisions,
		checkouts:           checkouts,
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

// Registry returns the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics. route is the gin route template, area the API section it belongs to.
func (m *MetricsService) ObserveHTTPRequest(method, route, area string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, route, area, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, route, area, labelStatus).Inc()
}

// RecordCacheOperation counts a cache lookup for a key family and updates the overall hit ratio.
func (m *MetricsService) RecordCacheOperation(family string, hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	family = cacheFamilyLabel(family)
	m.cacheLatency.WithLabelValues(family).Observe(duration.Seconds())
	if hit {
		m.cacheLookups.WithLabelValues(family, "hit").Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheLookups.WithLabelValues(family, "miss").Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration of a cache write for a key family.
func (m *MetricsService) ObserveCacheWrite(family string, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.WithLabelValues(cacheFamilyLabel(family)).Observe(duration.Seconds())
}

func cacheFamilyLabel(family string) string {
	if family == "" {
		return "other"
	}
	return family
}

// RecordEnrollmentRequest counts student join requests.
func (m *MetricsService) RecordEnrollmentRequest(created bool) {
	if m == nil {
		return
	}
	m.enrollmentRequests.WithLabelValues(fmt.Sprintf("%t", created)).Inc()
}

// RecordEnrollmentDecision counts approvals and rejections.
func (m *MetricsService) RecordEnrollmentDecision(status string) {
	if m == nil {
		return
	}
	m.enrollmentDecisions.WithLabelValues(status).Inc()
}

// RecordCheckout counts checkout attempts by outcome.
func (m *MetricsService) RecordCheckout(outcome string) {
	if m == nil {
		return
	}
	m.checkouts.WithLabelValues(outcome).Inc()
}
