package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	jobmetrics "github.com/ksfraser/ksf-reports/internal/jobs"
)

// Metrics collects the Prometheus metrics of the service.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	reportRuns      *prometheus.CounterVec
	reportDuration  *prometheus.HistogramVec
	reportQueries   *prometheus.HistogramVec
	reportCache     *prometheus.CounterVec
	unbalanced      *prometheus.CounterVec
	jobs            *jobmetrics.Metrics
}

// NewMetrics initialises a dedicated registry with HTTP, report and job metrics.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ksf_http_requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ksf_http_request_duration_seconds",
		Help:    "HTTP request duration per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ksf_report_runs_total",
		Help: "Report runs by report name and status.",
	}, []string{"report", "status"})
	reportDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ksf_report_duration_seconds",
		Help:    "Report assembly duration.",
		Buckets: prometheus.DefBuckets,
	}, []string{"report"})
	queries := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ksf_report_ledger_queries",
		Help:    "Ledger queries issued per report run.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{"report"})
	cache := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ksf_report_cache_total",
		Help: "Report cache lookups by outcome.",
	}, []string{"report", "result"})
	unbalanced := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ksf_unbalanced_transactions_total",
		Help: "Unbalanced ledger transactions detected, by source.",
	}, []string{"source"})
	registry.MustRegister(requests, duration, runs, reportDuration, queries, cache, unbalanced)
	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:   requests,
		requestDuration: duration,
		reportRuns:      runs,
		reportDuration:  reportDuration,
		reportQueries:   queries,
		reportCache:     cache,
		unbalanced:      unbalanced,
		jobs:            jobmetrics.NewMetrics(registry),
	}
}

// Handler returns the http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware records metrics for every HTTP request.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveReport records one report run.
func (m *Metrics) ObserveReport(report string, err error, elapsed time.Duration, queries int64) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.reportRuns.WithLabelValues(report, status).Inc()
	m.reportDuration.WithLabelValues(report).Observe(elapsed.Seconds())
	if err == nil {
		m.reportQueries.WithLabelValues(report).Observe(float64(queries))
	}
}

// ObserveCache records a report cache hit or miss.
func (m *Metrics) ObserveCache(report string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.reportCache.WithLabelValues(report, result).Inc()
}

// AddUnbalanced counts unbalanced transactions found by source.
func (m *Metrics) AddUnbalanced(source string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.unbalanced.WithLabelValues(source).Add(float64(count))
}

// Jobs exposes the background job metrics sharing this registry.
func (m *Metrics) Jobs() *jobmetrics.Metrics {
	if m == nil {
		return nil
	}
	return m.jobs
}

// Registerer exposes the registry for custom metric registration.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
