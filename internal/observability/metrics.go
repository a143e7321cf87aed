package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce         sync.Once
	apiRequestsTotal     *prometheus.CounterVec
	apiLatencySeconds    *prometheus.HistogramVec
	apiErrorsTotal       *prometheus.CounterVec
	transitionsTotal     *prometheus.CounterVec
	statusEventsTotal    *prometheus.CounterVec
	streamClientsActive  *prometheus.GaugeVec
	uploadRequestsTotal  *prometheus.CounterVec
	uploadRejectedTotal  *prometheus.CounterVec
	reportCacheLookups   *prometheus.CounterVec
	searchIndexFailures  prometheus.Counter
	dependencyUp         *prometheus.GaugeVec
	rateLimitedTotal     *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promptlab_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "promptlab_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 15.0, 60.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promptlab_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		transitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promptlab_project_transitions_total",
			Help: "Committed project lifecycle transitions.",
		}, []string{"action", "to"})

		statusEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promptlab_status_events_total",
			Help: "Status change events delivered to local subscribers.",
		}, []string{"source"})

		streamClientsActive = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "promptlab_stream_clients_active",
			Help: "Connected status stream clients.",
		}, []string{"transport"})

		uploadRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promptlab_upload_requests_total",
			Help: "Attachment uploads by outcome.",
		}, []string{"outcome"})

		uploadRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promptlab_upload_rejected_total",
			Help: "Attachment uploads rejected before storage.",
		}, []string{"reason"})

		reportCacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promptlab_report_cache_lookups_total",
			Help: "Class report cache lookups by result.",
		}, []string{"result"})

		searchIndexFailures = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "promptlab_search_index_failures_total",
			Help: "Search index updates that failed.",
		})

		dependencyUp = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "promptlab_dependency_up",
			Help: "Result of the last health check per dependency (1 up, 0 down).",
		}, []string{"dependency"})

		rateLimitedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "promptlab_rate_limited_total",
			Help: "Requests rejected by a rate limit policy.",
		}, []string{"policy"})

		prometheus.MustRegister(
			apiRequestsTotal, apiLatencySeconds, apiErrorsTotal,
			transitionsTotal, statusEventsTotal, streamClientsActive,
			uploadRequestsTotal, uploadRejectedTotal,
			reportCacheLookups, searchIndexFailures,
			dependencyUp, rateLimitedTotal,
		)
	})
}

// APIRequests exposes the counter for API requests.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the latency histogram for API requests.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// ProjectTransitions counts committed lifecycle transitions.
func ProjectTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return transitionsTotal
}

// StatusEvents counts status change events fanned out locally.
func StatusEvents() *prometheus.CounterVec {
	RegisterMetrics()
	return statusEventsTotal
}

// StreamClientsActive tracks open SSE and websocket subscribers.
func StreamClientsActive() *prometheus.GaugeVec {
	RegisterMetrics()
	return streamClientsActive
}

// UploadRequests counts attachment uploads.
func UploadRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRequestsTotal
}

// UploadRejected counts uploads refused by validation.
func UploadRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRejectedTotal
}

// ReportCacheLookups counts report cache hits and misses.
func ReportCacheLookups() *prometheus.CounterVec {
	RegisterMetrics()
	return reportCacheLookups
}

// SearchIndexFailures counts failed search index writes.
func SearchIndexFailures() prometheus.Counter {
	RegisterMetrics()
	return searchIndexFailures
}

// DependencyUp records health check outcomes.
func DependencyUp() *prometheus.GaugeVec {
	RegisterMetrics()
	return dependencyUp
}

// RateLimited counts requests refused by a limiter policy.
func RateLimited() *prometheus.CounterVec {
	RegisterMetrics()
	return rateLimitedTotal
}
