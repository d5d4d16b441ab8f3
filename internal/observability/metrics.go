package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	apiRequestsTotal      *prometheus.CounterVec
	apiLatencySeconds     *prometheus.HistogramVec
	apiErrorsTotal        *prometheus.CounterVec
	dispatchTotal         *prometheus.CounterVec
	dispatchDuration      prometheus.Histogram
	webhookTotal          *prometheus.CounterVec
	registrationsTotal    prometheus.Counter
	themeCacheLookupTotal *prometheus.CounterVec
	uploadRejectedTotal   *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used across the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "api_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "api_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		dispatchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_dispatch_total",
			Help: "Outbound grading workflow dispatches by outcome.",
		}, []string{"outcome"})

		dispatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "grading_dispatch_duration_seconds",
			Help:    "Round trip duration of grading workflow dispatches.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		})

		webhookTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_webhook_total",
			Help: "Grading callbacks received by outcome.",
		}, []string{"outcome"})

		registrationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "accounts_registered_total",
			Help: "Number of accounts created.",
		})

		themeCacheLookupTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "theme_cache_lookups_total",
			Help: "Theme list cache lookups by result.",
		}, []string{"result"})

		uploadRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "essay_upload_rejected_total",
			Help: "Essay file uploads rejected by reason.",
		}, []string{"reason"})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			dispatchTotal,
			dispatchDuration,
			webhookTotal,
			registrationsTotal,
			themeCacheLookupTotal,
			uploadRejectedTotal,
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

// APIErrors exposes the counter for API error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// DispatchTotal counts grading dispatches labelled by outcome.
func DispatchTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return dispatchTotal
}

// DispatchDuration observes grading dispatch round trips.
func DispatchDuration() prometheus.Histogram {
	RegisterMetrics()
	return dispatchDuration
}

// WebhookTotal counts grading callbacks labelled by outcome.
func WebhookTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return webhookTotal
}

// RegistrationsTotal counts created accounts.
func RegistrationsTotal() prometheus.Counter {
	RegisterMetrics()
	return registrationsTotal
}

// ThemeCacheLookups counts theme cache hits and misses.
func ThemeCacheLookups() *prometheus.CounterVec {
	RegisterMetrics()
	return themeCacheLookupTotal
}

// UploadRejected counts rejected essay files labelled by reason.
func UploadRejected() *prometheus.CounterVec {
	RegisterMetrics()
	return uploadRejectedTotal
}
