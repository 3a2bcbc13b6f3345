package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce          sync.Once
	submissionsTotal      *prometheus.CounterVec
	gradingLatencySeconds *prometheus.HistogramVec
	serviceFailuresTotal  *prometheus.CounterVec
	gradebookSyncsTotal   *prometheus.CounterVec
	httpRequestsTotal     *prometheus.CounterVec
	httpLatencySeconds    *prometheus.HistogramVec
)

// RegisterMetrics initialises the Prometheus collectors used by the grading
// relay.
func RegisterMetrics() {
	registerOnce.Do(func() {
		submissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "grading_submissions_total",
			Help: "Total number of submissions handled by the grading relay.",
		}, []string{"outcome"})

		gradingLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "grading_latency_seconds",
			Help:    "Latency distribution for exercise service grading calls.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}, []string{"mode"})

		serviceFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "exercise_service_failures_total",
			Help: "Total number of recorded exercise service failures.",
		}, []string{"kind"})

		gradebookSyncsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gradebook_syncs_total",
			Help: "Total number of gradebook write attempts.",
		}, []string{"status"})

		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_latency_seconds",
			Help:    "Latency distribution for served HTTP requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}, []string{"method", "route"})

		prometheus.MustRegister(
			submissionsTotal,
			gradingLatencySeconds,
			serviceFailuresTotal,
			gradebookSyncsTotal,
			httpRequestsTotal,
			httpLatencySeconds,
		)
	})
}

// Submissions exposes the counter for relayed submissions.
func Submissions() *prometheus.CounterVec {
	RegisterMetrics()
	return submissionsTotal
}

// GradingLatency exposes the latency histogram for grading calls.
func GradingLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return gradingLatencySeconds
}

// ServiceFailures exposes the counter for exercise service failures.
func ServiceFailures() *prometheus.CounterVec {
	RegisterMetrics()
	return serviceFailuresTotal
}

// GradebookSyncs exposes the counter for gradebook write attempts.
func GradebookSyncs() *prometheus.CounterVec {
	RegisterMetrics()
	return gradebookSyncsTotal
}

// HTTPRequests exposes the counter for served HTTP requests.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the latency histogram for served HTTP requests.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}
