// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "assessment_sessions_created_total",
			Help: "Total number of assessment sessions issued",
		},
	)

	PhaseTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessment_phase_completed_total",
			Help: "Total number of completed assessment phases",
		},
		[]string{"phase"},
	)

	OperationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assessment_operation_failures_total",
			Help: "Total number of failed orchestrator operations",
		},
		[]string{"operation", "kind", "code"},
	)

	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assessment_upstream_duration_seconds",
			Help:    "Duration of calls to extraction, analysis and recommendation services",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"service", "operation", "outcome"},
	)

	AnalysisInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "assessment_analysis_in_flight",
			Help: "Number of analysis calls currently running",
		},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

// ObserveUpstream records the duration and outcome of an external call started at start.
func ObserveUpstream(service, operation string, start time.Time, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	UpstreamDuration.WithLabelValues(service, operation, outcome).Observe(time.Since(start).Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
