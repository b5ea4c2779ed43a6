// Package metrics exposes Prometheus collectors for the coordinator service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	submissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrapeq_submissions_total",
			Help: "Total scrape submissions, labeled by outcome (created or reused).",
		},
		[]string{"outcome"},
	)

	jobsFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrapeq_jobs_finished_total",
			Help: "Total jobs moved to a terminal state, labeled by status.",
		},
		[]string{"status"},
	)

	leaseConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "scrapeq_lease_conflicts_total",
			Help: "Total lease attempts that lost the claim race.",
		},
	)

	eventsRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrapeq_events_recorded_total",
			Help: "Total extracted events recorded, labeled by kind (created or updated).",
		},
		[]string{"kind"},
	)

	collaboratorAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrapeq_collaborator_attempts_total",
			Help: "Total collaborator calls, labeled by collaborator and outcome.",
		},
		[]string{"collaborator", "outcome"},
	)

	processingDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scrapeq_processing_duration_seconds",
			Help:    "Histogram of worker-reported extraction durations.",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600},
		},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scrapeq_http_requests_total",
			Help: "Total HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scrapeq_http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"method", "route"},
	)
)

// SanitizeDomain reduces a domain or URL to a lowercase hostname label.
// It returns "unknown" for values that do not parse, keeping label
// cardinality bounded.
func SanitizeDomain(raw string) string {
	if raw == "" {
		return "unknown"
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveSubmission counts a submission by outcome ("created" or "reused").
func ObserveSubmission(outcome string) {
	submissionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveJobFinished counts a terminal transition by status.
func ObserveJobFinished(status string) {
	jobsFinishedTotal.WithLabelValues(status).Inc()
}

// ObserveLeaseConflict counts a lost lease race.
func ObserveLeaseConflict() {
	leaseConflictsTotal.Inc()
}

// ObserveEventRecorded counts an event upsert by kind ("created" or "updated").
func ObserveEventRecorded(kind string) {
	eventsRecordedTotal.WithLabelValues(kind).Inc()
}

// ObserveCollaboratorAttempt counts one collaborator call and its outcome.
func ObserveCollaboratorAttempt(collaborator string, ok bool) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	collaboratorAttemptsTotal.WithLabelValues(collaborator, outcome).Inc()
}

// ObserveProcessingDuration records a worker-reported extraction duration.
func ObserveProcessingDuration(d time.Duration) {
	processingDurationSeconds.Observe(d.Seconds())
}

// ObserveHTTPRequest records one served HTTP request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
