// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AssessmentsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reputation_assessments_submitted_total",
			Help: "Total number of attendance assessments accepted",
		},
		[]string{"assessment_type"},
	)

	AssessmentsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reputation_assessments_rejected_total",
			Help: "Total number of attendance assessments rejected",
		},
		[]string{"error_code"},
	)

	BookingGateDenials = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reputation_booking_gate_denials_total",
			Help: "Total number of booking eligibility denials",
		},
	)

	ProfileCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reputation_profile_cache_requests_total",
			Help: "Reputation profile cache lookups by result",
		},
		[]string{"result"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "Duration of HTTP requests in seconds",
		},
		[]string{"method", "route", "status"},
	)
)
