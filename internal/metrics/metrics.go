package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studio_http_requests_total",
		Help: "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "code"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "studio_http_request_duration_seconds",
		Help:    "HTTP request latency by method and route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	BookingOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studio_booking_outcomes_total",
		Help: "Booking requests by outcome (confirmed, waitlisted, already_booked, ...).",
	}, []string{"outcome"})

	ClassSyncs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "studio_class_sync_messages_total",
		Help: "Class replica sync messages by result.",
	}, []string{"result"})
)

func RecordBookingOutcome(outcome string) {
	BookingOutcomes.WithLabelValues(outcome).Inc()
}
