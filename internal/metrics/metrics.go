// Package metrics exposes Prometheus collectors for the service.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Business metrics
	FaresCalculated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fares_calculated_total",
			Help: "Total number of fare breakdowns computed",
		},
		[]string{"vehicle_tier", "result"},
	)

	FareTotal = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fare_total_amount",
			Help:    "Distribution of quoted ride totals in major units",
			Buckets: []float64{5, 10, 20, 35, 50, 75, 100, 150},
		},
		[]string{"vehicle_tier"},
	)

	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "status_transitions_total",
			Help: "Ride and payment status transitions by outcome",
		},
		[]string{"machine", "to", "result"},
	)

	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rabbitmq_messages_published_total",
			Help: "Total number of messages published to RabbitMQ",
		},
		[]string{"exchange", "status"},
	)
)

// RecordHTTPMetrics records HTTP request metrics.
func RecordHTTPMetrics(method, path string, statusCode int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordFare records a fare computation.
func RecordFare(tier string, total float64, err error) {
	if err != nil {
		FaresCalculated.WithLabelValues(tier, "error").Inc()
		return
	}
	FaresCalculated.WithLabelValues(tier, "ok").Inc()
	FareTotal.WithLabelValues(tier).Observe(total)
}

// RecordTransition records an attempted ride or payment status change.
func RecordTransition(machine, to string, err error) {
	result := "applied"
	if err != nil {
		result = "rejected"
	}
	StatusTransitions.WithLabelValues(machine, to, result).Inc()
}

// RecordPublish records a RabbitMQ publish attempt.
func RecordPublish(exchange string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	EventsPublished.WithLabelValues(exchange, status).Inc()
}
