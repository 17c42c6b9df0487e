// Package metrics holds the Prometheus collectors of the API and worker processes.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Grid build latency in seconds
	GridBuildDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "proforma_grid_build_duration_seconds",
			Help:    "Time to build a cashflow grid from deal rows",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"status"},
	)

	// Distributions recorded, by event source and strategy
	DistributionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waterfall_distributions_total",
			Help: "Total number of capital-return events distributed",
		},
		[]string{"source", "strategy"},
	)

	// Amount distributed, by event source
	DistributedAmount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waterfall_distributed_amount_total",
			Help: "Total currency amount paid out to investors",
		},
		[]string{"source"},
	)

	// Events rejected before or during distribution
	EventsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waterfall_events_rejected_total",
			Help: "Total number of capital-return events rejected",
		},
		[]string{"reason"},
	)

	// Preferred-return accrual runs per project
	AccrualRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "waterfall_accrual_runs_total",
			Help: "Total number of project accrual runs",
		},
		[]string{"status"},
	)

	// MQ consume latency in milliseconds
	MQConsumeLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mq_consume_latency_ms",
			Help:    "MQ message consumption latency in milliseconds",
			Buckets: prometheus.ExponentialBuckets(10, 2, 10),
		},
		[]string{"routing_key", "queue"},
	)

	// HTTP request latency in seconds
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
		},
		[]string{"method", "path", "status"},
	)
)

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordGridBuild observes one grid build.
func RecordGridBuild(duration time.Duration, err error) {
	GridBuildDuration.WithLabelValues(status(err)).Observe(duration.Seconds())
}

// RecordDistribution counts a recorded distribution and its amount.
func RecordDistribution(source, strategy string, amount float64) {
	DistributionsTotal.WithLabelValues(source, strategy).Inc()
	DistributedAmount.WithLabelValues(source).Add(amount)
}

// RecordRejected counts a rejected event.
func RecordRejected(reason string) {
	EventsRejected.WithLabelValues(reason).Inc()
}

// RecordAccrual counts one project accrual.
func RecordAccrual(err error) {
	AccrualRuns.WithLabelValues(status(err)).Inc()
}

// RecordMQConsumeLatency observes one consumed message.
func RecordMQConsumeLatency(routingKey, queue string, duration time.Duration) {
	MQConsumeLatency.WithLabelValues(routingKey, queue).Observe(float64(duration.Milliseconds()))
}

// RecordHTTPRequest observes one served request.
func RecordHTTPRequest(method, path string, statusCode int, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, strconv.Itoa(statusCode)).Observe(duration.Seconds())
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
