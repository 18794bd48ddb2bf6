package metrics

import (
	"time"

	"mercator-hq/relay/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// RelayMetrics tracks inbound relay calls.
//
// Metrics:
//   - relay_requests_total: calls by outcome and error kind
//   - relay_request_duration_seconds: end-to-end handler duration
//   - relay_request_size_bytes / relay_response_size_bytes: body sizes
type RelayMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestSize     prometheus.Histogram
	responseSize    prometheus.Histogram
}

// NewRelayMetrics creates and registers relay metrics with the provided registry.
func NewRelayMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *RelayMetrics {
	rm := &RelayMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "requests_total",
				Help:      "Total number of inbound relay calls",
			},
			[]string{"outcome", "error_kind"},
		),

		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_duration_seconds",
				Help:      "Duration of inbound relay calls in seconds",
				// Chat completions take from a few hundred ms to tens of seconds.
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"outcome"},
		),

		requestSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "request_size_bytes",
				Help:      "Size of inbound request bodies in bytes",
				Buckets:   prometheus.ExponentialBuckets(256, 4, 8), // 256B to 4MB
			},
		),

		responseSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "response_size_bytes",
				Help:      "Size of relayed response bodies in bytes",
				Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
			},
		),
	}

	registry.MustRegister(
		rm.requestsTotal,
		rm.requestDuration,
		rm.requestSize,
		rm.responseSize,
	)

	return rm
}

// Record records one inbound call.
func (rm *RelayMetrics) Record(outcome, errorKind string, duration time.Duration, requestBytes, responseBytes int) {
	rm.requestsTotal.WithLabelValues(outcome, errorKind).Inc()
	rm.requestDuration.WithLabelValues(outcome).Observe(duration.Seconds())

	// Preflights carry no body worth measuring.
	if outcome == "preflight" {
		return
	}
	rm.requestSize.Observe(float64(requestBytes))
	rm.responseSize.Observe(float64(responseBytes))
}
