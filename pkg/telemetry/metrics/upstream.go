package metrics

import (
	"strconv"
	"time"

	"mercator-hq/relay/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// UpstreamMetrics tracks calls to the chat-completion endpoint.
type UpstreamMetrics struct {
	requestsTotal *prometheus.CounterVec
	latency       prometheus.Histogram
}

// NewUpstreamMetrics creates and registers upstream metrics.
func NewUpstreamMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *UpstreamMetrics {
	um := &UpstreamMetrics{
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "upstream_requests_total",
				Help:      "Total number of upstream calls by HTTP status (\"none\" when unreachable)",
			},
			[]string{"status"},
		),

		latency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "upstream_latency_seconds",
				Help:      "Latency of upstream calls in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
		),
	}

	registry.MustRegister(um.requestsTotal, um.latency)
	return um
}

// Record records one upstream call.
func (um *UpstreamMetrics) Record(status int, latency time.Duration) {
	label := "none"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	um.requestsTotal.WithLabelValues(label).Inc()
	if status > 0 {
		um.latency.Observe(latency.Seconds())
	}
}
