package metrics

import (
	"time"

	"mercator-hq/relay/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Collector owns the relay's Prometheus metrics and the registry they live in.
//
// All recording methods are safe on a nil *Collector so callers that run
// without metrics do not need to branch.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	relayMetrics    *RelayMetrics
	upstreamMetrics *UpstreamMetrics
	auditMetrics    *AuditMetrics
}

// NewCollector creates a collector with the given configuration and
// registry. A nil registry gets a fresh private one with the Go runtime and
// process collectors attached.
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	if cfg.Namespace == "" {
		cfg.Namespace = config.DefaultMetricsNamespace
	}

	return &Collector{
		config:          cfg,
		registry:        registry,
		relayMetrics:    NewRelayMetrics(cfg, registry),
		upstreamMetrics: NewUpstreamMetrics(cfg, registry),
		auditMetrics:    NewAuditMetrics(cfg, registry),
	}
}

// Registry returns the registry metrics are registered with.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// RecordRelay records the outcome of one inbound call.
//
// outcome is "success", "error" or "preflight"; errorKind is empty unless
// outcome is "error".
func (c *Collector) RecordRelay(outcome, errorKind string, duration time.Duration, requestBytes, responseBytes int) {
	if c == nil {
		return
	}
	c.relayMetrics.Record(outcome, errorKind, duration, requestBytes, responseBytes)
}

// RecordUpstream records one upstream exchange. status is 0 when no
// response was received.
func (c *Collector) RecordUpstream(status int, latency time.Duration) {
	if c == nil {
		return
	}
	c.upstreamMetrics.Record(status, latency)
}

// RecordAuditWritten counts records persisted by the audit recorder.
func (c *Collector) RecordAuditWritten(n int) {
	if c == nil {
		return
	}
	c.auditMetrics.written.Add(float64(n))
}

// RecordAuditDropped counts records dropped because the audit buffer was full.
func (c *Collector) RecordAuditDropped() {
	if c == nil {
		return
	}
	c.auditMetrics.dropped.Inc()
}

// RecordAuditError counts failed audit store operations.
func (c *Collector) RecordAuditError(operation string) {
	if c == nil {
		return
	}
	c.auditMetrics.errors.WithLabelValues(operation).Inc()
}

// RecordAuditPruned counts records removed by retention.
func (c *Collector) RecordAuditPruned(n int64) {
	if c == nil {
		return
	}
	c.auditMetrics.pruned.Add(float64(n))
}
