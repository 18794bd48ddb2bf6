package metrics

import (
	"mercator-hq/relay/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// AuditMetrics tracks the audit trail.
type AuditMetrics struct {
	written prometheus.Counter
	dropped prometheus.Counter
	pruned  prometheus.Counter
	errors  *prometheus.CounterVec
}

// NewAuditMetrics creates and registers audit metrics.
func NewAuditMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *AuditMetrics {
	am := &AuditMetrics{
		written: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "audit_records_written_total",
			Help:      "Audit records persisted",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "audit_records_dropped_total",
			Help:      "Audit records dropped because the write buffer was full",
		}),
		pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "audit_records_pruned_total",
			Help:      "Audit records deleted by retention",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      "audit_errors_total",
			Help:      "Failed audit store operations",
		}, []string{"operation"}),
	}

	registry.MustRegister(am.written, am.dropped, am.pruned, am.errors)
	return am
}
