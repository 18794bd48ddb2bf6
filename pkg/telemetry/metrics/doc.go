// Package metrics exposes the relay's Prometheus metrics.
//
// NewCollector registers every metric with a private registry and Handler
// serves it:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	mux.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// With the default namespace the exported names are:
//
//   - relay_requests_total{outcome,error_kind}
//   - relay_request_duration_seconds{outcome}
//   - relay_request_size_bytes, relay_response_size_bytes
//   - relay_upstream_requests_total{status}, relay_upstream_latency_seconds
//   - relay_audit_records_{written,dropped,pruned}_total, relay_audit_errors_total{operation}
package metrics
