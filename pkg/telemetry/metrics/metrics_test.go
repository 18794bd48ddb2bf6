package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mercator-hq/relay/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func testConfig() *config.MetricsConfig {
	return &config.MetricsConfig{
		Enabled:   true,
		Namespace: "test",
		Subsystem: "relay",
	}
}

func TestCollector_NewCollector(t *testing.T) {
	cfg := testConfig()
	registry := prometheus.NewRegistry()

	collector := NewCollector(cfg, registry)

	if collector.Registry() != registry {
		t.Error("collector registry not set correctly")
	}
}

func TestCollector_DefaultNamespace(t *testing.T) {
	collector := NewCollector(&config.MetricsConfig{}, prometheus.NewRegistry())
	collector.RecordRelay("success", "", time.Millisecond, 10, 10)

	count, err := testutil.GatherAndCount(collector.Registry(), "relay_requests_total")
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected relay_requests_total series, got %d", count)
	}
}

func TestCollector_RecordRelay(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	tests := []struct {
		name      string
		outcome   string
		errorKind string
	}{
		{"success", "success", ""},
		{"invalid payload", "error", "InvalidInboundPayload"},
		{"unreachable", "error", "UpstreamUnreachable"},
		{"preflight", "preflight", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			collector.RecordRelay(tt.outcome, tt.errorKind, 200*time.Millisecond, 64, 128)

			got := testutil.ToFloat64(collector.relayMetrics.requestsTotal.WithLabelValues(tt.outcome, tt.errorKind))
			if got != 1 {
				t.Errorf("expected counter 1, got %v", got)
			}
		})
	}

	// Preflights are excluded from size histograms.
	if n := testutil.CollectAndCount(collector.relayMetrics.requestSize); n != 1 {
		t.Errorf("expected one size histogram, got %d", n)
	}
}

func TestCollector_RecordUpstream(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordUpstream(200, time.Second)
	collector.RecordUpstream(200, time.Second)
	collector.RecordUpstream(0, 0)

	if got := testutil.ToFloat64(collector.upstreamMetrics.requestsTotal.WithLabelValues("200")); got != 2 {
		t.Errorf("expected 2 status 200 calls, got %v", got)
	}
	if got := testutil.ToFloat64(collector.upstreamMetrics.requestsTotal.WithLabelValues("none")); got != 1 {
		t.Errorf("expected 1 unreachable call, got %v", got)
	}
}

func TestCollector_Audit(t *testing.T) {
	collector := NewCollector(testConfig(), prometheus.NewRegistry())

	collector.RecordAuditWritten(3)
	collector.RecordAuditDropped()
	collector.RecordAuditPruned(5)
	collector.RecordAuditError("store")

	if got := testutil.ToFloat64(collector.auditMetrics.written); got != 3 {
		t.Errorf("written = %v", got)
	}
	if got := testutil.ToFloat64(collector.auditMetrics.dropped); got != 1 {
		t.Errorf("dropped = %v", got)
	}
	if got := testutil.ToFloat64(collector.auditMetrics.pruned); got != 5 {
		t.Errorf("pruned = %v", got)
	}
	if got := testutil.ToFloat64(collector.auditMetrics.errors.WithLabelValues("store")); got != 1 {
		t.Errorf("errors = %v", got)
	}
}

func TestCollector_NilSafe(t *testing.T) {
	var collector *Collector

	collector.RecordRelay("success", "", time.Second, 1, 1)
	collector.RecordUpstream(200, time.Second)
	collector.RecordAuditWritten(1)
	collector.RecordAuditDropped()
	collector.RecordAuditError("store")
	collector.RecordAuditPruned(1)

	if collector.Registry() != nil {
		t.Error("nil collector should have nil registry")
	}
}

func TestCollector_Handler(t *testing.T) {
	collector := NewCollector(testConfig(), nil)
	collector.RecordRelay("error", "UpstreamInvalidResponse", time.Second, 10, 10)

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `test_relay_requests_total{error_kind="UpstreamInvalidResponse",outcome="error"} 1`) {
		t.Errorf("metric missing from exposition:\n%s", body)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("expected Go runtime collector on default registry")
	}
}
