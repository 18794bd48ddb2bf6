package tracing

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys.
const (
	AttrRequestID      = "relay.request_id"
	AttrOutcome        = "relay.outcome"
	AttrErrorKind      = "relay.error_kind"
	AttrMessageCount   = "relay.message_count"
	AttrRequestBytes   = "relay.request_bytes"
	AttrResponseBytes  = "relay.response_bytes"
	AttrUpstreamURL    = "upstream.url"
	AttrUpstreamModel  = "upstream.model"
	AttrUpstreamStatus = "upstream.status_code"
	AttrHTTPMethod     = "http.request.method"
	AttrHTTPRoute      = "url.path"
	AttrHTTPStatus     = "http.response.status_code"
)

// SetRequestAttributes records what arrived from the caller.
func SetRequestAttributes(span trace.Span, requestID string, messageCount, requestBytes int) {
	span.SetAttributes(
		attribute.String(AttrRequestID, requestID),
		attribute.Int(AttrMessageCount, messageCount),
		attribute.Int(AttrRequestBytes, requestBytes),
	)
}

// SetUpstreamAttributes records the upstream target and its answer.
// status is 0 when no response was received.
func SetUpstreamAttributes(span trace.Span, url, model string, status int) {
	attrs := []attribute.KeyValue{
		attribute.String(AttrUpstreamURL, url),
		attribute.String(AttrUpstreamModel, model),
	}
	if status > 0 {
		attrs = append(attrs, attribute.Int(AttrUpstreamStatus, status))
	}
	span.SetAttributes(attrs...)
}

// SetOutcome records the relay outcome and response size.
func SetOutcome(span trace.Span, outcome string, responseBytes int) {
	span.SetAttributes(
		attribute.String(AttrOutcome, outcome),
		attribute.Int(AttrResponseBytes, responseBytes),
	)
}
