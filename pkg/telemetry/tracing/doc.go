// Package tracing sets up OpenTelemetry tracing for the relay.
//
// Spans are exported over OTLP gRPC to the configured collector. With
// tracing disabled every call is a noop. The server wraps each request in a
// span via HTTPMiddleware and the relay handler adds a child span per relay
// call with the outcome, error kind and upstream status as attributes. The
// credential and message content are never recorded.
package tracing
