// Package logging builds the relay's structured logger.
//
// It wraps a log/slog JSON or text handler with a redacting Handler so that
// the upstream credential cannot reach log output:
//
//	logger, redactor, err := logging.New(logging.Config{Level: "info", Format: "json"})
//	redactor.AddLiteral(credential)
//
//	logger.Info("upstream call", "authorization", "Bearer sk-abc")  // authorization=***
//	logger.Info("failed: Bearer sk-abc")                            // failed: Bearer ***
//
// Records logged with a context carrying a request ID (see WithRequestID)
// or an OpenTelemetry span get request_id, trace_id and span_id attributes.
package logging
