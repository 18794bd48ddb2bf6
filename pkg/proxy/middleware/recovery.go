package middleware

import (
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"

	"mercator-hq/relay/pkg/relay"
)

// Recovery recovers from panics in handlers and answers with the relay's
// fixed 500 error body and the CORS header set. The panic value and stack
// are logged; nothing about them reaches the client.
//
//	handler = Recovery(logger, cors)(handler)
func Recovery(logger *slog.Logger, cors *CORS) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cors == nil {
		cors = DefaultCORS()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				logger.ErrorContext(r.Context(), "panic in handler",
					"panic", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)

				cors.SetHeaders(w.Header(), r)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = io.WriteString(w, relay.ErrorBody)
			}()

			next.ServeHTTP(w, r)
		})
	}
}
