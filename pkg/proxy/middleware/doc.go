// Package middleware provides HTTP middleware for cross-cutting concerns.
//
// # Middleware Chain
//
// pkg/server wraps the mux, outermost first:
//
//	Recovery -> RequestID -> Logging -> tracing -> CORS -> mux
//
// Recovery sits outside everything so a panic in any layer still produces
// the fixed error body with the CORS headers. Logging runs inside RequestID
// so the access line carries the ID.
//
// # CORS
//
// With the default configuration every response carries:
//
//	Access-Control-Allow-Origin: *
//	Access-Control-Allow-Methods: GET, POST, OPTIONS
//	Access-Control-Allow-Headers: Content-Type, Authorization
//	Access-Control-Max-Age: 86400
//
// CORS.Preflight answers OPTIONS for routes that do not handle it
// themselves. The relay handler answers its own preflight requests.
//
// # Request ID
//
// A valid client supplied X-Request-ID is reused, otherwise a UUID v4 is
// generated:
//
//	X-Request-ID: 550e8400-e29b-41d4-a716-446655440000
//
// The ID is stored with logging.WithRequestID, so every log line written
// with the request context carries it.
//
// # Recovery
//
// A panic is logged with its stack trace and the client receives:
//
//	{"error":"An error occurred processing your request"}
package middleware
