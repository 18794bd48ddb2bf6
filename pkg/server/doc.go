// Package server runs the relay HTTP server.
//
// # Routes
//
//	/health    liveness, always 200 while the process serves
//	/ready     readiness, 503 when a registered check fails
//	/metrics   Prometheus metrics, when telemetry.metrics.enabled
//	<relay>    the relay handler at proxy.relay_path (default "/")
//
// With the default relay path every request not matching a built-in route
// is relayed, whatever its path.
//
// # Middleware
//
// Every route runs behind the same chain, outermost first:
//
//	Recovery -> RequestID -> Logging -> tracing -> CORS -> mux
//
// so probe and metrics responses carry the CORS header set and an
// X-Request-ID too.
//
// # Lifecycle
//
//	srv, err := server.New(server.Options{Config: cfg, Relay: handler})
//	if err != nil {
//		return err
//	}
//	return srv.Start(ctx) // returns after ctx is cancelled and shutdown completes
//
// Shutdown waits for in-flight requests up to proxy.shutdown_timeout. When
// proxy.tls.enabled is set the listener serves HTTPS and the certificate
// files are re-read every proxy.tls.reload_interval when they change.
package server
