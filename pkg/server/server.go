package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"mercator-hq/relay/pkg/config"
	"mercator-hq/relay/pkg/proxy/middleware"
	"mercator-hq/relay/pkg/telemetry/health"
	"mercator-hq/relay/pkg/telemetry/metrics"
	"mercator-hq/relay/pkg/telemetry/tracing"
)

// Probe paths served next to the relay.
const (
	LivenessPath  = "/health"
	ReadinessPath = "/ready"
)

// Options holds the components the server routes to. Config and Relay are
// required.
type Options struct {
	Config  *config.Config
	Relay   http.Handler
	Health  *health.Checker
	Metrics *metrics.Collector
	Tracer  *tracing.Tracer
	Logger  *slog.Logger
}

// Server is the relay HTTP server.
type Server struct {
	config       *config.ProxyConfig
	handler      http.Handler
	logger       *slog.Logger
	httpServer   *http.Server
	certs        *certReloader
	shutdownOnce sync.Once
	mu           sync.RWMutex
	isRunning    bool
	addr         net.Addr
}

// New builds the routes and middleware chain. When TLS is enabled the
// certificate is loaded immediately so a bad file fails startup.
func New(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, errors.New("server: config is required")
	}
	if opts.Relay == nil {
		return nil, errors.New("server: relay handler is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = tracing.Noop()
	}
	checker := opts.Health
	if checker == nil {
		checker = health.New(0)
	}

	s := &Server{
		config: &opts.Config.Proxy,
		logger: logger,
	}

	handler, err := s.setupRoutes(opts, checker, tracer)
	if err != nil {
		return nil, err
	}
	s.handler = handler

	if opts.Config.Proxy.TLS.Enabled {
		s.certs, err = newCertReloader(opts.Config.Proxy.TLS, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to configure TLS: %w", err)
		}
	}
	return s, nil
}

// setupRoutes mounts the relay, the probes and the metrics endpoint and
// wraps them in the middleware chain.
func (s *Server) setupRoutes(opts Options, checker *health.Checker, tracer *tracing.Tracer) (http.Handler, error) {
	cors := middleware.NewCORS(s.config.CORS)
	reserved := map[string]bool{LivenessPath: true, ReadinessPath: true}

	mux := http.NewServeMux()
	mux.Handle(LivenessPath, cors.Preflight(checker.LivenessHandler()))
	mux.Handle(ReadinessPath, cors.Preflight(checker.ReadinessHandler()))

	metricsCfg := opts.Config.Telemetry.Metrics
	if metricsCfg.Enabled && opts.Metrics != nil {
		if reserved[metricsCfg.Path] {
			return nil, fmt.Errorf("server: metrics path %q collides with a probe", metricsCfg.Path)
		}
		reserved[metricsCfg.Path] = true
		mux.Handle(metricsCfg.Path, cors.Preflight(opts.Metrics.Handler()))
	}

	if reserved[s.config.RelayPath] {
		return nil, fmt.Errorf("server: relay path %q collides with a built-in route", s.config.RelayPath)
	}
	mux.Handle(s.config.RelayPath, opts.Relay)

	var handler http.Handler = mux
	handler = cors.Middleware(handler)
	handler = tracing.HTTPMiddleware(tracer)(handler)
	handler = middleware.Logging(s.logger)(handler)
	handler = middleware.RequestID(handler)
	handler = middleware.Recovery(s.logger, cors)(handler)
	return handler, nil
}

// Handler returns the fully wrapped handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on the configured address and serves until ctx is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.ListenAddress, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled or the server fails.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		ln.Close()
		return errors.New("server is already running")
	}
	s.isRunning = true
	s.addr = ln.Addr()
	s.httpServer = &http.Server{
		Handler:        s.handler,
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		IdleTimeout:    s.config.IdleTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
		ErrorLog:       slog.NewLogLogger(s.logger.Handler(), slog.LevelWarn),
	}
	if s.certs != nil {
		s.httpServer.TLSConfig = s.certs.tlsConfig(s.config.TLS.MinVersion)
	}
	srv := s.httpServer
	s.mu.Unlock()

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	if s.certs != nil {
		go s.certs.watch(watchCtx)
	}

	errChan := make(chan error, 1)
	go func() {
		s.logger.Info("starting relay server",
			"address", ln.Addr().String(),
			"relay_path", s.config.RelayPath,
			"tls_enabled", s.certs != nil,
		)

		var err error
		if s.certs != nil {
			err = srv.ServeTLS(ln, "", "")
		} else {
			err = srv.Serve(ln)
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
		close(errChan)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("context cancelled, initiating shutdown")
		return s.Shutdown(context.Background())
	case err, ok := <-errChan:
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
		if ok {
			return err
		}
		return nil
	}
}

// Shutdown stops accepting connections and waits for in-flight requests,
// bounded by the configured shutdown timeout.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.mu.RLock()
		srv := s.httpServer
		s.mu.RUnlock()
		if srv == nil {
			return
		}

		s.logger.Info("initiating graceful shutdown", "timeout", s.config.ShutdownTimeout.String())

		shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Error("error during server shutdown", "error", err)
			shutdownErr = fmt.Errorf("server shutdown error: %w", err)
		}

		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()

		s.logger.Info("relay server stopped")
	})

	return shutdownErr
}

// IsRunning returns true if the server is serving.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Addr returns the listener address once serving, or nil.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.addr
}
