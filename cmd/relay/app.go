package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"mercator-hq/relay/pkg/audit"
	"mercator-hq/relay/pkg/audit/retention"
	"mercator-hq/relay/pkg/audit/storage"
	"mercator-hq/relay/pkg/config"
	"mercator-hq/relay/pkg/proxy/middleware"
	"mercator-hq/relay/pkg/relay"
	"mercator-hq/relay/pkg/secrets"
	"mercator-hq/relay/pkg/server"
	"mercator-hq/relay/pkg/telemetry/health"
	"mercator-hq/relay/pkg/telemetry/logging"
	"mercator-hq/relay/pkg/telemetry/metrics"
	"mercator-hq/relay/pkg/telemetry/tracing"
	"mercator-hq/relay/pkg/upstream"
)

// app is the assembled relay process.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	metrics   *metrics.Collector
	tracer    *tracing.Tracer
	server    *server.Server
	recorder  *audit.Recorder
	scheduler *retention.Scheduler

	// closers run in reverse order on close.
	closers []func() error
}

// newApp builds every component from cfg. Logs are written to logOut.
func newApp(cfg *config.Config, logOut io.Writer) (a *app, err error) {
	logger, redactor, err := logging.New(logging.Config{
		Level:          cfg.Telemetry.Logging.Level,
		Format:         cfg.Telemetry.Logging.Format,
		AddSource:      cfg.Telemetry.Logging.AddSource,
		RedactPatterns: cfg.Telemetry.Logging.RedactPatterns,
		Writer:         logOut,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	a = &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	a.metrics = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)

	a.tracer, err = tracing.New(&cfg.Telemetry.Tracing, tracing.WithVersion(Version))
	if err != nil {
		return nil, fmt.Errorf("failed to create tracer: %w", err)
	}
	a.onClose(func() error { return a.tracer.Shutdown(context.Background()) })

	source, err := newCredentialSource(cfg.Credential, logger)
	if err != nil {
		return nil, err
	}
	if c, ok := source.(io.Closer); ok {
		a.onClose(c.Close)
	}
	// Every credential value read is scrubbed from log output.
	credentials := secrets.Observed(source, redactor.AddLiteral)

	client, err := upstream.NewClient(upstream.Config{
		Endpoint: cfg.Upstream.Endpoint,
		Timeout:  cfg.Upstream.Timeout,
		Logger:   logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream client: %w", err)
	}
	a.onClose(func() error { client.Close(); return nil })

	checker := health.New(0)
	checker.RegisterCheck("credential", func(ctx context.Context) error {
		_, err := credentials.Credential(ctx)
		return err
	})

	opts := relay.OptionsFromConfig(cfg)
	opts.Upstream = client
	opts.Credentials = credentials
	opts.Headers = middleware.NewCORS(cfg.Proxy.CORS)
	opts.Logger = logger
	opts.Metrics = a.metrics
	opts.Tracer = a.tracer

	if cfg.Audit.Enabled {
		store, err := storage.Open(&cfg.Audit, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit store: %w", err)
		}
		a.onClose(store.Close)
		checker.RegisterCheck("audit", store.Ping)

		a.recorder = audit.NewRecorder(store, audit.RecorderConfig{
			Buffer:  cfg.Audit.Buffer,
			Logger:  logger,
			Metrics: a.metrics,
		})
		a.onClose(a.recorder.Close)
		opts.Recorder = a.recorder

		pruner := retention.NewPruner(store, retention.Config{
			RetentionDays: cfg.Audit.RetentionDays,
			PruneSchedule: cfg.Audit.PruneSchedule,
		}, logger, a.metrics)
		a.scheduler = retention.NewScheduler(pruner)
		a.onClose(func() error { a.scheduler.Stop(); return nil })
	}

	handler, err := relay.NewHandler(opts)
	if err != nil {
		return nil, err
	}

	a.server, err = server.New(server.Options{
		Config:  cfg,
		Relay:   handler,
		Health:  checker,
		Metrics: a.metrics,
		Tracer:  a.tracer,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// newCredentialSource builds the configured credential source.
func newCredentialSource(cfg config.CredentialConfig, logger *slog.Logger) (secrets.CredentialSource, error) {
	switch cfg.Source {
	case "env":
		return secrets.NewEnvProvider(cfg.EnvVar), nil
	case "file":
		p, err := secrets.NewFileProvider(cfg.FilePath, cfg.Watch, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create file credential source: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown credential source %q", cfg.Source)
	}
}

// run starts the retention scheduler and serves until ctx is cancelled.
func (a *app) run(ctx context.Context) error {
	if a.scheduler != nil {
		if err := a.scheduler.Start(ctx); err != nil {
			return err
		}
		if next := a.scheduler.NextRun(); next != nil {
			a.logger.Debug("audit pruning scheduled", "next_run", next)
		}
	}
	return a.server.Start(ctx)
}

func (a *app) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// close releases every component. The recorder is flushed before the
// audit store closes because it was registered after it.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("error during shutdown", "error", err)
		}
	}
	a.closers = nil
}
