package config

import "time"

// Config is the root configuration structure for the relay.
// It contains the listener, upstream, credential, telemetry and audit sections.
type Config struct {
	// Proxy contains HTTP server configuration including listen address,
	// timeouts, body limits and the CORS header set.
	Proxy ProxyConfig `yaml:"proxy"`

	// Upstream contains the chat-completion endpoint and the fixed
	// generation parameters sent with every relayed request.
	Upstream UpstreamConfig `yaml:"upstream"`

	// Credential selects where the upstream bearer secret is read from.
	Credential CredentialConfig `yaml:"credential"`

	// Telemetry contains configuration for logging, metrics, and tracing.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Audit contains configuration for the optional relay audit trail.
	Audit AuditConfig `yaml:"audit"`
}

// ProxyConfig contains configuration for the inbound HTTP server.
type ProxyConfig struct {
	// ListenAddress is the address and port for the relay to listen on.
	// Format: "host:port" (e.g., "127.0.0.1:8080", "0.0.0.0:8080").
	// Default: "127.0.0.1:8080"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request,
	// including the body. A zero value means no timeout.
	// Default: 30s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes of the
	// response. A zero value means no timeout, which is the default because
	// the relay waits for the upstream for as long as it takes.
	// Default: 0
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	// when keep-alives are enabled.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown. In-flight requests still
	// running after it are abandoned.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxHeaderBytes limits the size of request headers.
	// Default: 1048576 (1MB)
	MaxHeaderBytes int `yaml:"max_header_bytes"`

	// MaxBodyBytes limits the inbound request body. Larger bodies are
	// treated as an invalid payload.
	// Default: 10485760 (10MB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`

	// RelayPath is the mux pattern the relay handler is mounted on.
	// "/" catches every path not otherwise routed.
	// Default: "/"
	RelayPath string `yaml:"relay_path"`

	// CORS contains the cross-origin header values attached to every response.
	CORS CORSConfig `yaml:"cors"`

	// TLS serves the relay over HTTPS when enabled.
	TLS TLSConfig `yaml:"tls"`
}

// TLSConfig contains listener TLS settings.
type TLSConfig struct {
	// Enabled serves HTTPS instead of HTTP.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// CertFile is the PEM-encoded certificate chain.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the PEM-encoded private key.
	KeyFile string `yaml:"key_file"`

	// MinVersion is the lowest accepted protocol version, "1.2" or "1.3".
	// Default: "1.3"
	MinVersion string `yaml:"min_version"`

	// ReloadInterval is how often the certificate files are checked for
	// changes. Zero disables reloading.
	// Default: 5m
	ReloadInterval time.Duration `yaml:"reload_interval"`
}

// CORSConfig contains the Access-Control-* header values.
type CORSConfig struct {
	// AllowedOrigins populates Access-Control-Allow-Origin.
	// Default: ["*"]
	AllowedOrigins []string `yaml:"allowed_origins"`

	// AllowedMethods populates Access-Control-Allow-Methods.
	// Default: ["GET", "POST", "OPTIONS"]
	AllowedMethods []string `yaml:"allowed_methods"`

	// AllowedHeaders populates Access-Control-Allow-Headers.
	// Default: ["Content-Type", "Authorization"]
	AllowedHeaders []string `yaml:"allowed_headers"`

	// MaxAge populates Access-Control-Max-Age, in seconds.
	// Default: 86400
	MaxAge int `yaml:"max_age"`
}

// UpstreamConfig describes the chat-completion endpoint.
type UpstreamConfig struct {
	// Endpoint is the full URL requests are POSTed to.
	// Default: "https://api.openai.com/v1/chat/completions"
	Endpoint string `yaml:"endpoint"`

	// Model is sent as "model" on every request. Callers cannot override it.
	// Default: "gpt-4o"
	Model string `yaml:"model"`

	// MaxTokens is sent as "max_tokens".
	// Default: 800
	MaxTokens int `yaml:"max_tokens"`

	// Temperature is sent as "temperature". An explicit 0 in the file is kept.
	// Default: 0.5
	Temperature float64 `yaml:"temperature"`

	// FrequencyPenalty is sent as "frequency_penalty".
	// Default: 0.8
	FrequencyPenalty float64 `yaml:"frequency_penalty"`

	// Timeout bounds the whole upstream exchange. Zero means no timeout.
	// Default: 0
	Timeout time.Duration `yaml:"timeout"`

	// ForwardStatus relays the upstream HTTP status code instead of always
	// answering 200 for a well-formed upstream JSON body.
	// Default: false
	ForwardStatus bool `yaml:"forward_status"`
}

// CredentialConfig selects the credential source.
type CredentialConfig struct {
	// Source is "env" or "file".
	// Default: "env"
	Source string `yaml:"source"`

	// EnvVar is the environment variable read by the env source.
	// Default: "OPENAI_API_KEY"
	EnvVar string `yaml:"env_var"`

	// FilePath is the secret file read by the file source.
	FilePath string `yaml:"file_path"`

	// Watch invalidates the cached file secret on change.
	// Default: true
	Watch bool `yaml:"watch"`
}

// TelemetryConfig contains configuration for observability.
type TelemetryConfig struct {
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	Tracing TracingConfig `yaml:"tracing"`
}

// LoggingConfig contains configuration for structured logging.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	// Default: "info"
	Level string `yaml:"level"`

	// Format is "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes source file and line in log records.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactPatterns are extra regular expressions scrubbed from log output.
	RedactPatterns []string `yaml:"redact_patterns"`
}

// MetricsConfig contains configuration for Prometheus metrics.
type MetricsConfig struct {
	// Enabled exposes the metrics endpoint.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the HTTP path for the metrics endpoint.
	// Default: "/metrics"
	Path string `yaml:"path"`

	// Namespace prefixes every metric name.
	// Default: "relay"
	Namespace string `yaml:"namespace"`

	// Subsystem follows the namespace in metric names.
	Subsystem string `yaml:"subsystem"`
}

// TracingConfig contains configuration for OpenTelemetry tracing.
type TracingConfig struct {
	// Enabled turns on span export.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP gRPC collector address.
	// Default: "localhost:4317"
	Endpoint string `yaml:"endpoint"`

	// Sampler is "always", "never" or "ratio".
	// Default: "ratio"
	Sampler string `yaml:"sampler"`

	// SampleRatio is used by the "ratio" sampler.
	// Default: 1.0
	SampleRatio float64 `yaml:"sample_ratio"`

	// Insecure disables TLS to the collector.
	// Default: false
	Insecure bool `yaml:"insecure"`

	// ServiceName is reported as service.name.
	// Default: "relay"
	ServiceName string `yaml:"service_name"`
}

// AuditConfig contains configuration for the relay audit trail.
type AuditConfig struct {
	// Enabled turns on audit recording.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Backend is "memory" or "sqlite".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite contains SQLite backend settings.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// Buffer is the size of the asynchronous write queue. Records arriving
	// while it is full are dropped.
	// Default: 1000
	Buffer int `yaml:"buffer"`

	// RetentionDays is how long records are kept. Zero keeps them forever.
	// Default: 30
	RetentionDays int `yaml:"retention_days"`

	// PruneSchedule is the cron expression pruning runs on.
	// Default: "0 3 * * *"
	PruneSchedule string `yaml:"prune_schedule"`
}

// SQLiteConfig contains SQLite settings for the audit store.
type SQLiteConfig struct {
	// Driver selects the database/sql driver: "sqlite" is the pure Go
	// modernc.org/sqlite, "sqlite3" is the cgo based mattn/go-sqlite3.
	// Default: "sqlite"
	Driver string `yaml:"driver"`

	// Path is the database file.
	// Default: "data/audit.db"
	Path string `yaml:"path"`

	// BusyTimeout is how long a writer waits on a locked database.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`

	// WALMode enables write-ahead logging.
	// Default: true
	WALMode bool `yaml:"wal_mode"`
}
