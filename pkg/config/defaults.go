package config

import "time"

// Default values for configuration fields.
const (
	// Proxy defaults
	DefaultListenAddress   = "127.0.0.1:8080"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = time.Duration(0)
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxHeaderBytes  = 1048576  // 1MB
	DefaultMaxBodyBytes    = 10485760 // 10MB
	DefaultRelayPath       = "/"

	// TLS defaults
	DefaultTLSMinVersion     = "1.3"
	DefaultTLSReloadInterval = 5 * time.Minute

	// CORS defaults
	DefaultCORSMaxAge = 86400 // 24 hours

	// Upstream defaults
	DefaultUpstreamEndpoint         = "https://api.openai.com/v1/chat/completions"
	DefaultUpstreamModel            = "gpt-4o"
	DefaultUpstreamMaxTokens        = 800
	DefaultUpstreamTemperature      = 0.5
	DefaultUpstreamFrequencyPenalty = 0.8
	DefaultUpstreamTimeout          = time.Duration(0)

	// Credential defaults
	DefaultCredentialSource = "env"
	DefaultCredentialEnvVar = "OPENAI_API_KEY"
	DefaultCredentialWatch  = true

	// Telemetry defaults
	DefaultLogLevel           = "info"
	DefaultLogFormat          = "json"
	DefaultMetricsEnabled     = true
	DefaultMetricsPath        = "/metrics"
	DefaultMetricsNamespace   = "relay"
	DefaultTracingEnabled     = false
	DefaultTracingEndpoint    = "localhost:4317"
	DefaultTracingSampler     = "ratio"
	DefaultTracingSampleRatio = 1.0
	DefaultTracingServiceName = "relay"

	// Audit defaults
	DefaultAuditEnabled           = false
	DefaultAuditBackend           = "sqlite"
	DefaultAuditSQLiteDriver      = "sqlite"
	DefaultAuditSQLitePath        = "data/audit.db"
	DefaultAuditSQLiteBusyTimeout = 5 * time.Second
	DefaultAuditSQLiteWALMode     = true
	DefaultAuditBuffer            = 1000
	DefaultAuditRetentionDays     = 30
	DefaultAuditPruneSchedule     = "0 3 * * *"
)

// Default CORS header values. They reproduce the header set browsers expect
// from the relay out of the box.
var (
	DefaultCORSAllowedOrigins = []string{"*"}
	DefaultCORSAllowedMethods = []string{"GET", "POST", "OPTIONS"}
	DefaultCORSAllowedHeaders = []string{"Content-Type", "Authorization"}
)

// Default returns a configuration with every field set to its default.
// Loading decodes YAML on top of it, so boolean and numeric fields the file
// leaves out keep their defaults while explicit false and zero values win.
func Default() *Config {
	return &Config{
		Proxy: ProxyConfig{
			ListenAddress:   DefaultListenAddress,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    DefaultWriteTimeout,
			IdleTimeout:     DefaultIdleTimeout,
			ShutdownTimeout: DefaultShutdownTimeout,
			MaxHeaderBytes:  DefaultMaxHeaderBytes,
			MaxBodyBytes:    DefaultMaxBodyBytes,
			RelayPath:       DefaultRelayPath,
			CORS: CORSConfig{
				AllowedOrigins: copyStrings(DefaultCORSAllowedOrigins),
				AllowedMethods: copyStrings(DefaultCORSAllowedMethods),
				AllowedHeaders: copyStrings(DefaultCORSAllowedHeaders),
				MaxAge:         DefaultCORSMaxAge,
			},
			TLS: TLSConfig{
				MinVersion:     DefaultTLSMinVersion,
				ReloadInterval: DefaultTLSReloadInterval,
			},
		},
		Upstream: UpstreamConfig{
			Endpoint:         DefaultUpstreamEndpoint,
			Model:            DefaultUpstreamModel,
			MaxTokens:        DefaultUpstreamMaxTokens,
			Temperature:      DefaultUpstreamTemperature,
			FrequencyPenalty: DefaultUpstreamFrequencyPenalty,
			Timeout:          DefaultUpstreamTimeout,
		},
		Credential: CredentialConfig{
			Source: DefaultCredentialSource,
			EnvVar: DefaultCredentialEnvVar,
			Watch:  DefaultCredentialWatch,
		},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{
				Level:  DefaultLogLevel,
				Format: DefaultLogFormat,
			},
			Metrics: MetricsConfig{
				Enabled:   DefaultMetricsEnabled,
				Path:      DefaultMetricsPath,
				Namespace: DefaultMetricsNamespace,
			},
			Tracing: TracingConfig{
				Enabled:     DefaultTracingEnabled,
				Endpoint:    DefaultTracingEndpoint,
				Sampler:     DefaultTracingSampler,
				SampleRatio: DefaultTracingSampleRatio,
				ServiceName: DefaultTracingServiceName,
			},
		},
		Audit: AuditConfig{
			Enabled: DefaultAuditEnabled,
			Backend: DefaultAuditBackend,
			SQLite: SQLiteConfig{
				Driver:      DefaultAuditSQLiteDriver,
				Path:        DefaultAuditSQLitePath,
				BusyTimeout: DefaultAuditSQLiteBusyTimeout,
				WALMode:     DefaultAuditSQLiteWALMode,
			},
			Buffer:        DefaultAuditBuffer,
			RetentionDays: DefaultAuditRetentionDays,
			PruneSchedule: DefaultAuditPruneSchedule,
		},
	}
}

// ApplyDefaults fills empty string, list and size fields with their defaults.
// It is applied after decoding so that a file writing `model: ""` or
// `allowed_methods: []` still ends up with a usable value. Durations and
// numbers where zero is meaningful are left alone.
func ApplyDefaults(cfg *Config) {
	applyProxyDefaults(&cfg.Proxy)
	applyUpstreamDefaults(&cfg.Upstream)
	applyCredentialDefaults(&cfg.Credential)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyAuditDefaults(&cfg.Audit)
}

func applyProxyDefaults(proxy *ProxyConfig) {
	if proxy.ListenAddress == "" {
		proxy.ListenAddress = DefaultListenAddress
	}
	if proxy.MaxHeaderBytes == 0 {
		proxy.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if proxy.MaxBodyBytes == 0 {
		proxy.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if proxy.RelayPath == "" {
		proxy.RelayPath = DefaultRelayPath
	}
	if proxy.TLS.MinVersion == "" {
		proxy.TLS.MinVersion = DefaultTLSMinVersion
	}
	applyCORSDefaults(&proxy.CORS)
}

func applyCORSDefaults(cors *CORSConfig) {
	if len(cors.AllowedOrigins) == 0 {
		cors.AllowedOrigins = copyStrings(DefaultCORSAllowedOrigins)
	}
	if len(cors.AllowedMethods) == 0 {
		cors.AllowedMethods = copyStrings(DefaultCORSAllowedMethods)
	}
	if len(cors.AllowedHeaders) == 0 {
		cors.AllowedHeaders = copyStrings(DefaultCORSAllowedHeaders)
	}
	if cors.MaxAge == 0 {
		cors.MaxAge = DefaultCORSMaxAge
	}
}

func applyUpstreamDefaults(up *UpstreamConfig) {
	if up.Endpoint == "" {
		up.Endpoint = DefaultUpstreamEndpoint
	}
	if up.Model == "" {
		up.Model = DefaultUpstreamModel
	}
	if up.MaxTokens == 0 {
		up.MaxTokens = DefaultUpstreamMaxTokens
	}
}

func applyCredentialDefaults(cred *CredentialConfig) {
	if cred.Source == "" {
		cred.Source = DefaultCredentialSource
	}
	if cred.EnvVar == "" {
		cred.EnvVar = DefaultCredentialEnvVar
	}
}

func applyTelemetryDefaults(tel *TelemetryConfig) {
	if tel.Logging.Level == "" {
		tel.Logging.Level = DefaultLogLevel
	}
	if tel.Logging.Format == "" {
		tel.Logging.Format = DefaultLogFormat
	}
	if tel.Metrics.Path == "" {
		tel.Metrics.Path = DefaultMetricsPath
	}
	if tel.Metrics.Namespace == "" {
		tel.Metrics.Namespace = DefaultMetricsNamespace
	}
	if tel.Tracing.Endpoint == "" {
		tel.Tracing.Endpoint = DefaultTracingEndpoint
	}
	if tel.Tracing.Sampler == "" {
		tel.Tracing.Sampler = DefaultTracingSampler
	}
	if tel.Tracing.ServiceName == "" {
		tel.Tracing.ServiceName = DefaultTracingServiceName
	}
}

func applyAuditDefaults(audit *AuditConfig) {
	if audit.Backend == "" {
		audit.Backend = DefaultAuditBackend
	}
	if audit.SQLite.Driver == "" {
		audit.SQLite.Driver = DefaultAuditSQLiteDriver
	}
	if audit.SQLite.Path == "" {
		audit.SQLite.Path = DefaultAuditSQLitePath
	}
	if audit.SQLite.BusyTimeout == 0 {
		audit.SQLite.BusyTimeout = DefaultAuditSQLiteBusyTimeout
	}
	if audit.Buffer == 0 {
		audit.Buffer = DefaultAuditBuffer
	}
	if audit.PruneSchedule == "" {
		audit.PruneSchedule = DefaultAuditPruneSchedule
	}
}

func copyStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
