package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override.
const EnvPrefix = "RELAY_"

// LoadConfig loads configuration from a YAML file at the specified path.
// The file is decoded on top of Default, empty fields are defaulted and the
// result is validated. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	cfg, err := load(path)
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables follow the naming
// convention RELAY_SECTION_FIELD (e.g., RELAY_PROXY_LISTEN_ADDRESS) and
// always take precedence over the file.
//
// An empty path skips the file and starts from the defaults.
//
// The loading sequence is:
// 1. Start from Default and decode the YAML file over it
// 2. Apply defaults for empty fields
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := load(path)
	if err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(cfg)
	return cfg, nil
}

// envOverrides collects parse failures so a malformed variable is reported
// instead of silently ignored.
type envOverrides struct {
	errs []FieldError
}

func (o *envOverrides) str(name string, dst *string) {
	if val, ok := os.LookupEnv(EnvPrefix + name); ok && val != "" {
		*dst = val
	}
}

func (o *envOverrides) list(name string, dst *[]string) {
	val, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || val == "" {
		return
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	*dst = out
}

func (o *envOverrides) integer(name string, dst *int) {
	val, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || val == "" {
		return
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		o.fail(name, "must be an integer")
		return
	}
	*dst = i
}

func (o *envOverrides) int64(name string, dst *int64) {
	val, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || val == "" {
		return
	}
	i, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		o.fail(name, "must be an integer")
		return
	}
	*dst = i
}

func (o *envOverrides) float(name string, dst *float64) {
	val, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || val == "" {
		return
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		o.fail(name, "must be a number")
		return
	}
	*dst = f
}

func (o *envOverrides) boolean(name string, dst *bool) {
	val, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || val == "" {
		return
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		o.fail(name, "must be a boolean")
		return
	}
	*dst = b
}

func (o *envOverrides) duration(name string, dst *time.Duration) {
	val, ok := os.LookupEnv(EnvPrefix + name)
	if !ok || val == "" {
		return
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		o.fail(name, "must be a duration (e.g. 30s)")
		return
	}
	*dst = d
}

func (o *envOverrides) fail(name, msg string) {
	o.errs = append(o.errs, FieldError{Field: EnvPrefix + name, Message: msg})
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) error {
	o := &envOverrides{}

	// Proxy overrides
	o.str("PROXY_LISTEN_ADDRESS", &cfg.Proxy.ListenAddress)
	o.duration("PROXY_READ_TIMEOUT", &cfg.Proxy.ReadTimeout)
	o.duration("PROXY_WRITE_TIMEOUT", &cfg.Proxy.WriteTimeout)
	o.duration("PROXY_IDLE_TIMEOUT", &cfg.Proxy.IdleTimeout)
	o.duration("PROXY_SHUTDOWN_TIMEOUT", &cfg.Proxy.ShutdownTimeout)
	o.integer("PROXY_MAX_HEADER_BYTES", &cfg.Proxy.MaxHeaderBytes)
	o.int64("PROXY_MAX_BODY_BYTES", &cfg.Proxy.MaxBodyBytes)
	o.str("PROXY_RELAY_PATH", &cfg.Proxy.RelayPath)
	o.list("PROXY_CORS_ALLOWED_ORIGINS", &cfg.Proxy.CORS.AllowedOrigins)
	o.list("PROXY_CORS_ALLOWED_METHODS", &cfg.Proxy.CORS.AllowedMethods)
	o.list("PROXY_CORS_ALLOWED_HEADERS", &cfg.Proxy.CORS.AllowedHeaders)
	o.integer("PROXY_CORS_MAX_AGE", &cfg.Proxy.CORS.MaxAge)
	o.boolean("PROXY_TLS_ENABLED", &cfg.Proxy.TLS.Enabled)
	o.str("PROXY_TLS_CERT_FILE", &cfg.Proxy.TLS.CertFile)
	o.str("PROXY_TLS_KEY_FILE", &cfg.Proxy.TLS.KeyFile)
	o.str("PROXY_TLS_MIN_VERSION", &cfg.Proxy.TLS.MinVersion)
	o.duration("PROXY_TLS_RELOAD_INTERVAL", &cfg.Proxy.TLS.ReloadInterval)

	// Upstream overrides
	o.str("UPSTREAM_ENDPOINT", &cfg.Upstream.Endpoint)
	o.str("UPSTREAM_MODEL", &cfg.Upstream.Model)
	o.integer("UPSTREAM_MAX_TOKENS", &cfg.Upstream.MaxTokens)
	o.float("UPSTREAM_TEMPERATURE", &cfg.Upstream.Temperature)
	o.float("UPSTREAM_FREQUENCY_PENALTY", &cfg.Upstream.FrequencyPenalty)
	o.duration("UPSTREAM_TIMEOUT", &cfg.Upstream.Timeout)
	o.boolean("UPSTREAM_FORWARD_STATUS", &cfg.Upstream.ForwardStatus)

	// Credential overrides. The secret itself is never read from a RELAY_
	// variable; only where to find it.
	o.str("CREDENTIAL_SOURCE", &cfg.Credential.Source)
	o.str("CREDENTIAL_ENV_VAR", &cfg.Credential.EnvVar)
	o.str("CREDENTIAL_FILE_PATH", &cfg.Credential.FilePath)
	o.boolean("CREDENTIAL_WATCH", &cfg.Credential.Watch)

	// Telemetry overrides
	o.str("TELEMETRY_LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	o.str("TELEMETRY_LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	o.boolean("TELEMETRY_LOGGING_ADD_SOURCE", &cfg.Telemetry.Logging.AddSource)
	o.boolean("TELEMETRY_METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	o.str("TELEMETRY_METRICS_PATH", &cfg.Telemetry.Metrics.Path)
	o.str("TELEMETRY_METRICS_NAMESPACE", &cfg.Telemetry.Metrics.Namespace)
	o.str("TELEMETRY_METRICS_SUBSYSTEM", &cfg.Telemetry.Metrics.Subsystem)
	o.boolean("TELEMETRY_TRACING_ENABLED", &cfg.Telemetry.Tracing.Enabled)
	o.str("TELEMETRY_TRACING_ENDPOINT", &cfg.Telemetry.Tracing.Endpoint)
	o.str("TELEMETRY_TRACING_SAMPLER", &cfg.Telemetry.Tracing.Sampler)
	o.float("TELEMETRY_TRACING_SAMPLE_RATIO", &cfg.Telemetry.Tracing.SampleRatio)
	o.boolean("TELEMETRY_TRACING_INSECURE", &cfg.Telemetry.Tracing.Insecure)
	o.str("TELEMETRY_TRACING_SERVICE_NAME", &cfg.Telemetry.Tracing.ServiceName)

	// Audit overrides
	o.boolean("AUDIT_ENABLED", &cfg.Audit.Enabled)
	o.str("AUDIT_BACKEND", &cfg.Audit.Backend)
	o.str("AUDIT_SQLITE_DRIVER", &cfg.Audit.SQLite.Driver)
	o.str("AUDIT_SQLITE_PATH", &cfg.Audit.SQLite.Path)
	o.duration("AUDIT_SQLITE_BUSY_TIMEOUT", &cfg.Audit.SQLite.BusyTimeout)
	o.boolean("AUDIT_SQLITE_WAL_MODE", &cfg.Audit.SQLite.WALMode)
	o.integer("AUDIT_BUFFER", &cfg.Audit.Buffer)
	o.integer("AUDIT_RETENTION_DAYS", &cfg.Audit.RetentionDays)
	o.str("AUDIT_PRUNE_SCHEDULE", &cfg.Audit.PruneSchedule)

	if len(o.errs) > 0 {
		return fmt.Errorf("invalid environment override: %w", ValidationError{Errors: o.errs})
	}
	return nil
}
