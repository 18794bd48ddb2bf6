// Package config provides configuration management for the relay.
//
// Configuration is read from a YAML file, decoded on top of the defaults,
// overridden from the environment and validated:
//
//	cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention RELAY_SECTION_FIELD:
//
//   - RELAY_PROXY_LISTEN_ADDRESS overrides proxy.listen_address
//   - RELAY_UPSTREAM_MODEL overrides upstream.model
//   - RELAY_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//   - RELAY_PROXY_CORS_ALLOWED_HEADERS takes a comma separated list
//
// The upstream credential is never part of the configuration. The
// credential section only says where to read it from (by default the
// OPENAI_API_KEY environment variable).
//
// # Validation
//
// Validate collects every problem into a ValidationError so a single run
// reports all of them:
//
//	var verr config.ValidationError
//	if errors.As(err, &verr) {
//	    for _, fe := range verr.Errors {
//	        fmt.Println(fe.Field, fe.Message)
//	    }
//	}
package config
