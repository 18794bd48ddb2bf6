// Relay is a credential-isolating CORS relay for chat completions.
//
// Browsers POST a JSON body with a "messages" array; the relay attaches the
// upstream bearer credential and fixed model parameters, forwards the call
// and returns the upstream JSON unchanged. The credential never leaves the
// process.
//
// Usage:
//
//	# Start with config.yaml if present, defaults otherwise
//	relay run
//
//	# Start with a custom configuration and env file
//	relay run --config /etc/relay/config.yaml --env-file /etc/relay/.env
//
//	# Check a configuration and the credential source
//	relay validate --check-credential
//
//	# Inspect and prune the audit trail
//	relay audit list --outcome error --since 24h
//	relay audit prune --retention-days 7
package main

func main() {
	Execute()
}
