// Package relay implements the credential-isolating chat completion relay.
//
// A Handler accepts a browser request carrying a JSON body with a
// "messages" array, attaches the upstream credential and fixed model
// parameters, and returns the upstream JSON body unchanged:
//
//	h, err := relay.NewHandler(relay.Options{
//		Upstream:    client,
//		Credentials: secrets.NewEnvProvider("RELAY_UPSTREAM_API_KEY"),
//	})
//
// Callers control only the messages. The model, max_tokens, temperature
// and frequency_penalty always come from Options.
//
// OPTIONS requests are answered with 200 and an empty body. Every failure
// is answered with status 500 and ErrorBody; the ErrorKind is only
// reported to logs, metrics, traces and the audit Recorder. The credential
// is never written to a response, a log line or an audit record.
package relay
