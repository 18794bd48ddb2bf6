// Package secrets supplies the upstream bearer credential.
//
// The relay asks its CredentialSource for the credential on every call, so
// rotating the secret (a new environment on restart, a rewritten secret file)
// takes effect without touching the handler.
package secrets

import (
	"context"
	"fmt"
)

// CredentialSource returns the secret used to authenticate to the upstream.
//
// Implementations must be safe for concurrent use. An empty secret is never
// returned; a missing one is reported as an error.
type CredentialSource interface {
	Credential(ctx context.Context) (string, error)
}

// NotFoundError reports that a source has no credential to give.
// It names where the credential was expected, never its value.
type NotFoundError struct {
	// Source is the provider kind (env, file, static).
	Source string

	// Location is the variable name or file path that was consulted.
	Location string

	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s credential not available at %s: %v", e.Source, e.Location, e.Cause)
	}
	return fmt.Sprintf("%s credential not available at %s", e.Source, e.Location)
}

// Unwrap returns the underlying cause.
func (e *NotFoundError) Unwrap() error {
	return e.Cause
}
