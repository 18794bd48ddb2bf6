package relay

import (
	"errors"
	"fmt"

	"mercator-hq/relay/pkg/upstream"
)

// ErrorBody is the only error body a caller ever receives.
const ErrorBody = `{"error":"An error occurred processing your request"}`

// ErrorKind classifies why a relay call failed. Kinds are logged, counted
// and traced; they never reach the caller.
type ErrorKind string

const (
	// InvalidInboundPayload means the caller's body was not usable.
	InvalidInboundPayload ErrorKind = "invalid_inbound_payload"

	// UpstreamUnreachable means no response arrived from the upstream.
	UpstreamUnreachable ErrorKind = "upstream_unreachable"

	// UpstreamInvalidResponse means the upstream answered with a body
	// that could not be read or is not JSON.
	UpstreamInvalidResponse ErrorKind = "upstream_invalid_response"

	// CredentialUnavailable means the credential source failed.
	CredentialUnavailable ErrorKind = "credential_unavailable"
)

// RelayError is a failed relay call.
type RelayError struct {
	Kind  ErrorKind
	Cause error
}

// Error implements the error interface.
func (e *RelayError) Error() string {
	if e.Cause == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *RelayError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is a RelayError of the same kind, so
// errors.Is(err, &RelayError{Kind: UpstreamUnreachable}) works.
func (e *RelayError) Is(target error) bool {
	t, ok := target.(*RelayError)
	return ok && t.Cause == nil && t.Kind == e.Kind
}

// KindOf returns the kind of err, or "" when err is not a RelayError.
func KindOf(err error) ErrorKind {
	var re *RelayError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}

// classifyUpstream maps upstream client errors onto relay kinds.
func classifyUpstream(err error) *RelayError {
	var invalid *upstream.InvalidResponseError
	if errors.As(err, &invalid) {
		return &RelayError{Kind: UpstreamInvalidResponse, Cause: err}
	}
	return &RelayError{Kind: UpstreamUnreachable, Cause: err}
}
