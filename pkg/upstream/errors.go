package upstream

import "fmt"

// UnreachableError reports a transport-level failure: DNS, connection,
// TLS, timeout or cancellation. No response was read.
type UnreachableError struct {
	// Endpoint is the URL that could not be reached.
	Endpoint string

	// Cause is the underlying transport error.
	Cause error
}

// Error implements the error interface.
func (e *UnreachableError) Error() string {
	return fmt.Sprintf("upstream %s unreachable: %v", e.Endpoint, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *UnreachableError) Unwrap() error {
	return e.Cause
}

// InvalidResponseError reports that the upstream answered but its body could
// not be read or is not JSON.
type InvalidResponseError struct {
	// Endpoint is the URL that answered.
	Endpoint string

	// StatusCode is the upstream HTTP status.
	StatusCode int

	// Cause is the underlying read or parse error.
	Cause error
}

// Error implements the error interface.
func (e *InvalidResponseError) Error() string {
	return fmt.Sprintf("upstream %s returned an invalid response (status %d): %v", e.Endpoint, e.StatusCode, e.Cause)
}

// Unwrap returns the underlying error for error chain support.
func (e *InvalidResponseError) Unwrap() error {
	return e.Cause
}
