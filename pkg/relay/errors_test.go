package relay

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"mercator-hq/relay/pkg/upstream"
)

func TestClassifyUpstream(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"unreachable", &upstream.UnreachableError{Endpoint: "http://x", Cause: errors.New("connection refused")}, UpstreamUnreachable},
		{"invalid response", &upstream.InvalidResponseError{Endpoint: "http://x", StatusCode: 200, Cause: errors.New("not json")}, UpstreamInvalidResponse},
		{"wrapped invalid", fmt.Errorf("call: %w", &upstream.InvalidResponseError{StatusCode: 502}), UpstreamInvalidResponse},
		{"cancelled", context.Canceled, UpstreamUnreachable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classifyUpstream(tt.err)
			if err.Kind != tt.want {
				t.Errorf("Kind = %q, want %q", err.Kind, tt.want)
			}
			if !errors.Is(err, tt.err) {
				t.Error("cause should stay reachable through Unwrap")
			}
		})
	}
}

func TestRelayError(t *testing.T) {
	err := fmt.Errorf("handler: %w", &RelayError{Kind: CredentialUnavailable, Cause: errors.New("file missing")})

	if KindOf(err) != CredentialUnavailable {
		t.Errorf("KindOf() = %q", KindOf(err))
	}
	if !errors.Is(err, &RelayError{Kind: CredentialUnavailable}) {
		t.Error("errors.Is should match on kind")
	}
	if errors.Is(err, &RelayError{Kind: UpstreamUnreachable}) {
		t.Error("errors.Is should not match a different kind")
	}
	if KindOf(errors.New("plain")) != "" {
		t.Error("KindOf() of a plain error should be empty")
	}
	if got := (&RelayError{Kind: UpstreamUnreachable}).Error(); got != "upstream_unreachable" {
		t.Errorf("Error() = %q", got)
	}
}
