package secrets

import (
	"context"
	"sync"
)

// Observed wraps a source and calls fn with each distinct credential value
// it hands out. The server uses it to register the live secret with the log
// redactor, including after rotation.
func Observed(src CredentialSource, fn func(string)) CredentialSource {
	return &observedSource{src: src, fn: fn}
}

type observedSource struct {
	src CredentialSource
	fn  func(string)

	mu   sync.Mutex
	last string
}

func (o *observedSource) Credential(ctx context.Context) (string, error) {
	value, err := o.src.Credential(ctx)
	if err != nil {
		return "", err
	}

	o.mu.Lock()
	changed := value != o.last
	o.last = value
	o.mu.Unlock()

	if changed {
		o.fn(value)
	}
	return value, nil
}
