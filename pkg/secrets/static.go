package secrets

import "context"

// StaticProvider returns a fixed credential. It is meant for tests and for
// programs embedding the relay that manage the secret themselves.
type StaticProvider struct {
	value string
}

// NewStaticProvider creates a source that always returns value.
func NewStaticProvider(value string) *StaticProvider {
	return &StaticProvider{value: value}
}

// Credential returns the fixed value, or an error when it is empty.
func (p *StaticProvider) Credential(ctx context.Context) (string, error) {
	if p.value == "" {
		return "", &NotFoundError{Source: "static", Location: "inline"}
	}
	return p.value, nil
}
