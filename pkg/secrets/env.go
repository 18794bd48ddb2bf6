package secrets

import (
	"context"
	"os"
	"strings"
)

// DefaultEnvVar is the variable the credential is read from when none is named.
const DefaultEnvVar = "OPENAI_API_KEY"

// EnvProvider reads the credential from an environment variable.
//
// The variable is looked up on every call rather than captured at
// construction, so a value loaded later (for example from a .env file)
// is still seen.
type EnvProvider struct {
	Var string
}

// NewEnvProvider creates an environment credential source. An empty name
// selects DefaultEnvVar.
func NewEnvProvider(name string) *EnvProvider {
	if name == "" {
		name = DefaultEnvVar
	}
	return &EnvProvider{Var: name}
}

// Credential returns the trimmed value of the variable.
func (p *EnvProvider) Credential(ctx context.Context) (string, error) {
	value := strings.TrimSpace(os.Getenv(p.Var))
	if value == "" {
		return "", &NotFoundError{Source: "env", Location: p.Var}
	}
	return value, nil
}
