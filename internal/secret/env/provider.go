// Package env implements a secret provider backed by environment variables.
package env

import (
	"context"
	"fmt"
	"os"

	"github.com/indiglm/gateway/internal/secret"
)

// Provider implements secret.Provider for environment variables.
type Provider struct {
	lookup func(string) (string, bool)
}

// New creates a new Env provider reading the process environment.
func New() *Provider {
	return &Provider{lookup: os.LookupEnv}
}

// NewWithLookup creates a provider over a custom lookup, mainly for tests.
func NewWithLookup(lookup func(string) (string, bool)) *Provider {
	return &Provider{lookup: lookup}
}

// Get returns the value of the named variable. Unset and empty variables
// both yield secret.ErrNotFound.
func (p *Provider) Get(_ context.Context, path string) (string, error) {
	val, ok := p.lookup(path)
	if !ok || val == "" {
		return "", fmt.Errorf("environment variable %q: %w", path, secret.ErrNotFound)
	}
	return val, nil
}

// Close is a no-op for the Env provider.
func (p *Provider) Close() error {
	return nil
}
