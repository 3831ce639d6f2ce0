// Package secret resolves credentials referenced from configuration, such as
// "env://INDIGLM_API_KEY", through scheme-specific providers.
package secret

import (
	"context"
	"errors"
)

// ErrNotFound is returned by providers when a referenced secret is absent or empty.
var ErrNotFound = errors.New("secret not found")

// Provider defines the interface for retrieving secrets from a source.
type Provider interface {
	// Get retrieves the secret value for the scheme-less path,
	// e.g. "INDIGLM_API_KEY" for "env://INDIGLM_API_KEY".
	Get(ctx context.Context, path string) (string, error)

	// Close releases any resources held by the provider.
	Close() error
}
