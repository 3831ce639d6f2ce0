package secret

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Manager routes secret references to providers by URI scheme.
type Manager struct {
	providers map[string]Provider
	mu        sync.RWMutex
}

// NewManager creates a new secret manager.
func NewManager() *Manager {
	return &Manager{
		providers: make(map[string]Provider),
	}
}

// Register registers a provider for a scheme such as "env".
func (m *Manager) Register(scheme string, provider Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[scheme] = provider
}

// Get resolves a reference. A value without a scheme is returned as-is so
// literal keys in config keep working.
func (m *Manager) Get(ctx context.Context, ref string) (string, error) {
	scheme, path, ok := strings.Cut(ref, "://")
	if !ok {
		return ref, nil
	}

	m.mu.RLock()
	provider, found := m.providers[scheme]
	m.mu.RUnlock()

	if !found {
		return "", fmt.Errorf("no secret provider registered for scheme: %s", scheme)
	}

	return provider.Get(ctx, path)
}

// Close closes all registered providers.
func (m *Manager) Close() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	schemes := make([]string, 0, len(m.providers))
	for scheme := range m.providers {
		schemes = append(schemes, scheme)
	}
	sort.Strings(schemes)

	var errs []error
	for _, scheme := range schemes {
		if err := m.providers[scheme].Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", scheme, err))
		}
	}
	return errors.Join(errs...)
}
