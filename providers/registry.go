// Package providers is the registry of Completion Provider implementations.
// The server picks one by the configured provider type.
package providers

import (
	"fmt"
	"sort"
	"sync"

	"github.com/indiglm/gateway/pkg/provider"
	"github.com/indiglm/gateway/providers/openai"
)

var (
	registry     = make(map[string]provider.Factory)
	registryOnce sync.Once
	registryMu   sync.RWMutex
)

// Register registers a provider factory with the given type name.
func Register(providerType string, factory provider.Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[providerType] = factory
}

// Get returns the factory for the given provider type.
func Get(providerType string) (provider.Factory, bool) {
	RegisterBuiltins()
	registryMu.RLock()
	defer registryMu.RUnlock()
	f, ok := registry[providerType]
	return f, ok
}

// Create creates a provider instance from configuration.
func Create(cfg provider.Config) (provider.Provider, error) {
	factory, ok := Get(cfg.Type)
	if !ok {
		return nil, fmt.Errorf("unknown provider type: %s (available: %v)", cfg.Type, List())
	}
	return factory(cfg)
}

// List returns all registered provider type names, sorted.
func List() []string {
	RegisterBuiltins()
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterBuiltins registers all built-in provider factories.
// IndiGLM's inference endpoint speaks the OpenAI wire format, so both type
// names resolve to the same adapter.
func RegisterBuiltins() {
	registryOnce.Do(func() {
		Register(openai.ProviderName, openai.NewFromConfig)
		Register("indiglm", openai.NewFromConfig)
	})
}
