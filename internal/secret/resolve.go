package secret

import (
	"context"
	"errors"
	"strings"
)

// Resolution reports where an API key came from.
type Resolution struct {
	Key          string
	UsedFallback bool
}

// ResolveAPIKey resolves ref through the manager. When ref is empty or the
// referenced secret is missing, the fallback key is used instead. Errors other
// than a missing secret are returned unchanged.
func ResolveAPIKey(ctx context.Context, m *Manager, ref, fallback string) (Resolution, error) {
	ref = strings.TrimSpace(ref)
	if ref != "" {
		key, err := m.Get(ctx, ref)
		switch {
		case err == nil && strings.TrimSpace(key) != "":
			return Resolution{Key: key}, nil
		case err != nil && !errors.Is(err, ErrNotFound):
			return Resolution{}, err
		}
	}

	if strings.TrimSpace(fallback) == "" {
		return Resolution{}, ErrNotFound
	}
	return Resolution{Key: fallback, UsedFallback: true}, nil
}
