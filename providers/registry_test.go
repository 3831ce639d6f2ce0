package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indiglm/gateway/pkg/provider"
	"github.com/indiglm/gateway/pkg/types"
)

type stubProvider struct{}

func (stubProvider) Name() string { return "stub" }

func (stubProvider) CreateChatCompletion(context.Context, []types.ChatMessage, provider.Options) (*provider.Completion, error) {
	return &provider.Completion{}, nil
}

func TestBuiltinsRegistered(t *testing.T) {
	names := List()
	assert.Contains(t, names, "openai")
	assert.Contains(t, names, "indiglm")
}

func TestCreate_UnknownType(t *testing.T) {
	_, err := Create(provider.Config{Type: "does-not-exist"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider type")
}

func TestCreate_CustomFactory(t *testing.T) {
	Register("stub", func(provider.Config) (provider.Provider, error) { return stubProvider{}, nil })

	p, err := Create(provider.Config{Type: "stub"})
	require.NoError(t, err)
	assert.Equal(t, "stub", p.Name())
}

func TestCreate_OpenAI(t *testing.T) {
	p, err := Create(provider.Config{Type: "indiglm", APIKey: "k", BaseURL: "https://api.indiglm.ai/v1"})
	require.NoError(t, err)
	assert.Equal(t, "openai", p.Name())
}
