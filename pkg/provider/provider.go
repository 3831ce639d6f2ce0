// Package provider defines the Completion Provider contract consumed by the gateway.
// A provider accepts an ordered message list plus generation options and returns a
// completion that may be only partially populated; the gateway fills the gaps.
package provider

import (
	"context"
	"time"

	"github.com/indiglm/gateway/pkg/types"
)

// Provider is the opaque text-generation backend behind the gateway.
type Provider interface {
	// Name returns the provider identifier (e.g., "openai").
	Name() string

	// CreateChatCompletion generates a completion for the given conversation.
	// Implementations must honor ctx cancellation and return a
	// *errors.GatewayError for upstream HTTP failures so retryability is known.
	CreateChatCompletion(ctx context.Context, messages []types.ChatMessage, opts Options) (*Completion, error)
}

// Options are the generation parameters forwarded with every call.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Completion is what a provider returns. Every field is optional: zero values
// mean "not supplied" and are replaced by gateway defaults.
type Completion struct {
	ID      string             `json:"id,omitempty"`
	Created int64              `json:"created,omitempty"`
	Model   string             `json:"model,omitempty"`
	Choices []CompletionChoice `json:"choices,omitempty"`
	Usage   *CompletionUsage   `json:"usage,omitempty"`
}

// CompletionChoice is a single generated alternative.
type CompletionChoice struct {
	Message      CompletionMessage `json:"message"`
	FinishReason string            `json:"finish_reason,omitempty"`
}

// CompletionMessage is the generated assistant message.
type CompletionMessage struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content"`
}

// CompletionUsage holds token counters; absent counters decode as zero.
type CompletionUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Config contains provider-specific configuration.
type Config struct {
	Name                string
	Type                string
	APIKey              string
	BaseURL             string
	AllowPrivateBaseURL bool
	Timeout             time.Duration
	Headers             map[string]string
}

// Factory creates provider instances from configuration.
type Factory func(cfg Config) (Provider, error)
