// Package types defines the wire and domain structures of the completion gateway.
// The shapes follow OpenAI's Chat Completion API with IndiGLM extensions.
package types //nolint:revive // package name is intentional

import "github.com/goccy/go-json"

// Message roles accepted by the gateway.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage represents a single message in the conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest is the body of POST /v1/chat/completions as received on the wire.
// Optional fields are pointers so that an absent field can be told apart from
// a zero value. Messages is kept raw until the gateway has checked its shape.
type ChatRequest struct {
	Messages        json.RawMessage `json:"messages"`
	Model           *string         `json:"model,omitempty"`
	Temperature     *float64        `json:"temperature,omitempty"`
	MaxTokens       *int            `json:"max_tokens,omitempty"`
	Stream          *bool           `json:"stream,omitempty"`
	IndianLanguage  *string         `json:"indian_language,omitempty"`
	CulturalContext *bool           `json:"cultural_context,omitempty"`
}

// CompletionRequest is a validated ChatRequest with every default applied.
type CompletionRequest struct {
	Messages    []ChatMessage
	Model       string
	Temperature float64 `json:"temperature" validate:"gte=0,lte=2"`
	MaxTokens   int     `json:"max_tokens" validate:"gte=1"`
	// Stream is accepted for wire compatibility but never honored downstream.
	Stream                 bool
	LanguageHint           string
	CulturalContextEnabled bool
}

// Defaults holds the values applied to absent optional request fields.
type Defaults struct {
	Model                  string
	Temperature            float64
	MaxTokens              int
	LanguageHint           string
	CulturalContextEnabled bool
}

// DefaultDefaults returns the documented request defaults.
func DefaultDefaults() Defaults {
	return Defaults{
		Model:                  "indiglm-1.0",
		Temperature:            0.7,
		MaxTokens:              1000,
		LanguageHint:           "english",
		CulturalContextEnabled: true,
	}
}

// Apply builds a CompletionRequest from the optional fields of r.
// Messages are not touched; the caller decodes and validates them separately.
func (d Defaults) Apply(r *ChatRequest) CompletionRequest {
	out := CompletionRequest{
		Model:                  d.Model,
		Temperature:            d.Temperature,
		MaxTokens:              d.MaxTokens,
		LanguageHint:           d.LanguageHint,
		CulturalContextEnabled: d.CulturalContextEnabled,
	}
	if r == nil {
		return out
	}
	if r.Model != nil {
		out.Model = *r.Model
	}
	if r.Temperature != nil {
		out.Temperature = *r.Temperature
	}
	if r.MaxTokens != nil {
		out.MaxTokens = *r.MaxTokens
	}
	if r.Stream != nil {
		out.Stream = *r.Stream
	}
	if r.IndianLanguage != nil {
		out.LanguageHint = *r.IndianLanguage
	}
	if r.CulturalContext != nil {
		out.CulturalContextEnabled = *r.CulturalContext
	}
	return out
}
