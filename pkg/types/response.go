package types //nolint:revive // package name is intentional

// ObjectChatCompletion is the object tag of every non-streaming completion.
const ObjectChatCompletion = "chat.completion"

// FinishReasonStop is used when the provider does not report a finish reason.
const FinishReasonStop = "stop"

// CompletionResponse is the normalized, OpenAI-compatible completion envelope.
// It is built fresh for each request and never stored.
type CompletionResponse struct {
	ID                string            `json:"id"`
	Object            string            `json:"object"`
	Created           int64             `json:"created"`
	Model             string            `json:"model"`
	Choices           []Choice          `json:"choices"`
	Usage             Usage             `json:"usage"`
	ExtensionMetadata ExtensionMetadata `json:"extension_metadata"`
}

// Choice represents a single completion choice.
type Choice struct {
	Index        int         `json:"index"`
	Message      ChatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

// Usage contains token usage statistics for the request.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ExtensionMetadata echoes the cultural-context policy applied to the request.
type ExtensionMetadata struct {
	Language           string `json:"language"`
	CulturalAwareness  bool   `json:"cultural_awareness"`
	RegionalAdaptation bool   `json:"regional_adaptation"`
}
