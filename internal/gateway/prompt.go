package gateway

import (
	"fmt"

	"github.com/indiglm/gateway/pkg/types"
)

// GenericSystemPrompt is injected when cultural context is disabled.
const GenericSystemPrompt = "You are a helpful AI assistant."

const culturalSystemPromptFormat = "You are IndiGLM, an AI assistant designed for Indian users. " +
	"Respond in %s where appropriate. " +
	"Be culturally sensitive and aware of Indian customs, festivals, traditions and regional diversity. " +
	"Use examples and references that are familiar to an Indian audience, and treat every community, " +
	"religion and language with respect."

// SystemPrompt returns the gateway-authored system message content.
// The language hint is embedded verbatim.
func SystemPrompt(languageHint string, culturalContext bool) string {
	if !culturalContext {
		return GenericSystemPrompt
	}
	return fmt.Sprintf(culturalSystemPromptFormat, languageHint)
}

// BuildMessages returns the sequence sent to the provider: the gateway system
// message followed by the caller's messages. Only a leading caller system
// message is replaced, so the head of the result is always the gateway's. System
// messages later in the conversation are forwarded in place. The input slice
// is never modified.
func BuildMessages(messages []types.ChatMessage, languageHint string, culturalContext bool) []types.ChatMessage {
	rest := messages
	if len(rest) > 0 && rest[0].Role == types.RoleSystem {
		rest = rest[1:]
	}

	out := make([]types.ChatMessage, 0, len(rest)+1)
	out = append(out, types.ChatMessage{
		Role:    types.RoleSystem,
		Content: SystemPrompt(languageHint, culturalContext),
	})
	return append(out, rest...)
}
