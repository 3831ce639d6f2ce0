package gateway

import (
	"strconv"
	"time"

	"github.com/indiglm/gateway/pkg/provider"
	"github.com/indiglm/gateway/pkg/types"
)

// IDPrefix starts every generated completion ID.
const IDPrefix = "indiglm-"

// Normalize converts a possibly partial provider completion into the response
// envelope. Values the provider supplied are copied as-is; missing ones take
// defaults derived from now. The model always echoes the request.
func Normalize(c *provider.Completion, req types.CompletionRequest, now time.Time) *types.CompletionResponse {
	if c == nil {
		c = &provider.Completion{}
	}

	id := c.ID
	if id == "" {
		id = IDPrefix + strconv.FormatInt(now.UnixMilli(), 10)
	}
	created := c.Created
	if created == 0 {
		created = now.Unix()
	}

	choices := make([]types.Choice, 0, max(len(c.Choices), 1))
	for i, ch := range c.Choices {
		choices = append(choices, normalizeChoice(i, ch))
	}
	if len(choices) == 0 {
		choices = append(choices, normalizeChoice(0, provider.CompletionChoice{}))
	}

	var usage types.Usage
	if c.Usage != nil {
		usage = types.Usage{
			PromptTokens:     c.Usage.PromptTokens,
			CompletionTokens: c.Usage.CompletionTokens,
			TotalTokens:      c.Usage.TotalTokens,
		}
	}

	return &types.CompletionResponse{
		ID:      id,
		Object:  types.ObjectChatCompletion,
		Created: created,
		Model:   req.Model,
		Choices: choices,
		Usage:   usage,
		ExtensionMetadata: types.ExtensionMetadata{
			Language:           req.LanguageHint,
			CulturalAwareness:  req.CulturalContextEnabled,
			RegionalAdaptation: true,
		},
	}
}

func normalizeChoice(index int, ch provider.CompletionChoice) types.Choice {
	role := ch.Message.Role
	if role == "" {
		role = types.RoleAssistant
	}
	finish := ch.FinishReason
	if finish == "" {
		finish = types.FinishReasonStop
	}
	return types.Choice{
		Index:        index,
		Message:      types.ChatMessage{Role: role, Content: ch.Message.Content},
		FinishReason: finish,
	}
}
