package gateway

import (
	"bytes"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	llmerrors "github.com/indiglm/gateway/pkg/errors"
	"github.com/indiglm/gateway/pkg/types"
)

// Caller-facing validation messages.
const (
	MessagesRequiredMessage = "Messages are required and must be an array"
	InvalidMessageMessage   = "Each message must be an object with string role and content"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		// Report wire names ("max_tokens") instead of Go field names.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// wireMessage keeps role and content as pointers so a missing field is not
// mistaken for an empty one.
type wireMessage struct {
	Role    *string `json:"role" validate:"required,oneof=system user assistant"`
	Content *string `json:"content" validate:"required"`
}

// decodeMessages checks the raw messages field and decodes it. Absent, null,
// non-array and empty values are all rejected with the same message. Every
// element must be an object with a known role and a string content.
func decodeMessages(raw json.RawMessage) ([]types.ChatMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, llmerrors.NewValidationError(MessagesRequiredMessage)
	}

	var wire []*wireMessage
	if err := json.Unmarshal(trimmed, &wire); err != nil {
		return nil, llmerrors.NewValidationError(InvalidMessageMessage)
	}
	if len(wire) == 0 {
		return nil, llmerrors.NewValidationError(MessagesRequiredMessage)
	}

	messages := make([]types.ChatMessage, 0, len(wire))
	for _, m := range wire {
		if m == nil || getValidator().Struct(m) != nil {
			return nil, llmerrors.NewValidationError(InvalidMessageMessage)
		}
		messages = append(messages, types.ChatMessage{Role: *m.Role, Content: *m.Content})
	}
	return messages, nil
}

// checkOptions applies the range rules declared on CompletionRequest.
func checkOptions(req *types.CompletionRequest) error {
	err := getValidator().Struct(req)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return llmerrors.NewValidationError("invalid request options")
	}

	msgs := make([]string, 0, len(validationErrors))
	for _, fieldErr := range validationErrors {
		msgs = append(msgs, fmt.Sprintf("%s must satisfy %s=%s", fieldErr.Field(), fieldErr.Tag(), fieldErr.Param()))
	}
	return llmerrors.NewValidationError("Invalid options: " + strings.Join(msgs, "; "))
}
