// Package api provides HTTP handlers for the IndiGLM gateway.
// It implements the OpenAI-compatible chat completions endpoint.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/indiglm/gateway/internal/httputil"
	"github.com/indiglm/gateway/internal/observability"
	llmerrors "github.com/indiglm/gateway/pkg/errors"
	"github.com/indiglm/gateway/pkg/types"
)

// Completer runs one chat completion. *gateway.Gateway implements it.
type Completer interface {
	CreateCompletion(ctx context.Context, req *types.ChatRequest) (*types.CompletionResponse, error)
}

// Handler handles HTTP requests for the completion gateway.
type Handler struct {
	gateway     Completer
	logger      *observability.Logger
	maxBodySize int64
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithMaxBodySize caps inbound request bodies. Non-positive values keep the default.
func WithMaxBodySize(n int64) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.maxBodySize = n
		}
	}
}

// NewHandler creates a new API handler.
func NewHandler(gw Completer, logger *observability.Logger, opts ...HandlerOption) *Handler {
	if logger == nil {
		logger = observability.NopLogger()
	}
	h := &Handler{
		gateway:     gw,
		logger:      logger,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ChatCompletions handles POST /v1/chat/completions requests.
func (h *Handler) ChatCompletions(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	body, err := httputil.ReadLimitedBody(r.Body, h.maxBodySize)
	if err != nil {
		if errors.Is(err, httputil.ErrBodyTooLarge) {
			h.writeError(w, r, llmerrors.NewValidationError("Request body too large"))
			return
		}
		h.writeError(w, r, llmerrors.NewValidationError("Failed to read request body"))
		return
	}

	var req types.ChatRequest
	// An empty body is treated as an empty object so that it fails message
	// validation like any other body without messages.
	if len(body) > 0 {
		// Optional fields decode into typed pointers, so a wrongly typed value
		// such as "temperature":"hot" cannot be passed through and is rejected
		// with the generic body error.
		if err := json.Unmarshal(body, &req); err != nil {
			h.logger.WithRequestID(r.Context()).Debug("invalid request body", "error", err)
			h.writeError(w, r, llmerrors.NewValidationError("Invalid request body"))
			return
		}
	}

	resp, err := h.gateway.CreateCompletion(r.Context(), &req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Capabilities handles GET /v1/chat/completions with a static API descriptor.
func (h *Handler) Capabilities(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, CapabilityDescriptor())
}

// CapabilityDescriptor describes the completion API.
func CapabilityDescriptor() types.CapabilityDescriptor {
	return types.CapabilityDescriptor{
		Message: "IndiGLM Chat Completions API",
		Version: APIVersion,
		Endpoints: map[string]string{
			"POST /v1/chat/completions": "Create a chat completion with Indian cultural context",
			"GET /v1/chat/completions":  "Describe the chat completions API",
		},
		Features: types.Features{
			MultiLanguage:         true,
			CulturalContext:       true,
			IndianRegionalSupport: true,
		},
	}
}

// HealthCheck handles GET /health/live and /health/ready endpoints.
func (h *Handler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
