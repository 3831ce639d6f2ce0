package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/indiglm/gateway/internal/gateway"
	llmerrors "github.com/indiglm/gateway/pkg/errors"
	"github.com/indiglm/gateway/pkg/provider"
	"github.com/indiglm/gateway/pkg/types"
)

// recordingProvider captures the messages it receives.
type recordingProvider struct {
	mu         sync.Mutex
	messages   [][]types.ChatMessage
	completion *provider.Completion
	err        error
}

func (p *recordingProvider) Name() string { return "recording" }

func (p *recordingProvider) CreateChatCompletion(_ context.Context, messages []types.ChatMessage, _ provider.Options) (*provider.Completion, error) {
	p.mu.Lock()
	p.messages = append(p.messages, messages)
	p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	if p.completion != nil {
		return p.completion, nil
	}
	return &provider.Completion{
		Choices: []provider.CompletionChoice{{Message: provider.CompletionMessage{Content: "Namaste!"}}},
	}, nil
}

type stubCompleter struct {
	resp *types.CompletionResponse
	err  error
	got  *types.ChatRequest
}

func (s *stubCompleter) CreateCompletion(_ context.Context, req *types.ChatRequest) (*types.CompletionResponse, error) {
	s.got = req
	return s.resp, s.err
}

func newGatewayHandler(p provider.Provider) *Handler {
	policy := gateway.DefaultPolicy()
	policy.RetryCount = 0
	return NewHandler(gateway.New(p, policy), nil)
}

func post(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ChatCompletions(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestChatCompletions_ScenarioA(t *testing.T) {
	p := &recordingProvider{}
	h := newGatewayHandler(p)

	rec := post(t, h, `{"messages":[{"role":"user","content":"Hi"}]}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.Len(t, p.messages, 1)
	assert.Len(t, p.messages[0], 2)

	var resp types.CompletionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "indiglm-1.0", resp.Model)
	assert.Equal(t, "chat.completion", resp.Object)
	assert.True(t, strings.HasPrefix(resp.ID, "indiglm-"))
	assert.Equal(t, "english", resp.ExtensionMetadata.Language)
	assert.True(t, resp.ExtensionMetadata.CulturalAwareness)
	assert.True(t, resp.ExtensionMetadata.RegionalAdaptation)
	require.Len(t, resp.Choices, 1)
	assert.Equal(t, "Namaste!", resp.Choices[0].Message.Content)
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
}

func TestChatCompletions_ResponseShape(t *testing.T) {
	h := newGatewayHandler(&recordingProvider{completion: &provider.Completion{}})

	rec := post(t, h, `{"messages":[{"role":"user","content":"Hi"}],"indian_language":"hindi","cultural_context":false}`)
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	for _, key := range []string{"id", "object", "created", "model", "choices", "usage", "extension_metadata"} {
		assert.Contains(t, body, key)
	}
	assert.Equal(t, map[string]any{
		"language":            "hindi",
		"cultural_awareness":  false,
		"regional_adaptation": true,
	}, body["extension_metadata"])
	assert.Equal(t, map[string]any{
		"prompt_tokens":     float64(0),
		"completion_tokens": float64(0),
		"total_tokens":      float64(0),
	}, body["usage"])
}

func TestChatCompletions_ScenarioB_ProviderFailure(t *testing.T) {
	p := &recordingProvider{err: errors.New("upstream melted")}
	h := newGatewayHandler(p)

	rec := post(t, h, `{"messages":[{"role":"user","content":"Hi"}]}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error","message":"upstream melted"}`, rec.Body.String())
}

func TestChatCompletions_ScenarioC(t *testing.T) {
	p := &recordingProvider{}
	h := newGatewayHandler(p)

	rec := post(t, h, `{"messages":[{"role":"system","content":"X"},{"role":"user","content":"Hi"}],"cultural_context":false}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, p.messages, 1)
	msgs := p.messages[0]
	require.Len(t, msgs, 2)
	assert.Equal(t, gateway.GenericSystemPrompt, msgs[0].Content)
	assert.Equal(t, types.ChatMessage{Role: "user", Content: "Hi"}, msgs[1])
}

func TestChatCompletions_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"empty body", ``, `{"error":"Messages are required and must be an array"}`},
		{"empty object", `{}`, `{"error":"Messages are required and must be an array"}`},
		{"null body", `null`, `{"error":"Messages are required and must be an array"}`},
		{"messages null", `{"messages":null}`, `{"error":"Messages are required and must be an array"}`},
		{"messages string", `{"messages":"Hi"}`, `{"error":"Messages are required and must be an array"}`},
		{"messages empty", `{"messages":[]}`, `{"error":"Messages are required and must be an array"}`},
		{"malformed json", `{"messages":`, `{"error":"Invalid request body"}`},
		{"wrong option type", `{"messages":[{"role":"user","content":"Hi"}],"temperature":"hot"}`, `{"error":"Invalid request body"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &recordingProvider{}
			h := newGatewayHandler(p)

			rec := post(t, h, tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.JSONEq(t, tt.want, rec.Body.String())
			assert.Empty(t, p.messages)
		})
	}
}

func TestChatCompletions_BodyTooLarge(t *testing.T) {
	stub := &stubCompleter{}
	h := NewHandler(stub, nil, WithMaxBodySize(16))

	rec := post(t, h, `{"messages":[{"role":"user","content":"this is far too long"}]}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"Request body too large"}`, rec.Body.String())
	assert.Nil(t, stub.got)
}

func TestChatCompletions_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{
			name:       "upstream timeout",
			err:        llmerrors.NewUpstreamTimeoutError("p", "m", errors.New("deadline")),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"Internal server error","message":"deadline"}`,
		},
		{
			name:       "unknown error hides detail",
			err:        llmerrors.NewUnknownError(errors.New("nil pointer at gateway.go:42")),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"Internal server error","message":"internal error"}`,
		},
		{
			name:       "plain error",
			err:        errors.New("surprise"),
			wantStatus: http.StatusInternalServerError,
			wantBody:   `{"error":"Internal server error","message":"internal error"}`,
		},
		{
			name:       "validation",
			err:        llmerrors.NewValidationError("Invalid options: temperature must satisfy lte=2"),
			wantStatus: http.StatusBadRequest,
			wantBody:   `{"error":"Invalid options: temperature must satisfy lte=2"}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(&stubCompleter{err: tt.err}, nil)

			rec := post(t, h, `{"messages":[{"role":"user","content":"Hi"}]}`)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestChatCompletions_CanceledWritesNoBody(t *testing.T) {
	h := NewHandler(&stubCompleter{err: llmerrors.NewCanceledError(context.Canceled)}, nil)

	rec := post(t, h, `{"messages":[{"role":"user","content":"Hi"}]}`)

	assert.Equal(t, llmerrors.StatusClientClosedRequest, rec.Code)
	assert.Empty(t, rec.Body.String())
}

func TestChatCompletions_PassesOptionalFields(t *testing.T) {
	stub := &stubCompleter{resp: &types.CompletionResponse{Object: types.ObjectChatCompletion}}
	h := NewHandler(stub, nil)

	rec := post(t, h, `{"messages":[{"role":"user","content":"Hi"}],"model":"m","temperature":0.2,"max_tokens":5,"stream":true,"indian_language":"tamil","cultural_context":false,"unknown":1}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, stub.got)
	assert.Equal(t, "m", *stub.got.Model)
	assert.Equal(t, 0.2, *stub.got.Temperature)
	assert.Equal(t, 5, *stub.got.MaxTokens)
	assert.True(t, *stub.got.Stream)
	assert.Equal(t, "tamil", *stub.got.IndianLanguage)
	assert.False(t, *stub.got.CulturalContext)
}

func TestCapabilities(t *testing.T) {
	h := NewHandler(&stubCompleter{}, nil)
	rec := httptest.NewRecorder()

	h.Capabilities(rec, httptest.NewRequest(http.MethodGet, "/v1/chat/completions", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "IndiGLM Chat Completions API", body["message"])
	assert.Equal(t, APIVersion, body["version"])
	assert.NotEmpty(t, body["endpoints"])
	assert.Equal(t, map[string]any{
		"multi_language":          true,
		"cultural_context":        true,
		"indian_regional_support": true,
	}, body["features"])
}

func TestHealthCheck(t *testing.T) {
	h := NewHandler(&stubCompleter{}, nil)
	rec := httptest.NewRecorder()

	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/health/live", bytes.NewReader(nil)))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
