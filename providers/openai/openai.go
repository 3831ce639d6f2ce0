// Package openai provides a Completion Provider backed by any server that speaks
// the OpenAI Chat Completions API, including IndiGLM's own inference endpoint.
package openai

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/indiglm/gateway/internal/httputil"
	"github.com/indiglm/gateway/pkg/errors"
	"github.com/indiglm/gateway/pkg/provider"
	"github.com/indiglm/gateway/pkg/types"
)

const (
	// ProviderName is the identifier for this provider.
	ProviderName = "openai"

	// DefaultBaseURL is the default OpenAI API endpoint.
	DefaultBaseURL = "https://api.openai.com/v1"

	// DefaultTimeout bounds a single HTTP exchange with the upstream.
	DefaultTimeout = 60 * time.Second
)

// Provider implements the OpenAI API adapter.
type Provider struct {
	apiKey  string
	baseURL string
	headers map[string]string
	client  *http.Client
}

// New creates a new OpenAI provider with the given options.
func New(opts ...Option) *Provider {
	p := &Provider{
		baseURL: DefaultBaseURL,
		headers: make(map[string]string),
		client:  &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewFromConfig creates a provider from a Config struct.
func NewFromConfig(cfg provider.Config) (provider.Provider, error) {
	if cfg.BaseURL != "" {
		if err := provider.ValidateBaseURL(cfg.BaseURL, cfg.AllowPrivateBaseURL); err != nil {
			return nil, err
		}
	}

	opts := []Option{
		WithAPIKey(cfg.APIKey),
		WithBaseURL(cfg.BaseURL),
		WithTimeout(cfg.Timeout),
	}
	for k, v := range cfg.Headers {
		opts = append(opts, WithHeader(k, v))
	}
	return New(opts...), nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return ProviderName
}

type chatCompletionRequest struct {
	Model       string              `json:"model"`
	Messages    []types.ChatMessage `json:"messages"`
	Temperature float64             `json:"temperature"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
}

// CreateChatCompletion sends one non-streaming chat completion request.
func (p *Provider) CreateChatCompletion(ctx context.Context, messages []types.ChatMessage, opts provider.Options) (*provider.Completion, error) {
	httpReq, err := p.buildRequest(ctx, messages, opts)
	if err != nil {
		return nil, err
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("execute request: %w", ctxErr)
		}
		return nil, &errors.GatewayError{
			StatusCode: http.StatusServiceUnavailable,
			Type:       errors.TypeServiceUnavailable,
			Message:    "upstream request failed",
			Detail:     err.Error(),
			Provider:   ProviderName,
			Model:      opts.Model,
			Retryable:  true,
			Cause:      err,
		}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := httputil.ReadLimitedBody(resp.Body, httputil.DefaultMaxResponseBodyBytes)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, p.mapError(resp.StatusCode, opts.Model, body)
	}

	var completion provider.Completion
	if err := json.Unmarshal(body, &completion); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &completion, nil
}

func (p *Provider) buildRequest(ctx context.Context, messages []types.ChatMessage, opts provider.Options) (*http.Request, error) {
	body, err := json.Marshal(chatCompletionRequest{
		Model:       opts.Model,
		Messages:    messages,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := strings.TrimSuffix(p.baseURL, "/") + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	requestID := provider.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	httpReq.Header.Set("X-Request-ID", requestID)

	for k, v := range p.headers {
		httpReq.Header.Set(k, v)
	}
	return httpReq, nil
}

// mapError converts an OpenAI error response to a GatewayError.
func (p *Provider) mapError(statusCode int, model string, body []byte) error {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
			Code    string `json:"code"`
		} `json:"error"`
	}

	message := "unknown error"
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		message = errResp.Error.Message
	}
	return errors.NewProviderError(ProviderName, model, statusCode, message)
}
