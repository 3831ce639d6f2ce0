package openai

import (
	"net/http"
	"time"
)

// Option configures the OpenAI provider.
type Option func(*Provider)

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(p *Provider) {
		p.apiKey = key
	}
}

// WithBaseURL sets the base URL.
func WithBaseURL(url string) Option {
	return func(p *Provider) {
		if url != "" {
			p.baseURL = url
		}
	}
}

// WithTimeout overrides the HTTP client timeout. Non-positive values are ignored.
func WithTimeout(timeout time.Duration) Option {
	return func(p *Provider) {
		if timeout > 0 {
			p.client.Timeout = timeout
		}
	}
}

// WithHTTPClient replaces the HTTP client, e.g. to share a transport.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Provider) {
		if client != nil {
			p.client = client
		}
	}
}

// WithHeader adds a custom header.
func WithHeader(key, value string) Option {
	return func(p *Provider) {
		p.headers[key] = value
	}
}
