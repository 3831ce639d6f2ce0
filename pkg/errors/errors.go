// Package errors defines the error taxonomy of the completion gateway.
// Provider failures and request problems are mapped to these types before
// they reach the HTTP boundary.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusClientClosedRequest is used when the caller went away before a
// response could be produced. Nothing is written to the client in that case.
const StatusClientClosedRequest = 499

// Error types as constants for consistency.
const (
	TypeInvalidRequest     = "invalid_request_error"
	TypeUpstream           = "upstream_error"
	TypeUpstreamTimeout    = "upstream_timeout"
	TypeCanceled           = "request_canceled"
	TypeUnknown            = "unknown_error"
	TypeAuthentication     = "authentication_error"
	TypeRateLimit          = "rate_limit_error"
	TypeNotFound           = "not_found_error"
	TypeServiceUnavailable = "service_unavailable_error"
)

// GatewayError is the single error type surfaced by the gateway.
// Message is safe to show to callers. Detail carries the upstream diagnostic
// text, and Cause keeps the original error for server-side logs only.
type GatewayError struct {
	StatusCode int    `json:"status_code"`
	Type       string `json:"type"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	Provider   string `json:"provider,omitempty"`
	Model      string `json:"model,omitempty"`
	Retryable  bool   `json:"-"`
	Cause      error  `json:"-"`
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Type, e.Message)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Provider != "" || e.Model != "" {
		msg += fmt.Sprintf(" (provider=%s, model=%s)", e.Provider, e.Model)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *GatewayError) Unwrap() error {
	return e.Cause
}

// HTTPStatusCode returns the appropriate HTTP status code for the error.
func (e *GatewayError) HTTPStatusCode() int {
	if e.StatusCode > 0 {
		return e.StatusCode
	}
	return http.StatusInternalServerError
}

// NewValidationError creates a request validation error (400).
func NewValidationError(message string) *GatewayError {
	return &GatewayError{
		StatusCode: http.StatusBadRequest,
		Type:       TypeInvalidRequest,
		Message:    message,
	}
}

// NewUpstreamError wraps a provider failure that exhausted every attempt (500).
func NewUpstreamError(provider, model string, cause error) *GatewayError {
	return &GatewayError{
		StatusCode: http.StatusInternalServerError,
		Type:       TypeUpstream,
		Message:    "completion provider failed",
		Detail:     upstreamDetail(cause),
		Provider:   provider,
		Model:      model,
		Cause:      cause,
	}
}

// NewUpstreamTimeoutError reports that the provider did not answer in time (500).
func NewUpstreamTimeoutError(provider, model string, cause error) *GatewayError {
	return &GatewayError{
		StatusCode: http.StatusInternalServerError,
		Type:       TypeUpstreamTimeout,
		Message:    "completion provider timed out",
		Detail:     upstreamDetail(cause),
		Provider:   provider,
		Model:      model,
		Cause:      cause,
	}
}

// NewCanceledError reports that the caller cancelled the request.
func NewCanceledError(cause error) *GatewayError {
	return &GatewayError{
		StatusCode: StatusClientClosedRequest,
		Type:       TypeCanceled,
		Message:    "request canceled",
		Cause:      cause,
	}
}

// NewUnknownError wraps any failure that fits no other category (500).
func NewUnknownError(cause error) *GatewayError {
	detail := ""
	if cause != nil {
		detail = cause.Error()
	}
	return &GatewayError{
		StatusCode: http.StatusInternalServerError,
		Type:       TypeUnknown,
		Message:    "internal error",
		Detail:     detail,
		Cause:      cause,
	}
}

// NewProviderError maps an upstream HTTP failure to a GatewayError.
// Retryable is derived from the status code.
func NewProviderError(provider, model string, statusCode int, message string) *GatewayError {
	errType := TypeUpstream
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		errType = TypeAuthentication
	case http.StatusTooManyRequests:
		errType = TypeRateLimit
	case http.StatusNotFound:
		errType = TypeNotFound
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		errType = TypeUpstreamTimeout
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		errType = TypeServiceUnavailable
	}
	return &GatewayError{
		StatusCode: statusCode,
		Type:       errType,
		Message:    message,
		Provider:   provider,
		Model:      model,
		Retryable:  IsRetryableStatus(statusCode),
	}
}

// IsRetryableStatus reports whether an upstream status is worth another attempt.
// Rate limits, timeouts, and all 5xx errors are retried; other 4xx are client errors.
func IsRetryableStatus(statusCode int) bool {
	switch statusCode {
	case http.StatusTooManyRequests, http.StatusRequestTimeout:
		return true
	}
	return statusCode >= 500
}

// IsRetryable reports whether err carries a retryable GatewayError.
func IsRetryable(err error) bool {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Retryable
	}
	return false
}

func upstreamDetail(cause error) string {
	if cause == nil {
		return ""
	}
	var gwErr *GatewayError
	if errors.As(cause, &gwErr) {
		if gwErr.Detail != "" {
			return gwErr.Message + ": " + gwErr.Detail
		}
		return gwErr.Message
	}
	return cause.Error()
}
