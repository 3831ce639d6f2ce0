package main

import (
	"net/http"

	"github.com/indiglm/gateway/internal/metrics"
	"github.com/indiglm/gateway/internal/observability"
	"github.com/indiglm/gateway/internal/ratelimit"
)

// buildMiddlewareStack wraps the mux, outermost first: request ID, metrics,
// then the client rate limiter when one is configured.
func buildMiddlewareStack(limiter *ratelimit.ClientLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if next == nil {
			return nil
		}
		handler := next
		if limiter != nil {
			handler = limiter.Middleware(handler)
		}
		handler = metrics.Middleware(handler)
		handler = observability.RequestIDMiddleware(handler)
		return handler
	}
}
