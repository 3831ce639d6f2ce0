// Package metrics provides Prometheus metrics for the completion gateway.
// It tracks completion outcomes, latencies, token usage, upstream errors,
// retries, circuit breaker state and rate limiting.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "indiglm"

// LatencyBuckets defines histogram buckets for latency metrics (in seconds).
var LatencyBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120}

var (
	// CompletionsTotal counts gateway completions by model and outcome.
	CompletionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completions_total",
			Help:      "Total chat completion requests handled by the gateway",
		},
		[]string{"model", "outcome"},
	)

	// CompletionLatency tracks end-to-end completion latency.
	CompletionLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "completion_latency_seconds",
			Help:      "Chat completion latency in seconds, including retries",
			Buckets:   LatencyBuckets,
		},
		[]string{"model"},
	)

	// TokenUsage tracks token consumption reported by the provider.
	TokenUsage = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_usage_total",
			Help:      "Total token usage reported by the provider",
		},
		[]string{"model", "type"}, // type: prompt, completion
	)

	// UpstreamErrors counts provider failures by type.
	UpstreamErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "Total upstream errors by type",
		},
		[]string{"provider", "error_type"},
	)

	// UpstreamRetries counts retried provider attempts.
	UpstreamRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_retries_total",
			Help:      "Total retried provider attempts",
		},
		[]string{"provider"},
	)

	// CircuitBreakerState tracks circuit breaker status.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"provider"},
	)

	// RateLimited counts requests rejected by the rate limiter.
	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Total requests rejected by the rate limiter",
		},
	)

	// HTTPRequestsTotal counts HTTP requests by route, method and status code.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		},
		[]string{"route", "method", "status_code"},
	)

	// HTTPRequestDuration tracks HTTP request latency by route.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   LatencyBuckets,
		},
		[]string{"route", "method"},
	)
)

// OtherModel labels completions for models outside the configured set.
const OtherModel = "other"

// Completion outcomes.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
	OutcomeCanceled = "canceled"
)

// RecordCompletion records the outcome and latency of one gateway completion.
func RecordCompletion(model, outcome string, latency time.Duration) {
	model = sanitizeModelLabel(model)
	CompletionsTotal.WithLabelValues(model, outcome).Inc()
	CompletionLatency.WithLabelValues(model).Observe(latency.Seconds())
}

// RecordTokens records token usage metrics.
func RecordTokens(model string, promptTokens, completionTokens int) {
	model = sanitizeModelLabel(model)
	if promptTokens > 0 {
		TokenUsage.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		TokenUsage.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
}

// RecordUpstreamError records an upstream error.
func RecordUpstreamError(provider, errorType string) {
	UpstreamErrors.WithLabelValues(provider, errorType).Inc()
}

// RecordRetry records one retried provider attempt.
func RecordRetry(provider string) {
	UpstreamRetries.WithLabelValues(provider).Inc()
}

// SetCircuitState publishes the breaker state for a provider.
func SetCircuitState(provider string, state int) {
	CircuitBreakerState.WithLabelValues(provider).Set(float64(state))
}

// RecordRateLimited records a request rejected by the rate limiter.
func RecordRateLimited() {
	RateLimited.Inc()
}

const maxModelLabelLen = 64

// sanitizeModelLabel bounds label cardinality for caller-supplied model names.
func sanitizeModelLabel(model string) string {
	model = strings.TrimSpace(model)
	if model == "" {
		return "unknown"
	}

	var b strings.Builder
	b.Grow(min(len(model), maxModelLabelLen))
	for _, r := range model {
		if (r >= 'a' && r <= 'z') ||
			(r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') ||
			r == '-' || r == '_' || r == '.' || r == ':' || r == '/' {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
		if b.Len() >= maxModelLabelLen {
			break
		}
	}

	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "unknown"
	}
	return out
}
