// Package gateway implements the completion gateway: it validates an inbound
// chat request, applies the cultural-context system prompt policy, delegates to
// the completion provider with timeout, retry and circuit breaking, and
// normalizes the result into an OpenAI-compatible response.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/indiglm/gateway/internal/config"
	"github.com/indiglm/gateway/internal/metrics"
	"github.com/indiglm/gateway/internal/observability"
	"github.com/indiglm/gateway/internal/resilience"
	llmerrors "github.com/indiglm/gateway/pkg/errors"
	"github.com/indiglm/gateway/pkg/provider"
	"github.com/indiglm/gateway/pkg/types"
)

var (
	errAttemptTimeout = errors.New("provider attempt timed out")
	errNoCompletion   = errors.New("provider returned no completion")
	errProviderPanic  = errors.New("provider panicked")
)

// Policy is the runtime-adjustable behavior of the gateway.
type Policy struct {
	Defaults        types.Defaults
	KnownModels     []string // reported by name in metrics alongside Defaults.Model
	StrictOptions   bool
	UpstreamTimeout time.Duration
	RetryCount      int
	RetryBackoff    time.Duration
	RetryMaxBackoff time.Duration
	RetryJitter     float64
}

// DefaultPolicy mirrors config.DefaultConfig().Gateway.
func DefaultPolicy() Policy {
	return PolicyFromConfig(config.DefaultConfig().Gateway)
}

// PolicyFromConfig converts the gateway section of the config file.
func PolicyFromConfig(c config.GatewayConfig) Policy {
	return Policy{
		Defaults: types.Defaults{
			Model:                  c.Defaults.Model,
			Temperature:            c.Defaults.Temperature,
			MaxTokens:              c.Defaults.MaxTokens,
			LanguageHint:           c.Defaults.Language,
			CulturalContextEnabled: c.Defaults.CulturalContext,
		},
		KnownModels:     append([]string(nil), c.KnownModels...),
		StrictOptions:   c.StrictOptions,
		UpstreamTimeout: c.UpstreamTimeout,
		RetryCount:      c.RetryCount,
		RetryBackoff:    c.RetryBackoff,
		RetryMaxBackoff: c.RetryMaxBackoff,
		RetryJitter:     c.RetryJitter,
	}
}

type policyState struct {
	Policy
	backoff     *resilience.Backoff
	knownModels map[string]struct{}
}

// modelLabel bounds the model metric label to the configured models so
// caller-chosen names cannot grow the series count.
func (p *policyState) modelLabel(model string) string {
	if _, ok := p.knownModels[model]; ok {
		return model
	}
	return metrics.OtherModel
}

// Gateway is safe for concurrent use. Apart from the policy, the circuit
// breaker and metrics, no state is shared between requests.
type Gateway struct {
	provider provider.Provider
	policy   atomic.Pointer[policyState]
	breaker  *resilience.CircuitBreaker
	logger   *observability.Logger
	tracer   trace.Tracer
	now      func() time.Time
	sleep    func(context.Context, time.Duration) error
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger. The default discards output.
func WithLogger(logger *observability.Logger) Option {
	return func(g *Gateway) { g.logger = logger }
}

// WithTracer sets the tracer used for provider call spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(g *Gateway) { g.tracer = tracer }
}

// WithCircuitBreaker guards provider calls with cb. Without it every call goes through.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(g *Gateway) { g.breaker = cb }
}

// WithClock overrides the time source used for generated IDs and timestamps.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) { g.now = now }
}

// New creates a gateway in front of p.
func New(p provider.Provider, policy Policy, opts ...Option) *Gateway {
	g := &Gateway{
		provider: p,
		logger:   observability.NopLogger(),
		tracer:   otel.Tracer(observability.TracerName),
		now:      time.Now,
		sleep:    resilience.Sleep,
	}
	for _, opt := range opts {
		opt(g)
	}
	g.SetPolicy(policy)

	if g.breaker != nil {
		g.breaker.OnStateChange(func(name string, from, to resilience.CircuitState) {
			metrics.SetCircuitState(name, int(to))
			g.logger.Warn("circuit breaker state changed", "provider", name, "from", from.String(), "to", to.String())
		})
	}
	return g
}

// SetPolicy swaps the policy for subsequent requests. In-flight requests keep
// the policy they started with.
func (g *Gateway) SetPolicy(p Policy) {
	if p.UpstreamTimeout <= 0 {
		p.UpstreamTimeout = DefaultPolicy().UpstreamTimeout
	}
	if p.RetryCount < 0 {
		p.RetryCount = 0
	}
	known := make(map[string]struct{}, len(p.KnownModels)+1)
	known[p.Defaults.Model] = struct{}{}
	for _, m := range p.KnownModels {
		known[m] = struct{}{}
	}
	g.policy.Store(&policyState{
		Policy:      p,
		backoff:     resilience.NewBackoff(p.RetryBackoff, p.RetryMaxBackoff, p.RetryJitter),
		knownModels: known,
	})
}

// Policy returns the active policy.
func (g *Gateway) Policy() Policy {
	return g.policy.Load().Policy
}

// CreateCompletion runs one chat completion. A nil response is always paired
// with a *errors.GatewayError.
func (g *Gateway) CreateCompletion(ctx context.Context, req *types.ChatRequest) (*types.CompletionResponse, error) {
	start := g.now()
	pol := g.policy.Load()
	logger := g.logger.WithRequestID(ctx)

	creq, err := g.prepare(req, pol)
	label := pol.modelLabel(creq.Model)
	if err != nil {
		metrics.RecordCompletion(label, metrics.OutcomeRejected, g.now().Sub(start))
		logger.Debug("completion request rejected", "error", err)
		return nil, err
	}

	messages := BuildMessages(creq.Messages, creq.LanguageHint, creq.CulturalContextEnabled)

	completion, err := g.delegate(ctx, pol, creq, messages, logger)
	if err != nil {
		outcome := metrics.OutcomeFailed
		var gwErr *llmerrors.GatewayError
		if errors.As(err, &gwErr) && gwErr.Type == llmerrors.TypeCanceled {
			outcome = metrics.OutcomeCanceled
		}
		metrics.RecordCompletion(label, outcome, g.now().Sub(start))
		return nil, err
	}

	resp := Normalize(completion, creq, g.now())
	metrics.RecordTokens(label, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	metrics.RecordCompletion(label, metrics.OutcomeSuccess, g.now().Sub(start))
	return resp, nil
}

// prepare validates req and applies defaults. The returned request carries the
// resolved model even on error so rejections can be attributed.
func (g *Gateway) prepare(req *types.ChatRequest, pol *policyState) (types.CompletionRequest, error) {
	creq := pol.Defaults.Apply(req)
	if req == nil {
		return creq, llmerrors.NewValidationError(MessagesRequiredMessage)
	}

	messages, err := decodeMessages(req.Messages)
	if err != nil {
		return creq, err
	}
	creq.Messages = messages

	if pol.StrictOptions {
		if err := checkOptions(&creq); err != nil {
			return creq, err
		}
	}
	return creq, nil
}

func (g *Gateway) delegate(ctx context.Context, pol *policyState, creq types.CompletionRequest, messages []types.ChatMessage, logger *observability.Logger) (*provider.Completion, error) {
	name := g.provider.Name()
	opts := provider.Options{
		Model:       creq.Model,
		Temperature: creq.Temperature,
		MaxTokens:   creq.MaxTokens,
	}
	if id := observability.RequestIDFromContext(ctx); id != "" {
		ctx = provider.WithRequestID(ctx, id)
	}

	var lastErr error
	for attempt := 1; attempt <= pol.RetryCount+1; attempt++ {
		if attempt > 1 {
			metrics.RecordRetry(name)
			delay := pol.backoff.Delay(attempt - 1)
			logger.RedactedWarn("retrying completion provider",
				"provider", name, "attempt", attempt, "delay", delay.String(), "error", lastErr)
			if err := g.sleep(ctx, delay); err != nil {
				return nil, g.canceled(ctx, logger)
			}
		}
		if ctx.Err() != nil {
			return nil, g.canceled(ctx, logger)
		}

		if g.breaker != nil && !g.breaker.Allow() {
			metrics.RecordUpstreamError(name, "circuit_open")
			err := llmerrors.NewUpstreamError(name, creq.Model, resilience.ErrCircuitOpen)
			logger.RedactedError("completion provider unavailable", "provider", name, "error", err)
			return nil, err
		}

		completion, err := g.attempt(ctx, pol, creq, messages, opts, attempt)
		if err == nil {
			if g.breaker != nil {
				g.breaker.RecordSuccess()
			}
			return completion, nil
		}
		if ctx.Err() != nil {
			return nil, g.canceled(ctx, logger)
		}

		lastErr = err
		retryable := isRetryable(err)
		if g.breaker != nil {
			if retryable {
				g.breaker.RecordFailure()
			} else {
				// A request the upstream refused is not an upstream outage.
				g.breaker.RecordSuccess()
			}
		}
		if !retryable {
			break
		}
	}

	gwErr := classify(name, creq.Model, lastErr)
	metrics.RecordUpstreamError(name, gwErr.Type)
	logger.RedactedError("completion provider failed",
		"provider", name, "model", creq.Model, "type", gwErr.Type, "error", lastErr)
	return nil, gwErr
}

type attemptResult struct {
	completion *provider.Completion
	err        error
}

// attempt makes one provider call bounded by the upstream timeout. The call
// runs on its own goroutine so a provider that ignores ctx cannot hold the
// request past its deadline.
func (g *Gateway) attempt(ctx context.Context, pol *policyState, creq types.CompletionRequest, messages []types.ChatMessage, opts provider.Options, n int) (*provider.Completion, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, pol.UpstreamTimeout)
	defer cancel()

	spanCtx, span := observability.StartCompletionSpan(attemptCtx, g.tracer, observability.CompletionSpanAttributes{
		Provider:        g.provider.Name(),
		Model:           opts.Model,
		MaxTokens:       opts.MaxTokens,
		Temperature:     opts.Temperature,
		Language:        creq.LanguageHint,
		CulturalContext: creq.CulturalContextEnabled,
		Attempt:         n,
	})
	defer span.End()

	done := make(chan attemptResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- attemptResult{err: fmt.Errorf("%w: %v", errProviderPanic, r)}
			}
		}()
		c, err := g.provider.CreateChatCompletion(spanCtx, messages, opts)
		done <- attemptResult{completion: c, err: err}
	}()

	var res attemptResult
	select {
	case res = <-done:
	case <-attemptCtx.Done():
		res.err = attemptCtx.Err()
	}

	err := res.err
	if err == nil && res.completion == nil {
		err = errNoCompletion
	}
	if err != nil {
		if ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s: %w", errAttemptTimeout, pol.UpstreamTimeout, err)
		}
		observability.RecordError(span, err)
		return nil, err
	}

	finish := ""
	if len(res.completion.Choices) > 0 {
		finish = res.completion.Choices[0].FinishReason
	}
	if u := res.completion.Usage; u != nil {
		observability.RecordCompletionResponse(span, u.PromptTokens, u.CompletionTokens, finish)
	}
	return res.completion, nil
}

func (g *Gateway) canceled(ctx context.Context, logger *observability.Logger) error {
	logger.Debug("completion canceled by caller", "error", ctx.Err())
	return llmerrors.NewCanceledError(ctx.Err())
}

// isRetryable reports whether another attempt could succeed.
func isRetryable(err error) bool {
	if errors.Is(err, errAttemptTimeout) || llmerrors.IsRetryable(err) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// classify maps the final attempt error to the caller-facing taxonomy.
func classify(providerName, model string, err error) *llmerrors.GatewayError {
	switch {
	case errors.Is(err, errAttemptTimeout):
		return llmerrors.NewUpstreamTimeoutError(providerName, model, err)
	case errors.Is(err, errNoCompletion), errors.Is(err, errProviderPanic):
		return llmerrors.NewUnknownError(err)
	}
	return llmerrors.NewUpstreamError(providerName, model, err)
}
