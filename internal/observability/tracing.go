package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation name used for gateway spans.
const TracerName = "indiglm-gateway"

// TracingConfig contains configuration for OpenTelemetry tracing.
type TracingConfig struct {
	Enabled        bool
	Endpoint       string // OTLP gRPC endpoint, e.g. "localhost:4317"
	ServiceName    string
	ServiceVersion string
	SampleRate     float64 // 0.0 to 1.0
	Insecure       bool
}

// DefaultTracingConfig returns sensible defaults.
func DefaultTracingConfig() TracingConfig {
	return TracingConfig{
		Enabled:        false,
		Endpoint:       "localhost:4317",
		ServiceName:    "indiglm-gateway",
		ServiceVersion: "1.0.0",
		SampleRate:     1.0,
		Insecure:       true,
	}
}

// TracerProvider wraps the OpenTelemetry tracer provider.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// InitTracing initializes OpenTelemetry tracing. When disabled it returns a
// provider backed by the global (no-op by default) tracer.
func InitTracing(ctx context.Context, cfg TracingConfig) (*TracerProvider, error) {
	if !cfg.Enabled {
		return &TracerProvider{
			tracer: otel.Tracer(TracerName),
		}, nil
	}

	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, err
	}

	version := cfg.ServiceVersion
	if version == "" {
		version = "dev"
	}
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, err
	}

	var sampler sdktrace.Sampler
	switch {
	case cfg.SampleRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case cfg.SampleRate <= 0.0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &TracerProvider{
		provider: provider,
		tracer:   provider.Tracer(TracerName),
	}, nil
}

// Tracer returns the tracer instance.
func (tp *TracerProvider) Tracer() trace.Tracer {
	return tp.tracer
}

// Shutdown flushes and stops the exporter, if any.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.provider != nil {
		return tp.provider.Shutdown(ctx)
	}
	return nil
}

// CompletionSpanAttributes are recorded on every provider call span.
type CompletionSpanAttributes struct {
	Provider        string
	Model           string
	MaxTokens       int
	Temperature     float64
	Language        string
	CulturalContext bool
	Attempt         int
}

// StartCompletionSpan starts a client span around one provider attempt.
func StartCompletionSpan(ctx context.Context, tracer trace.Tracer, attrs CompletionSpanAttributes) (context.Context, trace.Span) {
	return tracer.Start(ctx, "chat.completion",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("gen_ai.system", attrs.Provider),
			attribute.String("gen_ai.request.model", attrs.Model),
			attribute.Int("gen_ai.request.max_tokens", attrs.MaxTokens),
			attribute.Float64("gen_ai.request.temperature", attrs.Temperature),
			attribute.String("indiglm.language", attrs.Language),
			attribute.Bool("indiglm.cultural_context", attrs.CulturalContext),
			attribute.Int("indiglm.attempt", attrs.Attempt),
		),
	)
}

// RecordCompletionResponse records usage and finish reason on a span.
func RecordCompletionResponse(span trace.Span, promptTokens, completionTokens int, finishReason string) {
	span.SetAttributes(
		attribute.Int("gen_ai.usage.input_tokens", promptTokens),
		attribute.Int("gen_ai.usage.output_tokens", completionTokens),
		attribute.String("gen_ai.response.finish_reason", finishReason),
	)
}

// RecordError records an error on a span and marks it failed.
func RecordError(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
