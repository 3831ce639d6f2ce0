// Package main is the entry point for the IndiGLM gateway server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/indiglm/gateway/internal/api"
	"github.com/indiglm/gateway/internal/config"
	"github.com/indiglm/gateway/internal/gateway"
	"github.com/indiglm/gateway/internal/observability"
	"github.com/indiglm/gateway/internal/ratelimit"
	"github.com/indiglm/gateway/internal/resilience"
	"github.com/indiglm/gateway/internal/secret"
	"github.com/indiglm/gateway/internal/secret/env"
	"github.com/indiglm/gateway/pkg/provider"
	"github.com/indiglm/gateway/providers"
)

const version = "1.0.0"

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to configuration file")
	flag.Parse()

	// Bootstrap logger until the configured one is built.
	bootLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfgManager, err := config.NewManager(*configPath, bootLogger)
	if err != nil {
		bootLogger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	cfg := cfgManager.Get()

	redactor := observability.NewRedactor()
	logger := newLogger(cfg.Logging, redactor)
	slog.SetDefault(logger.Slog())

	logger.Info("starting IndiGLM gateway", "version", version, "config_from_file", cfgManager.Status().FromFile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := buildApp(ctx, cfg, logger, redactor)
	if err != nil {
		logger.Error("failed to initialize gateway", "error", err)
		os.Exit(1)
	}

	// Policy (defaults, retries, strictness) follows the config file live.
	cfgManager.OnChange(func(next *config.Config) {
		a.gateway.SetPolicy(gateway.PolicyFromConfig(next.Gateway))
		logger.Info("gateway policy reloaded", "checksum", cfgManager.Status().Checksum)
	})
	if err := cfgManager.Watch(ctx); err != nil {
		logger.Warn("config hot-reload disabled", "error", err)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      a.handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("server listening", "port", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	a.close(shutdownCtx)
	if err := cfgManager.Close(); err != nil {
		logger.Warn("config manager close failed", "error", err)
	}
	logger.Info("server stopped")
}

// app is the wired gateway: the HTTP handler plus everything that needs
// releasing on shutdown.
type app struct {
	gateway *gateway.Gateway
	handler http.Handler
	limiter *ratelimit.ClientLimiter
	tracer  *observability.TracerProvider
	secrets *secret.Manager
	logger  *observability.Logger
}

func newLogger(cfg config.LoggingConfig, redactor *observability.Redactor) *observability.Logger {
	return observability.NewLogger(observability.LoggerConfig{
		Level:      observability.ParseLevel(cfg.Level),
		Output:     os.Stdout,
		JSONFormat: cfg.Format != "text",
	}, redactor)
}

func buildApp(ctx context.Context, cfg *config.Config, logger *observability.Logger, redactor *observability.Redactor) (*app, error) {
	if cfg == nil {
		return nil, errNilConfig
	}

	secrets := secret.NewManager()
	secrets.Register("env", secret.NewCachedProvider(env.New(), cfg.Secrets.CacheTTL))

	res, err := secret.ResolveAPIKey(ctx, secrets, cfg.Provider.APIKey, cfg.Provider.DemoAPIKey)
	if err != nil {
		_ = secrets.Close()
		return nil, fmt.Errorf("resolve provider api key: %w", err)
	}
	if res.UsedFallback {
		logger.Warn("provider api key not configured, using demo key", "ref", cfg.Provider.APIKey)
	}
	if redactor != nil {
		redactor.AddSecret(res.Key)
	}

	p, err := providers.Create(provider.Config{
		Name:                cfg.Provider.Name,
		Type:                cfg.Provider.Type,
		APIKey:              res.Key,
		BaseURL:             cfg.Provider.BaseURL,
		AllowPrivateBaseURL: cfg.Provider.AllowPrivateBaseURL,
		Timeout:             cfg.Provider.Timeout,
		Headers:             cfg.Provider.Headers,
	})
	if err != nil {
		_ = secrets.Close()
		return nil, fmt.Errorf("create provider: %w", err)
	}
	logger.Info("provider registered", "name", p.Name(), "type", cfg.Provider.Type)

	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:        cfg.Tracing.Enabled,
		Endpoint:       cfg.Tracing.Endpoint,
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version,
		SampleRate:     cfg.Tracing.SampleRate,
		Insecure:       cfg.Tracing.Insecure,
	})
	if err != nil {
		_ = secrets.Close()
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	opts := []gateway.Option{
		gateway.WithLogger(logger),
		gateway.WithTracer(tp.Tracer()),
	}
	if cfg.CircuitBreaker.Enabled {
		cb := resilience.NewCircuitBreaker(p.Name(), resilience.CircuitBreakerConfig{
			FailureThreshold:    cfg.CircuitBreaker.FailureThreshold,
			SuccessThreshold:    cfg.CircuitBreaker.SuccessThreshold,
			Timeout:             cfg.CircuitBreaker.Timeout,
			HalfOpenMaxRequests: cfg.CircuitBreaker.HalfOpenMaxRequests,
		})
		opts = append(opts, gateway.WithCircuitBreaker(cb))
	}
	gw := gateway.New(p, gateway.PolicyFromConfig(cfg.Gateway), opts...)

	handler := api.NewHandler(gw, logger, api.WithMaxBodySize(cfg.Server.MaxBodySize))
	mux, err := buildMux(cfg, handler)
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = secrets.Close()
		return nil, err
	}

	var limiter *ratelimit.ClientLimiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(ratelimit.Config{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.BurstSize,
			TrustedProxyCIDRs: cfg.RateLimit.TrustedProxies,
			Logger:            logger.Slog(),
		})
		logger.Info("rate limiting enabled", "requests_per_minute", cfg.RateLimit.RequestsPerMinute, "burst", cfg.RateLimit.BurstSize)
	}

	return &app{
		gateway: gw,
		handler: buildMiddlewareStack(limiter)(mux),
		limiter: limiter,
		tracer:  tp,
		secrets: secrets,
		logger:  logger,
	}, nil
}

func (a *app) close(ctx context.Context) {
	if a.limiter != nil {
		a.limiter.Close()
	}
	if err := a.tracer.Shutdown(ctx); err != nil {
		a.logger.Warn("tracer shutdown failed", "error", err)
	}
	if err := a.secrets.Close(); err != nil {
		a.logger.Warn("secret manager close failed", "error", err)
	}
}
