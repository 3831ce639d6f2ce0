// Package config provides configuration management with hot-reload support.
// It uses fsnotify to watch for file changes and atomic pointer swaps for zero-downtime updates.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DemoAPIKey is used when no real key is configured. Local and demo use only.
const DemoAPIKey = "indiglm-demo-key"

// Config represents the complete gateway configuration.
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Provider       ProviderConfig       `yaml:"provider"`
	Gateway        GatewayConfig        `yaml:"gateway"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	Secrets        SecretsConfig        `yaml:"secrets"`
	Logging        LoggingConfig        `yaml:"logging"`
	Metrics        MetricsConfig        `yaml:"metrics"`
	Tracing        TracingConfig        `yaml:"tracing"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodySize     int64         `yaml:"max_body_size"`
}

// ProviderConfig defines the upstream completion provider.
type ProviderConfig struct {
	Name                string            `yaml:"name"`
	Type                string            `yaml:"type"`
	BaseURL             string            `yaml:"base_url"`
	APIKey              string            `yaml:"api_key"` // literal or secret reference, e.g. env://INDIGLM_API_KEY
	DemoAPIKey          string            `yaml:"demo_api_key"`
	AllowPrivateBaseURL bool              `yaml:"allow_private_base_url"`
	Timeout             time.Duration     `yaml:"timeout"`
	Headers             map[string]string `yaml:"headers"`
}

// GatewayConfig holds the completion policy. It is safe to change at runtime.
type GatewayConfig struct {
	Defaults        DefaultsConfig `yaml:"defaults"`
	KnownModels     []string       `yaml:"known_models"` // reported by name in metrics; others as "other"
	StrictOptions   bool           `yaml:"strict_options"`
	UpstreamTimeout time.Duration  `yaml:"upstream_timeout"`
	RetryCount      int            `yaml:"retry_count"`
	RetryBackoff    time.Duration  `yaml:"retry_backoff"`
	RetryMaxBackoff time.Duration  `yaml:"retry_max_backoff"`
	RetryJitter     float64        `yaml:"retry_jitter"`
}

// DefaultsConfig supplies values for optional request fields.
type DefaultsConfig struct {
	Model           string  `yaml:"model"`
	Temperature     float64 `yaml:"temperature"`
	MaxTokens       int     `yaml:"max_tokens"`
	Language        string  `yaml:"language"`
	CulturalContext bool    `yaml:"cultural_context"`
}

// CircuitBreakerConfig configures the upstream circuit breaker.
type CircuitBreakerConfig struct {
	Enabled             bool          `yaml:"enabled"`
	FailureThreshold    int           `yaml:"failure_threshold"`
	SuccessThreshold    int           `yaml:"success_threshold"`
	Timeout             time.Duration `yaml:"timeout"`
	HalfOpenMaxRequests int           `yaml:"half_open_max_requests"`
}

// RateLimitConfig defines rate limiting parameters.
type RateLimitConfig struct {
	Enabled           bool     `yaml:"enabled"`
	RequestsPerMinute int      `yaml:"requests_per_minute"`
	BurstSize         int      `yaml:"burst_size"`
	TrustedProxies    []string `yaml:"trusted_proxies"`
}

// SecretsConfig controls secret resolution.
type SecretsConfig struct {
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// MetricsConfig contains Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// TracingConfig contains OpenTelemetry tracing settings.
type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	Endpoint    string  `yaml:"endpoint"`     // OTLP endpoint (e.g., "localhost:4317")
	ServiceName string  `yaml:"service_name"` // Service name for traces
	SampleRate  float64 `yaml:"sample_rate"`  // Sampling rate (0.0 to 1.0)
	Insecure    bool    `yaml:"insecure"`     // Use insecure connection (no TLS)
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 60 * time.Second,
			MaxBodySize:     10 * 1024 * 1024,
		},
		Provider: ProviderConfig{
			Name:       "indiglm",
			Type:       "openai",
			APIKey:     "env://INDIGLM_API_KEY",
			DemoAPIKey: DemoAPIKey,
			Timeout:    60 * time.Second,
		},
		Gateway: GatewayConfig{
			Defaults: DefaultsConfig{
				Model:           "indiglm-1.0",
				Temperature:     0.7,
				MaxTokens:       1000,
				Language:        "english",
				CulturalContext: true,
			},
			UpstreamTimeout: 30 * time.Second,
			RetryCount:      2,
			RetryBackoff:    200 * time.Millisecond,
			RetryMaxBackoff: 2 * time.Second,
			RetryJitter:     0.2,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:             true,
			FailureThreshold:    5,
			SuccessThreshold:    2,
			Timeout:             30 * time.Second,
			HalfOpenMaxRequests: 3,
		},
		RateLimit: RateLimitConfig{
			Enabled:           false,
			RequestsPerMinute: 60,
			BurstSize:         10,
		},
		Secrets: SecretsConfig{
			CacheTTL: 5 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Endpoint:    "localhost:4317",
			ServiceName: "indiglm-gateway",
			SampleRate:  1.0,
			Insecure:    true,
		},
	}
}

// LoadFromFile reads and parses a YAML configuration file.
// Environment variables in the format ${VAR_NAME} are expanded.
func LoadFromFile(path string) (*Config, error) {
	cfg, _, err := loadFile(path)
	return cfg, err
}

func loadFile(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, "", err
	}
	sum := sha256.Sum256(data)
	return cfg, hex.EncodeToString(sum[:]), nil
}

// Parse decodes YAML over DefaultConfig and validates the result.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Load is LoadFromFile, except that a missing file yields DefaultConfig.
// The second return value reports whether a file was read.
func Load(path string) (*Config, bool, error) {
	cfg, _, err := loadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.MaxBodySize <= 0 {
		return fmt.Errorf("server.max_body_size must be positive")
	}

	if c.Provider.Type == "" {
		return fmt.Errorf("provider.type is required")
	}
	if c.Provider.Timeout < 0 {
		return fmt.Errorf("provider.timeout cannot be negative")
	}

	g := c.Gateway
	if g.Defaults.Model == "" {
		return fmt.Errorf("gateway.defaults.model is required")
	}
	if g.Defaults.MaxTokens <= 0 {
		return fmt.Errorf("gateway.defaults.max_tokens must be positive")
	}
	if g.Defaults.Temperature < 0 || g.Defaults.Temperature > 2 {
		return fmt.Errorf("gateway.defaults.temperature must be within [0, 2]")
	}
	if g.Defaults.Language == "" {
		return fmt.Errorf("gateway.defaults.language is required")
	}
	if g.UpstreamTimeout <= 0 {
		return fmt.Errorf("gateway.upstream_timeout must be positive")
	}
	if g.RetryCount < 0 {
		return fmt.Errorf("gateway.retry_count cannot be negative")
	}
	if g.RetryBackoff < 0 || g.RetryMaxBackoff < 0 {
		return fmt.Errorf("gateway retry backoff cannot be negative")
	}
	if g.RetryJitter < 0 || g.RetryJitter > 1 {
		return fmt.Errorf("gateway.retry_jitter must be within [0, 1]")
	}

	if c.CircuitBreaker.FailureThreshold < 0 || c.CircuitBreaker.SuccessThreshold < 0 {
		return fmt.Errorf("circuit_breaker thresholds cannot be negative")
	}
	if c.CircuitBreaker.Timeout < 0 {
		return fmt.Errorf("circuit_breaker.timeout cannot be negative")
	}

	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("rate_limit.requests_per_minute must be positive when enabled")
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		return fmt.Errorf("tracing.sample_rate must be within [0, 1]")
	}

	return nil
}
