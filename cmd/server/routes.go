package main

import (
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/indiglm/gateway/internal/config"
)

type dataHandler interface {
	HealthCheck(http.ResponseWriter, *http.Request)
	ChatCompletions(http.ResponseWriter, *http.Request)
	Capabilities(http.ResponseWriter, *http.Request)
}

var errNilConfig = errors.New("config is required")

func buildMux(cfg *config.Config, handler dataHandler) (*http.ServeMux, error) {
	if cfg == nil {
		return nil, errNilConfig
	}
	mux := http.NewServeMux()
	registerDataRoutes(mux, handler, cfg)
	return mux, nil
}

func registerDataRoutes(mux *http.ServeMux, handler dataHandler, cfg *config.Config) {
	if handler == nil || mux == nil {
		return
	}

	// Health endpoints
	mux.HandleFunc("GET /health/live", handler.HealthCheck)
	mux.HandleFunc("GET /health/ready", handler.HealthCheck)

	mux.HandleFunc("POST /v1/chat/completions", handler.ChatCompletions)
	mux.HandleFunc("GET /v1/chat/completions", handler.Capabilities)

	// Metrics endpoint
	if cfg != nil && cfg.Metrics.Enabled {
		mux.Handle("GET "+cfg.Metrics.Path, promhttp.Handler())
	}
}
