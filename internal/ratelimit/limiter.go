// Package ratelimit provides per-client token-bucket rate limiting for the
// HTTP surface.
package ratelimit

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/indiglm/gateway/internal/metrics"
)

// Config contains configuration for the client rate limiter.
type Config struct {
	RequestsPerMinute int           // sustained rate per client
	Burst             int           // bucket size
	CleanupTTL        time.Duration // idle limiters are dropped after this
	TrustedProxyCIDRs []string      // proxies whose forwarded headers are honored
	Logger            *slog.Logger
}

// ClientLimiter keys a token bucket per client IP.
type ClientLimiter struct {
	mu             sync.Mutex
	limiters       map[string]*rate.Limiter
	lastAccess     map[string]time.Time
	limit          rate.Limit
	burst          int
	cleanupTTL     time.Duration
	trustedProxies []*net.IPNet
	now            func() time.Time
	stop           chan struct{}
	stopOnce       sync.Once
}

// New creates a limiter and starts its idle cleanup loop. Call Close to stop it.
func New(cfg Config) *ClientLimiter {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	if cfg.CleanupTTL <= 0 {
		cfg.CleanupTTL = 10 * time.Minute
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	trusted, invalid := parseTrustedProxyCIDRs(cfg.TrustedProxyCIDRs)
	for _, value := range invalid {
		cfg.Logger.Warn("invalid trusted proxy cidr ignored", "value", value)
	}

	l := &ClientLimiter{
		limiters:       make(map[string]*rate.Limiter),
		lastAccess:     make(map[string]time.Time),
		limit:          rate.Limit(float64(cfg.RequestsPerMinute) / 60.0),
		burst:          cfg.Burst,
		cleanupTTL:     cfg.CleanupTTL,
		trustedProxies: trusted,
		now:            time.Now,
		stop:           make(chan struct{}),
	}

	go l.cleanupLoop()

	return l
}

// Allow reports whether the client identified by key may proceed now.
func (l *ClientLimiter) Allow(key string) bool {
	return l.getLimiter(key).AllowN(l.now(), 1)
}

// Len returns the number of tracked clients.
func (l *ClientLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// Close stops the cleanup loop.
func (l *ClientLimiter) Close() {
	l.stopOnce.Do(func() { close(l.stop) })
}

func (l *ClientLimiter) getLimiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[key] = limiter
	}
	l.lastAccess[key] = l.now()
	return limiter
}

func (l *ClientLimiter) cleanupLoop() {
	ticker := time.NewTicker(l.cleanupTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			l.cleanup()
		}
	}
}

func (l *ClientLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key, last := range l.lastAccess {
		if now.Sub(last) > l.cleanupTTL {
			delete(l.limiters, key)
			delete(l.lastAccess, key)
		}
	}
}

// Middleware rejects over-limit clients with 429 and an {"error": ...} body.
func (l *ClientLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.Allow(clientKey(r, l.trustedProxies)) {
			metrics.RecordRateLimited()
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "60")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"Rate limit exceeded"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}
