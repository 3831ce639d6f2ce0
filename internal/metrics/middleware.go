package metrics

import (
	"net/http"
	"strconv"
	"time"
)

// statusRecorder wraps http.ResponseWriter to capture the status code.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush implements http.Flusher.
func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

var knownRoutes = map[string]bool{
	"/v1/chat/completions": true,
	"/health/live":         true,
	"/health/ready":        true,
	"/metrics":             true,
}

// routeLabel keeps arbitrary request paths out of label values.
func routeLabel(path string) string {
	if knownRoutes[path] {
		return path
	}
	return "other"
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(recorder, r)

		route := routeLabel(r.URL.Path)
		HTTPRequestsTotal.WithLabelValues(route, r.Method, strconv.Itoa(recorder.statusCode)).Inc()
		HTTPRequestDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
