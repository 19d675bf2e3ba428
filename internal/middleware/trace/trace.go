// Package trace tags HTTP requests with an id and logs and measures them.
package trace

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"pocketbook/internal/log"
	"pocketbook/internal/metrics"
)

type contextKey struct{}

// HeaderRequestID carries the request id in both directions.
const HeaderRequestID = "X-Request-ID"

type Middleware struct {
	logger  *log.Logger
	metrics *metrics.Metrics
}

// NewMiddleware creates a trace middleware. m may be nil.
func NewMiddleware(logger *log.Logger, m *metrics.Metrics) *Middleware {
	if logger == nil {
		logger = log.ForComponent(log.ComponentHTTP)
	}
	return &Middleware{logger: logger, metrics: m}
}

// Wrap logs and measures requests to next under the given route label.
// An incoming X-Request-ID is kept, otherwise a new one is generated.
func (m *Middleware) Wrap(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), contextKey{}, requestID)
		r = r.WithContext(ctx)
		w.Header().Set(HeaderRequestID, requestID)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		m.metrics.ObserveHTTP(route, rw.statusCode, duration)

		level := slog.LevelDebug
		if rw.statusCode >= 500 {
			level = slog.LevelError
		} else if rw.statusCode >= 400 {
			level = slog.LevelWarn
		}
		m.logger.Log(ctx, level, "HTTP request completed",
			"request_id", requestID,
			"method", r.Method,
			"route", route,
			"status_code", rw.statusCode,
			"duration_ms", duration.Milliseconds())
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// RequestID extracts the request ID from context
func RequestID(ctx context.Context) string {
	if id, ok := ctx.Value(contextKey{}).(string); ok {
		return id
	}
	return ""
}
