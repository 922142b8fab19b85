package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/onkernel/dobs/lib/logger"
)

// AccessLogger returns a middleware that logs each protocol call with trace context.
func AccessLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			endpoint := routePattern(r)
			duration := time.Since(start)
			log.InfoContext(r.Context(),
				fmt.Sprintf("%s %s %d %dms", r.Method, endpoint, ww.Status(), duration.Milliseconds()),
				"method", r.Method,
				"endpoint", endpoint,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", duration.Milliseconds(),
				"request_id", chimw.GetReqID(r.Context()),
			)
		})
	}
}

// NewAccessLogger creates an access logger with OTel handler if available.
func NewAccessLogger(otelHandler slog.Handler) *slog.Logger {
	return logger.NewSubsystemLogger(logger.SubsystemAPI, logger.NewConfig(), otelHandler)
}

// InjectLogger returns middleware that adds the logger to the request context,
// tagged with the request id when one is present.
func InjectLogger(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			l := log
			if id := chimw.GetReqID(r.Context()); id != "" {
				l = l.With("request_id", id)
			}
			ctx := logger.AddToContext(r.Context(), l)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
