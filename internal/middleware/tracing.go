package middleware

import (
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/trace"

	"rowhydrate/internal/logging"
)

// TraceLoggingMiddleware adds the active trace and span IDs to the request logger.
// It must run inside the HTTP instrumentation and the logging middleware.
func TraceLoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		spanCtx := trace.SpanFromContext(ctx).SpanContext()
		if !spanCtx.IsValid() {
			next.ServeHTTP(w, r)
			return
		}
		reqLogger := logging.FromContext(ctx).WithFields(
			slog.String("trace_id", spanCtx.TraceID().String()),
			slog.String("span_id", spanCtx.SpanID().String()),
		)
		next.ServeHTTP(w, r.WithContext(logging.WithLogger(ctx, reqLogger)))
	})
}
