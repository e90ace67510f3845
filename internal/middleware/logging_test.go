package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"rowhydrate/internal/logging"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		out = append(out, rec)
	}
	return out
}

func TestLoggingMiddleware(t *testing.T) {
	tests := []struct {
		name      string
		requestID string
		status    int
		wantLevel string
	}{
		{name: "generates request id", status: http.StatusOK, wantLevel: "INFO"},
		{name: "keeps caller request id", requestID: "abc-123", status: http.StatusNotFound, wantLevel: "WARN"},
		{name: "server error", status: http.StatusInternalServerError, wantLevel: "ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := logging.NewLogger(logging.Config{Level: "debug", Format: "json", Output: &buf})

			var seenID string
			h := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seenID = logging.GetRequestID(r.Context())
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("body"))
			}))

			req := httptest.NewRequest(http.MethodGet, "/views/posts", nil)
			if tt.requestID != "" {
				req.Header.Set(RequestIDHeader, tt.requestID)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			got := rec.Header().Get(RequestIDHeader)
			require.NotEmpty(t, got)
			if tt.requestID != "" {
				assert.Equal(t, tt.requestID, got)
			}
			assert.Equal(t, got, seenID)

			lines := decodeLines(t, &buf)
			require.Len(t, lines, 2)
			assert.Equal(t, "request started", lines[0]["msg"])
			done := lines[1]
			assert.Equal(t, "request completed", done["msg"])
			assert.Equal(t, tt.wantLevel, done["level"])
			assert.Equal(t, got, done["request_id"])
			assert.EqualValues(t, tt.status, done["status"])
			assert.EqualValues(t, 4, done["bytes"])
		})
	}
}

func TestRecoverMiddleware(t *testing.T) {
	h := RecoverMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(logging.WithLogger(req.Context(), logging.Discard()))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestTraceLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(logging.Config{Level: "info", Format: "json", Output: &buf})

	h := TraceLoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logging.FromContext(r.Context()).Info("inside")
	}))

	provider := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })
	ctx, span := provider.Tracer("test").Start(logging.WithLogger(context.Background(), logger), "req")
	defer span.End()

	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	h.ServeHTTP(httptest.NewRecorder(), req)

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.Equal(t, span.SpanContext().TraceID().String(), lines[0]["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), lines[0]["span_id"])

	buf.Reset()
	plain := httptest.NewRequest(http.MethodGet, "/", nil)
	plain = plain.WithContext(logging.WithLogger(plain.Context(), logger))
	h.ServeHTTP(httptest.NewRecorder(), plain)
	lines = decodeLines(t, &buf)
	require.Len(t, lines, 1)
	assert.NotContains(t, lines[0], "trace_id")
}
