package serverapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"rowhydrate/internal/encode"
	"rowhydrate/internal/logging"
	"rowhydrate/internal/sqlsource"
	"rowhydrate/internal/views"
)

// viewRunner is the part of the registry the HTTP handlers use.
type viewRunner interface {
	Names() []string
	Run(ctx context.Context, name string) (any, error)
	RunOne(ctx context.Context, name string) (any, error)
}

// viewHandler serves GET /views/{name}?format=&first=true.
func viewHandler(registry viewRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reqLogger := logging.FromContext(r.Context())
		name := r.PathValue("name")

		format, err := encode.ParseFormat(r.URL.Query().Get("format"))
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}

		var result any
		if r.URL.Query().Get("first") == "true" {
			result, err = registry.RunOne(r.Context(), name)
		} else {
			result, err = registry.Run(r.Context(), name)
		}
		if err != nil {
			status, message := viewErrorStatus(err)
			if status >= http.StatusInternalServerError {
				reqLogger.Error("view request failed", slog.String("view", name), slog.String("error", err.Error()))
			}
			writeJSONError(w, status, message)
			return
		}

		// Encode fully before writing so an encoding failure can still become a 500.
		var buf bytes.Buffer
		if err := encode.Encode(&buf, format, result); err != nil {
			reqLogger.Error("failed to encode view result", slog.String("view", name), slog.String("error", err.Error()))
			writeJSONError(w, http.StatusInternalServerError, "failed to encode result")
			return
		}
		w.Header().Set("Content-Type", format.ContentType())
		w.WriteHeader(http.StatusOK)
		_, _ = io.Copy(w, &buf)
	}
}

// viewIndexHandler lists the registered view names.
func viewIndexHandler(registry viewRunner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"views": registry.Names()})
	}
}

// viewErrorStatus maps a view error to a status and a client-safe message.
func viewErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, views.ErrUnknownView):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, sqlsource.ErrTooManyRows):
		return http.StatusUnprocessableEntity, "view result exceeds server.max_rows"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "view timed out"
	case errors.Is(err, context.Canceled):
		return 499, "request canceled"
	default:
		return http.StatusInternalServerError, "view failed"
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
