package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"atrium.org/internal/auth"
	"atrium.org/internal/kv"
	"atrium.org/internal/rbac"
	"atrium.org/internal/session"
	"atrium.org/internal/tenant"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, message string) {
	writeJSON(w, code, map[string]any{
		"error":      message,
		"request_id": RequestIDFromContext(r.Context()),
	})
}

// decodeJSON decodes a request body strictly: 1 MiB cap, unknown fields
// rejected, trailing data rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	if dec.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

// translateError maps domain errors onto HTTP status codes. Unknown
// errors become opaque 500s so internals never leak to clients.
func translateError(err error) (int, string) {
	switch {
	case errors.Is(err, auth.ErrAuthenticationFailed):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, auth.ErrForbidden), errors.Is(err, tenant.ErrUnresolved),
		errors.Is(err, session.ErrDenied):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, auth.ErrNotFound), errors.Is(err, rbac.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, auth.ErrConflict), errors.Is(err, rbac.ErrConflict):
		return http.StatusConflict, err.Error()
	case errors.Is(err, auth.ErrUnavailable), errors.Is(err, kv.ErrUnavailable):
		return http.StatusServiceUnavailable, "service unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (a *API) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, message := translateError(err)
	if code == http.StatusInternalServerError {
		a.log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	writeError(w, r, code, message)
}
