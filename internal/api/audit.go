package api

import (
	"log/slog"
	"net/http"

	"github.com/nippolabs/nippo/internal/ratelimit"
)

// auditLog emits a structured audit log entry for an auth-sensitive action.
func auditLog(r *http.Request, action string, resourceType string, resourceID string, detail ...any) {
	attrs := []any{
		"action", action,
		"resource_type", resourceType,
		"resource_id", resourceID,
		"ip", ratelimit.ClientIP(r),
		"request_id", RequestIDFromContext(r.Context()),
	}
	attrs = append(attrs, detail...)
	slog.Info("audit", attrs...)
}

// logInternalError records an unexpected failure with full detail. The HTTP
// response never carries the underlying error.
func logInternalError(r *http.Request, op string, err error) {
	slog.Error("internal error",
		"op", op,
		"path", r.URL.Path,
		"request_id", RequestIDFromContext(r.Context()),
		"error", err,
	)
}
