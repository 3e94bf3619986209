package handler

import (
	"errors"
	"net/http"

	"reqtrack/internal/service"
)

// statusFor maps the service error taxonomy onto HTTP status codes.
// Permission failures are surfaced verbatim and never retried.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrInvalidState), errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
