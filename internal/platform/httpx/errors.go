// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/velora-oms/velora-oms/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
// Domain errors are surfaced with their message; anything unexpected is an
// opaque internal error so callers can treat it as safely retryable.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrStagePrecondition):
		Problem(w, http.StatusConflict, "Stage Precondition Failed", err.Error())
	case errors.Is(err, shared.ErrQuantityViolation):
		Problem(w, http.StatusUnprocessableEntity, "Quantity Violation", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrAuthorizationDenied):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
