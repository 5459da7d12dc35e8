package httpx

import (
	"errors"
	"net/http"

	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/shared"
)

// StatusCoder lets domain errors choose their own status, e.g. resolution failures.
type StatusCoder interface {
	StatusCode() int
}

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var ve *shared.ValidationError
	if errors.As(err, &ve) {
		JSON(w, http.StatusBadRequest, ValidationProblem{
			ProblemDetail: ProblemDetail{Title: "Validation Failed", Status: http.StatusBadRequest, Detail: err.Error()},
			Fields:        ve.Fields,
		})
		return
	}
	var coder StatusCoder
	if errors.As(err, &coder) {
		status := coder.StatusCode()
		Problem(w, status, http.StatusText(status), err.Error())
		return
	}
	switch {
	case errors.Is(err, shared.ErrAuthorizationDenied):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, shared.ErrUnauthenticated), errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrCollaboratorUnavailable):
		Problem(w, http.StatusServiceUnavailable, "Service Unavailable", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
