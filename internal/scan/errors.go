package scan

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/shared"
)

var (
	// ErrResolutionFailed matches every *ResolutionError.
	ErrResolutionFailed = errors.New("scan: resolution failed")
	// ErrSuperseded is returned to an attempt replaced by a newer one for the same session.
	ErrSuperseded = fmt.Errorf("scan: attempt superseded: %w", shared.ErrConflict)
	// ErrIllegalTransition indicates a programming error in the resolver.
	ErrIllegalTransition = errors.New("scan: illegal state transition")
)

// ResolutionError reports why an attempt produced no fitting.
type ResolutionError struct {
	Reason FailureReason
	Err    error
}

func (e *ResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("scan: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("scan: %s", e.Reason)
}

// Is matches ErrResolutionFailed.
func (e *ResolutionError) Is(target error) bool {
	return target == ErrResolutionFailed
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// StatusCode maps the reason onto an HTTP status.
func (e *ResolutionError) StatusCode() int {
	switch e.Reason {
	case ReasonLookupNotFound:
		return http.StatusNotFound
	case ReasonIOError:
		return http.StatusServiceUnavailable
	default:
		return http.StatusUnprocessableEntity
	}
}

func failure(reason FailureReason, err error) *ResolutionError {
	return &ResolutionError{Reason: reason, Err: err}
}
