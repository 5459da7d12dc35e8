package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/shared"
)

type teapotError struct{}

func (teapotError) Error() string   { return "short and stout" }
func (teapotError) StatusCode() int { return http.StatusTeapot }

func TestRespondErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"denied", fmt.Errorf("dispatch: %w", shared.ErrAuthorizationDenied), http.StatusForbidden},
		{"unauthenticated", shared.ErrUnauthenticated, http.StatusUnauthorized},
		{"not found", shared.ErrNotFound, http.StatusNotFound},
		{"conflict", shared.ErrIdempotencyConflict, http.StatusConflict},
		{"collaborator", fmt.Errorf("decode: %w", shared.ErrCollaboratorUnavailable), http.StatusServiceUnavailable},
		{"status coder", fmt.Errorf("wrap: %w", teapotError{}), http.StatusTeapot},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RespondError(rec, tc.err)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestRespondErrorValidationFields(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, shared.NewValidationError("severity", "must be one of minor moderate critical"))
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body ValidationProblem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "must be one of minor moderate critical", body.Fields["severity"])
}
