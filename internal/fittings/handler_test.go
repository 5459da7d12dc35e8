package fittings

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/rbac"
)

func newTestRouter(store Store) chi.Router {
	h := NewHandler(nil, store, rbac.Middleware{})
	h.now = func() time.Time { return time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC) }
	r := chi.NewRouter()
	r.Route("/fittings", h.MountRoutes)
	return r
}

func withPrincipal(req *http.Request, role rbac.Role) *http.Request {
	return req.WithContext(rbac.ContextWithPrincipal(req.Context(), rbac.Principal{UserID: 1, Username: "u", Role: role}))
}

func TestShowFitting(t *testing.T) {
	store := &countingStore{records: map[string]Record{"FIT-2024-001": sampleRecord()}}
	rr := httptest.NewRecorder()
	newTestRouter(store).ServeHTTP(rr, withPrincipal(httptest.NewRequest(http.MethodGet, "/fittings/FIT-2024-001", nil), rbac.RoleWorker))
	require.Equal(t, http.StatusOK, rr.Code)

	var body detailResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, "Elastic Rail Clip", body.Fitting.FittingType)
	assert.True(t, body.Warranty.Valid)
	require.NotNil(t, body.Last)
	assert.Equal(t, "R. Iyer", body.Last.InspectorName)
}

func TestShowFittingNotFound(t *testing.T) {
	store := &countingStore{records: map[string]Record{}}
	rr := httptest.NewRecorder()
	newTestRouter(store).ServeHTTP(rr, withPrincipal(httptest.NewRequest(http.MethodGet, "/fittings/FIT-404", nil), rbac.RoleAdmin))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestShowFittingRequiresPrincipal(t *testing.T) {
	store := &countingStore{records: map[string]Record{"FIT-2024-001": sampleRecord()}}
	rr := httptest.NewRecorder()
	newTestRouter(store).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/fittings/FIT-2024-001", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, int32(0), store.calls.Load())
}
