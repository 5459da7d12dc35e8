package actions

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/fittings"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/rbac"
)

type mapStore map[string]fittings.Record

func (m mapStore) Lookup(_ context.Context, id string) (fittings.Record, error) {
	rec, ok := m[id]
	if !ok {
		return fittings.Record{}, fittings.ErrNotFound
	}
	return rec, nil
}

func newActionServer(t *testing.T) (chi.Router, *fixture) {
	t.Helper()
	f := newFixture(t)
	store := mapStore{"FIT-2024-001": {FittingID: "FIT-2024-001"}}
	h := NewHandler(nil, f.router, store, rbac.Middleware{})
	r := chi.NewRouter()
	r.Route("/fittings", h.MountFittingRoutes)
	r.Route("/reports", h.MountReportRoutes)
	r.Route("/alerts", h.MountAlertRoutes)
	return r, f
}

func as(req *http.Request, role rbac.Role) *http.Request {
	return req.WithContext(rbac.ContextWithPrincipal(req.Context(), principal(role)))
}

func TestHandlerListsActions(t *testing.T) {
	r, f := newActionServer(t)
	f.alerts.pending["FIT-2024-001"] = true

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, as(httptest.NewRequest(http.MethodGet, "/fittings/FIT-2024-001/actions", nil), rbac.RoleStationMaster))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var body availableResponse
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, []rbac.Action{rbac.ActionViewDashboard, rbac.ActionScan, rbac.ActionViewAlerts, rbac.ActionActOnAlert, rbac.ActionViewReports}, body.Actions)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, as(httptest.NewRequest(http.MethodGet, "/fittings/NOPE/actions", nil), rbac.RoleStationMaster))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandlerReportFault(t *testing.T) {
	r, f := newActionServer(t)
	payload := `{"fitting_id":"FIT-2024-001","fault_type":"wear","severity":"Moderate","description":"flange worn","location":"KM 3"}`

	req := as(httptest.NewRequest(http.MethodPost, "/reports", strings.NewReader(payload)), rbac.RolePWI)
	req.Header.Set(IdempotencyHeader, "abc")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	var out Outcome
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&out))
	assert.Equal(t, "rep-1", out.ReportID)
	assert.True(t, out.Escalated)

	req = as(httptest.NewRequest(http.MethodPost, "/reports", strings.NewReader(payload)), rbac.RolePWI)
	req.Header.Set(IdempotencyHeader, "abc")
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Equal(t, 1, f.reports.count())
}

func TestHandlerReportFaultForbidden(t *testing.T) {
	r, f := newActionServer(t)
	payload := `{"fitting_id":"FIT-2024-001","fault_type":"wear","severity":"minor","location":"KM 3"}`

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, as(httptest.NewRequest(http.MethodPost, "/reports", strings.NewReader(payload)), rbac.RoleStationMaster))
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Zero(t, f.reports.count())
}

func TestHandlerReportFaultInvalid(t *testing.T) {
	r, _ := newActionServer(t)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, as(httptest.NewRequest(http.MethodPost, "/reports", strings.NewReader(`{"fitting_id":""}`)), rbac.RoleWorker))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, as(httptest.NewRequest(http.MethodPost, "/reports", strings.NewReader(`{`)), rbac.RoleWorker))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandlerDecision(t *testing.T) {
	r, f := newActionServer(t)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, as(httptest.NewRequest(http.MethodPost, "/alerts/9/decision", strings.NewReader(`{"decision":"APPROVE"}`)), rbac.RoleSupervisor))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, []rbac.Decision{rbac.DecisionApprove}, f.alerts.decisions)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, as(httptest.NewRequest(http.MethodPost, "/alerts/x/decision", strings.NewReader(`{"decision":"approve"}`)), rbac.RoleSupervisor))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, as(httptest.NewRequest(http.MethodPost, "/alerts/9/decision", strings.NewReader(`{"decision":"approve"}`)), rbac.RoleWorker))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}
