package actions

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/alerts"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/fittings"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/rbac"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/reports"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/shared"
)

type fakeReports struct {
	mu        sync.Mutex
	submitted []reports.FaultReport
	err       error
}

func (f *fakeReports) Submit(_ context.Context, r reports.FaultReport) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.submitted = append(f.submitted, r)
	return "rep-1", nil
}

func (f *fakeReports) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.submitted)
}

type fakeAlerts struct {
	pending   map[string]bool
	pendErr   error
	decideErr error
	decisions []rbac.Decision
}

func (f *fakeAlerts) ListAlerts(context.Context, alerts.Filter) ([]alerts.Alert, error) {
	return nil, nil
}

func (f *fakeAlerts) PendingForFitting(_ context.Context, id string) (bool, error) {
	if f.pendErr != nil {
		return false, f.pendErr
	}
	return f.pending[id], nil
}

func (f *fakeAlerts) SetDecision(_ context.Context, _ int64, d rbac.Decision, _ rbac.Principal) error {
	if f.decideErr != nil {
		return f.decideErr
	}
	f.decisions = append(f.decisions, d)
	return nil
}

type recorder struct {
	audits []shared.AuditLog
}

func (r *recorder) Record(_ context.Context, log shared.AuditLog) error {
	r.audits = append(r.audits, log)
	return nil
}

type approvalSpy struct{ logs []shared.ApprovalLog }

func (a *approvalSpy) Record(_ context.Context, log shared.ApprovalLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type enqueueSpy struct {
	ids []string
	err error
}

func (e *enqueueSpy) EnqueueEscalation(_ context.Context, id string) error {
	if e.err != nil {
		return e.err
	}
	e.ids = append(e.ids, id)
	return nil
}

type memIdempotency struct{ seen map[string]bool }

func (m *memIdempotency) CheckAndInsert(_ context.Context, key, _ string) error {
	if m.seen[key] {
		return shared.ErrIdempotencyConflict
	}
	m.seen[key] = true
	return nil
}

func (m *memIdempotency) Delete(_ context.Context, key string) error {
	delete(m.seen, key)
	return nil
}

type dispatchCounter map[string]int

func (d dispatchCounter) ObserveDispatch(action, result string) { d[action+"/"+result]++ }

type fixture struct {
	router    *Router
	reports   *fakeReports
	alerts    *fakeAlerts
	audit     *recorder
	approvals *approvalSpy
	jobs      *enqueueSpy
	idem      *memIdempotency
	observed  dispatchCounter
	mr        *miniredis.Miniredis
}

var fixedNow = time.Date(2025, 3, 14, 17, 45, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	f := &fixture{
		reports:   &fakeReports{},
		alerts:    &fakeAlerts{pending: map[string]bool{}},
		audit:     &recorder{},
		approvals: &approvalSpy{},
		jobs:      &enqueueSpy{},
		idem:      &memIdempotency{seen: map[string]bool{}},
		observed:  dispatchCounter{},
		mr:        mr,
	}
	f.router = NewRouter(Deps{
		Reports:     f.reports,
		Alerts:      f.alerts,
		Locks:       shared.NewLockManager(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute),
		Idempotency: f.idem,
		Audit:       f.audit,
		Approvals:   f.approvals,
		Jobs:        f.jobs,
		Observer:    f.observed,
		Clock:       func() time.Time { return fixedNow },
	})
	return f
}

func principal(role rbac.Role) rbac.Principal {
	return rbac.Principal{UserID: 7, Username: "r.kumar", Role: role}
}

func validReport() ReportFault {
	return ReportFault{
		FittingID:   "FIT-2024-001",
		FaultType:   "crack",
		Severity:    reports.SeverityCritical,
		Description: "hairline crack near bolt",
		Location:    "KM 12.4",
	}
}

func TestAvailableActionsFollowCapabilities(t *testing.T) {
	f := newFixture(t)
	rec := fittings.Record{FittingID: "FIT-2024-001"}

	got, err := f.router.AvailableActions(context.Background(), principal(rbac.RoleWorker), rec)
	require.NoError(t, err)
	assert.Equal(t, []rbac.Action{rbac.ActionViewDashboard, rbac.ActionScan, rbac.ActionReportFault, rbac.ActionViewReports}, got)
	for _, a := range got {
		assert.True(t, rbac.IsPermitted(rbac.RoleWorker, a))
	}
}

func TestActOnAlertOfferedOnlyWhilePending(t *testing.T) {
	f := newFixture(t)
	rec := fittings.Record{FittingID: "FIT-2024-002"}
	p := principal(rbac.RoleSupervisor)

	got, err := f.router.AvailableActions(context.Background(), p, rec)
	require.NoError(t, err)
	assert.NotContains(t, got, rbac.ActionActOnAlert)

	f.alerts.pending["FIT-2024-002"] = true
	got, err = f.router.AvailableActions(context.Background(), p, rec)
	require.NoError(t, err)
	assert.Contains(t, got, rbac.ActionActOnAlert)
}

func TestAvailableActionsPendingLookupFailure(t *testing.T) {
	f := newFixture(t)
	f.alerts.pendErr = errors.New("connection reset")
	_, err := f.router.AvailableActions(context.Background(), principal(rbac.RoleAdmin), fittings.Record{FittingID: "F"})
	assert.ErrorIs(t, err, shared.ErrCollaboratorUnavailable)
}

func TestDispatchDeniedHasNoSideEffects(t *testing.T) {
	f := newFixture(t)

	_, err := f.router.Dispatch(context.Background(), principal(rbac.RoleStationMaster), validReport())
	require.ErrorIs(t, err, shared.ErrAuthorizationDenied)
	assert.Zero(t, f.reports.count())
	assert.Empty(t, f.audit.audits)
	assert.Empty(t, f.jobs.ids)
	assert.Equal(t, 1, f.observed["report_fault/denied"])

	_, err = f.router.Dispatch(context.Background(), principal(rbac.RoleWorker), AlertDecision{AlertID: 3, Decision: rbac.DecisionApprove})
	require.ErrorIs(t, err, shared.ErrAuthorizationDenied)
	assert.Empty(t, f.alerts.decisions)
	assert.Empty(t, f.approvals.logs)
}

func TestDispatchReportFault(t *testing.T) {
	f := newFixture(t)
	cmd := validReport()
	cmd.FaultType = "  CRACK "

	out, err := f.router.Dispatch(context.Background(), principal(rbac.RoleWorker), cmd)
	require.NoError(t, err)
	assert.Equal(t, "rep-1", out.ReportID)
	assert.True(t, out.Escalated)
	assert.Equal(t, []string{"rep-1"}, f.jobs.ids)

	require.Len(t, f.reports.submitted, 1)
	got := f.reports.submitted[0]
	assert.Equal(t, "Crack", got.FaultType)
	assert.Equal(t, "r.kumar", got.ReportedBy)
	assert.Equal(t, time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC), got.ReportedDate)

	require.Len(t, f.audit.audits, 1)
	assert.Equal(t, "report.submit", f.audit.audits[0].Action)
	assert.Equal(t, "rep-1", f.audit.audits[0].EntityID)
	assert.Equal(t, 1, f.observed["report_fault/ok"])
}

func TestMinorReportIsNotEscalated(t *testing.T) {
	f := newFixture(t)
	cmd := validReport()
	cmd.Severity = reports.SeverityMinor

	out, err := f.router.Dispatch(context.Background(), principal(rbac.RoleWorker), cmd)
	require.NoError(t, err)
	assert.False(t, out.Escalated)
	assert.Empty(t, f.jobs.ids)
}

func TestEscalationFailureDoesNotFailDispatch(t *testing.T) {
	f := newFixture(t)
	f.jobs.err = errors.New("queue down")

	out, err := f.router.Dispatch(context.Background(), principal(rbac.RoleWorker), validReport())
	require.NoError(t, err)
	assert.False(t, out.Escalated)
	assert.Equal(t, 1, f.reports.count())
}

func TestDispatchReportValidation(t *testing.T) {
	f := newFixture(t)
	cmd := validReport()
	cmd.FaultType = "melted"
	cmd.Location = ""

	_, err := f.router.Dispatch(context.Background(), principal(rbac.RoleWorker), cmd)
	var ve *shared.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "fault_type")
	assert.Contains(t, ve.Fields, "location")
	assert.Zero(t, f.reports.count())
	assert.Equal(t, 1, f.observed["report_fault/invalid"])
}

func TestDispatchInFlightConflict(t *testing.T) {
	f := newFixture(t)
	sess := shared.NewSessionManager(redis.NewClient(&redis.Options{Addr: f.mr.Addr()}), "sid", "", time.Hour, false)
	issued, err := sess.Issue(context.Background(), shared.Identity{UserID: 7, Username: "r.kumar", Role: "worker"})
	require.NoError(t, err)
	ctx := shared.ContextWithSession(context.Background(), issued)

	require.NoError(t, f.mr.Set(shared.DispatchLockKey(issued.ID, "report"), "other"))

	_, err = f.router.Dispatch(ctx, principal(rbac.RoleWorker), validReport())
	assert.ErrorIs(t, err, ErrDispatchInFlight)
	assert.ErrorIs(t, err, shared.ErrConflict)
	assert.Zero(t, f.reports.count())

	f.mr.Del(shared.DispatchLockKey(issued.ID, "report"))
	_, err = f.router.Dispatch(ctx, principal(rbac.RoleWorker), validReport())
	assert.NoError(t, err)
}

func TestDuplicateIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	cmd := validReport()
	cmd.IdempotencyKey = "k-1"

	_, err := f.router.Dispatch(context.Background(), principal(rbac.RoleWorker), cmd)
	require.NoError(t, err)
	_, err = f.router.Dispatch(context.Background(), principal(rbac.RoleWorker), cmd)
	assert.ErrorIs(t, err, shared.ErrConflict)
	assert.Equal(t, 1, f.reports.count())
}

func TestSinkFailureReleasesIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	f.reports.err = errors.New("disk full")
	cmd := validReport()
	cmd.IdempotencyKey = "k-2"

	_, err := f.router.Dispatch(context.Background(), principal(rbac.RoleWorker), cmd)
	assert.ErrorIs(t, err, shared.ErrCollaboratorUnavailable)
	assert.False(t, f.idem.seen["k-2"])

	f.reports.err = nil
	_, err = f.router.Dispatch(context.Background(), principal(rbac.RoleWorker), cmd)
	assert.NoError(t, err)
}

func TestDispatchAlertDecision(t *testing.T) {
	f := newFixture(t)

	out, err := f.router.Dispatch(context.Background(), principal(rbac.RoleSupervisor), AlertDecision{AlertID: 42, Decision: rbac.DecisionReject, Note: " duplicate "})
	require.NoError(t, err)
	assert.Equal(t, string(alerts.StatusRejected), out.Status)
	assert.Equal(t, []rbac.Decision{rbac.DecisionReject}, f.alerts.decisions)

	require.Len(t, f.approvals.logs, 1)
	assert.Equal(t, "42", f.approvals.logs[0].RefID)
	assert.Equal(t, shared.ApprovalReject, f.approvals.logs[0].Action)
	assert.Equal(t, "duplicate", f.approvals.logs[0].Note)
	require.Len(t, f.audit.audits, 1)
	assert.Equal(t, "alert.reject", f.audit.audits[0].Action)
}

func TestAlertDecisionBusinessErrorsPassThrough(t *testing.T) {
	f := newFixture(t)
	f.alerts.decideErr = alerts.ErrAlreadyDecided

	_, err := f.router.Dispatch(context.Background(), principal(rbac.RoleAdmin), AlertDecision{AlertID: 1, Decision: rbac.DecisionApprove})
	assert.ErrorIs(t, err, alerts.ErrAlreadyDecided)
	assert.NotErrorIs(t, err, shared.ErrCollaboratorUnavailable)
	assert.Empty(t, f.approvals.logs)

	f.alerts.decideErr = errors.New("tx aborted")
	_, err = f.router.Dispatch(context.Background(), principal(rbac.RoleAdmin), AlertDecision{AlertID: 1, Decision: rbac.DecisionApprove})
	assert.ErrorIs(t, err, shared.ErrCollaboratorUnavailable)
}

func TestAlertDecisionValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.router.Dispatch(context.Background(), principal(rbac.RoleAdmin), AlertDecision{AlertID: 0, Decision: "maybe"})
	var ve *shared.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "alert_id")
	assert.Contains(t, ve.Fields, "decision")
}

func TestNilCommand(t *testing.T) {
	f := newFixture(t)
	_, err := f.router.Dispatch(context.Background(), principal(rbac.RoleAdmin), nil)
	assert.ErrorIs(t, err, ErrUnknownCommand)

	var report *ReportFault
	assert.NotPanics(t, func() {
		_, err = f.router.Dispatch(context.Background(), principal(rbac.RoleAdmin), report)
	})
	assert.ErrorIs(t, err, ErrUnknownCommand)

	var decision *AlertDecision
	_, err = f.router.Dispatch(context.Background(), principal(rbac.RoleAdmin), decision)
	assert.ErrorIs(t, err, ErrUnknownCommand)
	assert.Zero(t, f.reports.count())
}

func TestPointerCommandsDispatch(t *testing.T) {
	f := newFixture(t)
	out, err := f.router.Dispatch(context.Background(), principal(rbac.RoleAdmin), &AlertDecision{AlertID: 9, Decision: rbac.DecisionApprove})
	require.NoError(t, err)
	assert.Equal(t, string(alerts.StatusApproved), out.Status)
}

func TestEveryOfferedAlertDecisionIsAllowed(t *testing.T) {
	f := newFixture(t)
	f.alerts.pending["FIT-2024-003"] = true
	rec := fittings.Record{FittingID: "FIT-2024-003"}

	for _, role := range []rbac.Role{rbac.RoleSupervisor, rbac.RolePWI, rbac.RoleStationMaster, rbac.RoleAdmin} {
		offered, err := f.router.AvailableActions(context.Background(), principal(role), rec)
		require.NoError(t, err)
		require.Contains(t, offered, rbac.ActionActOnAlert, "role %s", role)

		_, err = f.router.Dispatch(context.Background(), principal(role), AlertDecision{AlertID: 11, Decision: rbac.DecisionApprove})
		assert.NoError(t, err, "role %s", role)
	}
	assert.Len(t, f.alerts.decisions, 4)
}

type viewSpy struct{ calls int }

func (v *viewSpy) Invalidate(context.Context) error {
	v.calls++
	return nil
}

func TestSuccessfulDispatchInvalidatesViews(t *testing.T) {
	f := newFixture(t)
	views := &viewSpy{}
	f.router.deps.Views = views

	_, err := f.router.Dispatch(context.Background(), principal(rbac.RoleStationMaster), validReport())
	require.Error(t, err)
	assert.Zero(t, views.calls)

	_, err = f.router.Dispatch(context.Background(), principal(rbac.RoleAdmin), AlertDecision{AlertID: 5, Decision: rbac.DecisionApprove})
	require.NoError(t, err)
	assert.Equal(t, 1, views.calls)
}
