package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/alerts"
	jobmetrics "github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/jobs"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/reports"
)

type stubReports map[string]reports.FaultReport

func (s stubReports) Get(_ context.Context, id string) (reports.FaultReport, error) {
	r, ok := s[id]
	if !ok {
		return reports.FaultReport{}, reports.ErrNotFound
	}
	return r, nil
}

type stubAlerts struct {
	created []string
	err     error
}

func (s *stubAlerts) CreateFromReport(_ context.Context, id string, r reports.FaultReport) (alerts.Alert, error) {
	if s.err != nil {
		return alerts.Alert{}, s.err
	}
	s.created = append(s.created, id)
	return alerts.Alert{ID: int64(len(s.created)), FittingID: r.FittingID, Severity: r.Severity}, nil
}

type countingViews struct{ n int }

func (c *countingViews) Invalidate(context.Context) error {
	c.n++
	return nil
}

func escalateTask(t *testing.T, id string) *asynq.Task {
	t.Helper()
	task, err := NewFaultEscalateTask(id)
	require.NoError(t, err)
	return task
}

func newEscalateJob() (*FaultEscalateJob, *stubAlerts, *countingViews) {
	repo := stubReports{
		"r-crit":  {FittingID: "FIT-1", Severity: reports.SeverityCritical},
		"r-minor": {FittingID: "FIT-2", Severity: reports.SeverityMinor},
	}
	alertsRepo := &stubAlerts{}
	views := &countingViews{}
	metrics := jobmetrics.NewMetrics(prometheus.NewRegistry())
	return NewFaultEscalateJob(repo, alertsRepo, views, nil, metrics), alertsRepo, views
}

func TestFaultEscalateCreatesAlert(t *testing.T) {
	job, alertsRepo, views := newEscalateJob()

	require.NoError(t, job.Handle(context.Background(), escalateTask(t, "r-crit")))
	assert.Equal(t, []string{"r-crit"}, alertsRepo.created)
	assert.Equal(t, 1, views.n)
}

func TestFaultEscalateSkipsMinor(t *testing.T) {
	job, alertsRepo, views := newEscalateJob()

	require.NoError(t, job.Handle(context.Background(), escalateTask(t, "r-minor")))
	assert.Empty(t, alertsRepo.created)
	assert.Zero(t, views.n)
}

func TestFaultEscalateUnknownReportSkipsRetry(t *testing.T) {
	job, _, _ := newEscalateJob()

	err := job.Handle(context.Background(), escalateTask(t, "r-missing"))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.ErrorIs(t, err, reports.ErrNotFound)
}

func TestFaultEscalateRetriesStoreErrors(t *testing.T) {
	job, alertsRepo, _ := newEscalateJob()
	alertsRepo.err = errors.New("deadlock detected")

	err := job.Handle(context.Background(), escalateTask(t, "r-crit"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

func TestFaultEscalateBadPayload(t *testing.T) {
	job, _, _ := newEscalateJob()
	err := job.Handle(context.Background(), asynq.NewTask(TaskFaultEscalate, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestNewFaultEscalateTask(t *testing.T) {
	_, err := NewFaultEscalateTask("  ")
	assert.Error(t, err)

	task := escalateTask(t, "abc")
	assert.Equal(t, TaskFaultEscalate, task.Type())
	var payload FaultEscalatePayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, "abc", payload.ReportID)
}

type stubPurger struct {
	retention time.Duration
	n         int64
	err       error
}

func (s *stubPurger) Cleanup(_ context.Context, olderThan time.Duration) (int64, error) {
	s.retention = olderThan
	return s.n, s.err
}

func TestIdempotencyCleanup(t *testing.T) {
	store := &stubPurger{n: 4}
	job := NewIdempotencyCleanupJob(store, 0, nil, nil)
	task, err := NewIdempotencyCleanupTask()
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	assert.Equal(t, DefaultIdempotencyRetention, store.retention)

	override, _ := json.Marshal(IdempotencyCleanupPayload{RetentionHours: 12})
	require.NoError(t, job.Handle(context.Background(), asynq.NewTask(TaskIdempotencyCleanup, override)))
	assert.Equal(t, 12*time.Hour, store.retention)

	store.err = errors.New("timeout")
	assert.Error(t, job.Handle(context.Background(), task))
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{Type: task.Type()}, nil
}

func (f *fakeEnqueuer) Close() error { return nil }

func TestClientEnqueueEscalation(t *testing.T) {
	enq := &fakeEnqueuer{}
	client := NewClientWith(enq)

	require.NoError(t, client.EnqueueEscalation(context.Background(), "r-1"))
	require.Len(t, enq.tasks, 1)
	assert.Equal(t, TaskFaultEscalate, enq.tasks[0].Type())

	enq.err = asynq.ErrTaskIDConflict
	assert.NoError(t, client.EnqueueEscalation(context.Background(), "r-1"))

	enq.err = errors.New("redis down")
	assert.Error(t, client.EnqueueEscalation(context.Background(), "r-2"))
}

type stubInspector struct {
	infos map[string]*asynq.QueueInfo
	err   error
}

func (s stubInspector) GetQueueInfo(queue string) (*asynq.QueueInfo, error) {
	if s.err != nil {
		return nil, s.err
	}
	info, ok := s.infos[queue]
	if !ok {
		return nil, asynq.ErrQueueNotFound
	}
	return info, nil
}

func TestJobsHealth(t *testing.T) {
	r := chi.NewRouter()
	r.Route("/jobs", NewHandler(stubInspector{infos: map[string]*asynq.QueueInfo{
		QueueCritical: {Queue: QueueCritical, Pending: 2, Retry: 1},
	}}, nil).MountRoutes)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Queues []queueHealth `json:"queues"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	require.Len(t, body.Queues, 2)
	assert.Equal(t, 2, body.Queues[0].Pending)
	assert.Equal(t, QueueDefault, body.Queues[1].Queue)

	r = chi.NewRouter()
	r.Route("/jobs", NewHandler(stubInspector{err: errors.New("conn refused")}, nil).MountRoutes)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
