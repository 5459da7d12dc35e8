package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/alerts"
	jobmetrics "github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/jobs"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/reports"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/shared"
)

const (
	// TaskFaultEscalate raises an alert for a submitted report.
	TaskFaultEscalate = "fault:escalate"
	escalateMaxRetry  = 8
)

// FaultEscalatePayload identifies the report to escalate.
type FaultEscalatePayload struct {
	ReportID string `json:"report_id"`
}

// ReportReader loads submitted reports.
type ReportReader interface {
	Get(ctx context.Context, id string) (reports.FaultReport, error)
}

// AlertWriter creates alerts from reports. It must be idempotent per report.
type AlertWriter interface {
	CreateFromReport(ctx context.Context, reportID string, report reports.FaultReport) (alerts.Alert, error)
}

// ViewInvalidator drops cached dashboard counters.
type ViewInvalidator interface {
	Invalidate(ctx context.Context) error
}

// FaultEscalateJob turns critical and moderate reports into pending alerts.
type FaultEscalateJob struct {
	Reports ReportReader
	Alerts  AlertWriter
	Views   ViewInvalidator
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewFaultEscalateJob constructs the job handler. views may be nil.
func NewFaultEscalateJob(reportsRepo ReportReader, alertsRepo AlertWriter, views ViewInvalidator, logger *slog.Logger, metrics *jobmetrics.Metrics) *FaultEscalateJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &FaultEscalateJob{Reports: reportsRepo, Alerts: alertsRepo, Views: views, Logger: logger, Metrics: metrics}
}

// NewFaultEscalateTask creates the task. The task ID is derived from the
// report so a duplicate enqueue is rejected by asynq.
func NewFaultEscalateTask(reportID string) (*asynq.Task, error) {
	reportID = strings.TrimSpace(reportID)
	if reportID == "" {
		return nil, errors.New("jobs: report id required")
	}
	body, err := json.Marshal(FaultEscalatePayload{ReportID: reportID})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskFaultEscalate, body,
		asynq.Queue(QueueCritical),
		asynq.MaxRetry(escalateMaxRetry),
		asynq.TaskID("escalate:"+reportID),
		asynq.Retention(24*time.Hour),
	), nil
}

// Handle executes the escalation.
func (j *FaultEscalateJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Reports == nil || j.Alerts == nil {
		return errors.New("jobs: fault escalation not configured")
	}
	var payload FaultEscalatePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
	}
	tracker := j.Metrics.Track(TaskFaultEscalate)
	return tracker.End(j.escalate(ctx, payload.ReportID))
}

func (j *FaultEscalateJob) escalate(ctx context.Context, reportID string) error {
	report, err := j.Reports.Get(ctx, reportID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			j.Logger.Warn("escalation for unknown report", slog.String("report_id", reportID))
			return fmt.Errorf("report %s: %w: %w", reportID, err, asynq.SkipRetry)
		}
		return fmt.Errorf("load report %s: %w", reportID, err)
	}
	if !report.Severity.Escalates() {
		j.Logger.Info("report below escalation threshold", slog.String("report_id", reportID), slog.String("severity", string(report.Severity)))
		return nil
	}
	alert, err := j.Alerts.CreateFromReport(ctx, reportID, report)
	if err != nil {
		return fmt.Errorf("create alert for %s: %w", reportID, err)
	}
	j.Metrics.AddEscalation(string(report.Severity))
	if j.Views != nil {
		if err := j.Views.Invalidate(ctx); err != nil {
			j.Logger.Warn("invalidate dashboard", slog.Any("error", err))
		}
	}
	j.Logger.Info("fault escalated",
		slog.String("report_id", reportID),
		slog.Int64("alert_id", alert.ID),
		slog.String("fitting_id", alert.FittingID),
		slog.String("severity", string(alert.Severity)),
	)
	return nil
}
