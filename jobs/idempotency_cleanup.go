package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/jobs"
)

const (
	// TaskIdempotencyCleanup purges expired idempotency keys.
	TaskIdempotencyCleanup = "idempotency:cleanup"
	// IdempotencyCleanupCron runs the purge daily at 03:15 UTC.
	IdempotencyCleanupCron = "15 3 * * *"
	// DefaultIdempotencyRetention is how long a submission key blocks duplicates.
	DefaultIdempotencyRetention = 7 * 24 * time.Hour
)

// IdempotencyCleanupPayload overrides the retention window.
type IdempotencyCleanupPayload struct {
	RetentionHours int `json:"retention_hours,omitempty"`
}

// KeyPurger removes keys older than the retention window.
type KeyPurger interface {
	Cleanup(ctx context.Context, olderThan time.Duration) (int64, error)
}

// IdempotencyCleanupJob purges idempotency keys past retention.
type IdempotencyCleanupJob struct {
	Store     KeyPurger
	Retention time.Duration
	Logger    *slog.Logger
	Metrics   *jobmetrics.Metrics
}

// NewIdempotencyCleanupJob constructs the job handler.
func NewIdempotencyCleanupJob(store KeyPurger, retention time.Duration, logger *slog.Logger, metrics *jobmetrics.Metrics) *IdempotencyCleanupJob {
	if retention <= 0 {
		retention = DefaultIdempotencyRetention
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IdempotencyCleanupJob{Store: store, Retention: retention, Logger: logger, Metrics: metrics}
}

// NewIdempotencyCleanupTask creates the cron task.
func NewIdempotencyCleanupTask() (*asynq.Task, error) {
	body, err := json.Marshal(IdempotencyCleanupPayload{})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskIdempotencyCleanup, body, asynq.Queue(QueueDefault), asynq.MaxRetry(2)), nil
}

// Handle executes the purge.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Store == nil {
		return errors.New("jobs: idempotency cleanup not configured")
	}
	var payload IdempotencyCleanupPayload
	if len(task.Payload()) > 0 {
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("decode payload: %v: %w", err, asynq.SkipRetry)
		}
	}
	retention := j.Retention
	if payload.RetentionHours > 0 {
		retention = time.Duration(payload.RetentionHours) * time.Hour
	}
	tracker := j.Metrics.Track(TaskIdempotencyCleanup)
	n, err := j.Store.Cleanup(ctx, retention)
	if err != nil {
		return tracker.End(fmt.Errorf("cleanup idempotency keys: %w", err))
	}
	j.Metrics.AddPurged(n)
	j.Logger.Info("idempotency keys purged", slog.Int64("count", n), slog.Duration("retention", retention))
	return tracker.End(nil)
}
