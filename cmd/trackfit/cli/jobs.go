package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/app"
	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/jobs"
)

// Inspector is the subset of *asynq.Inspector used by JobsCLI.
type Inspector interface {
	GetQueueInfo(queue string) (*asynq.QueueInfo, error)
	ListScheduledTasks(queue string, opts ...asynq.ListOption) ([]*asynq.TaskInfo, error)
	Close() error
}

// JobsCLI wraps manual management helpers for asynq jobs.
type JobsCLI struct {
	client    jobs.Enqueuer
	inspector Inspector
}

// NewJobsCLI initialises the CLI helpers using the provided Redis address.
func NewJobsCLI(redisAddr string) *JobsCLI {
	opts := asynq.RedisClientOpt{Addr: redisAddr}
	return &JobsCLI{client: asynq.NewClient(opts), inspector: asynq.NewInspector(opts)}
}

// Close releases underlying resources.
func (c *JobsCLI) Close() error {
	var errs []error
	if c.inspector != nil {
		errs = append(errs, c.inspector.Close())
	}
	if c.client != nil {
		errs = append(errs, c.client.Close())
	}
	return errors.Join(errs...)
}

// Trigger enqueues a supported job by name. fault:escalate needs the report
// id as argument; idempotency:cleanup takes none.
func (c *JobsCLI) Trigger(ctx context.Context, name string, args ...string) (*asynq.TaskInfo, error) {
	if c == nil || c.client == nil {
		return nil, errors.New("jobs cli: client not configured")
	}
	var task *asynq.Task
	var err error
	switch name {
	case jobs.TaskFaultEscalate:
		if len(args) != 1 {
			return nil, fmt.Errorf("jobs cli: %s needs exactly one report id", name)
		}
		task, err = jobs.NewFaultEscalateTask(args[0])
	case jobs.TaskIdempotencyCleanup:
		task, err = jobs.NewIdempotencyCleanupTask()
	default:
		return nil, fmt.Errorf("jobs cli: unsupported job %s", name)
	}
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task)
}

// QueueStats summarises the current queue state.
type QueueStats struct {
	Queue     string `json:"queue"`
	Pending   int    `json:"pending"`
	Active    int    `json:"active"`
	Scheduled int    `json:"scheduled"`
	Retry     int    `json:"retry"`
	Archived  int    `json:"archived"`
}

// InspectQueues reports the metrics of both queues. A queue that has never
// received a task reports zeros.
func (c *JobsCLI) InspectQueues() ([]QueueStats, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	out := make([]QueueStats, 0, 2)
	for _, queue := range []string{jobs.QueueCritical, jobs.QueueDefault} {
		stats := QueueStats{Queue: queue}
		info, err := c.inspector.GetQueueInfo(queue)
		if err != nil && !errors.Is(err, asynq.ErrQueueNotFound) {
			return nil, fmt.Errorf("inspect %s: %w", queue, err)
		}
		if info != nil {
			stats.Pending = info.Pending
			stats.Active = info.Active
			stats.Scheduled = info.Scheduled
			stats.Retry = info.Retry
			stats.Archived = info.Archived
		}
		out = append(out, stats)
	}
	return out, nil
}

// ListScheduled returns scheduled task infos for the queue.
func (c *JobsCLI) ListScheduled(queue string, size int) ([]*asynq.TaskInfo, error) {
	if c == nil || c.inspector == nil {
		return nil, errors.New("jobs cli: inspector not configured")
	}
	if size <= 0 {
		size = 10
	}
	return c.inspector.ListScheduledTasks(queue, asynq.PageSize(size), asynq.Page(1))
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Inspect and trigger background jobs",
}

var jobsTriggerCmd = &cobra.Command{
	Use:   "trigger <name> [report-id]",
	Short: "Enqueue fault:escalate or idempotency:cleanup",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := jobsCLIFromConfig()
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()
		info, err := c.Trigger(cmd.Context(), args[0], args[1:]...)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), map[string]string{"id": info.ID, "type": info.Type, "queue": info.Queue})
	},
}

var jobsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show queue depth",
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := jobsCLIFromConfig()
		if err != nil {
			return err
		}
		defer func() { _ = c.Close() }()
		stats, err := c.InspectQueues()
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), stats)
	},
}

func init() {
	jobsCmd.AddCommand(jobsTriggerCmd, jobsStatsCmd)
}

func jobsCLIFromConfig() (*JobsCLI, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		cfg, err := app.LoadConfig()
		if err != nil {
			return nil, err
		}
		addr = cfg.RedisAddr
	}
	return NewJobsCLI(addr), nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
