// Package jobs runs the asynq worker and defines the background tasks.
package jobs

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueCritical carries escalations so they are not starved by housekeeping.
	QueueCritical = "critical"
)
