package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskPeriodActivation opens periods whose start date has arrived.
	TaskPeriodActivation = "periods:activate"
	// TaskReopenExpiry closes reopened periods past their extended end date.
	TaskReopenExpiry = "periods:close_expired"
	// TaskOutboxPending delivers pending outbox events to the integration endpoint.
	TaskOutboxPending = "outbox:process_pending"
	// TaskOutboxRetry re-attempts outbox events stuck in error state.
	TaskOutboxRetry = "outbox:retry_errors"
	// TaskBackupRun executes due backup schedules.
	TaskBackupRun = "backups:run"
	// TaskBackupCleanup prunes backup artifacts past their retention window.
	TaskBackupCleanup = "backups:cleanup"
)

// SweepPayload carries scheduling metadata shared by the cron sweeps.
type SweepPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// BatchPayload adds a per-tenant batch cap to a sweep.
type BatchPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
	Limit        int       `json:"limit"`
}

// NewPeriodActivationTask constructs the daily period activation task.
func NewPeriodActivationTask(at time.Time) (*asynq.Task, error) {
	return sweepTask(TaskPeriodActivation, at)
}

// NewReopenExpiryTask constructs the reopened-period expiry task.
func NewReopenExpiryTask(at time.Time) (*asynq.Task, error) {
	return sweepTask(TaskReopenExpiry, at)
}

// NewOutboxPendingTask constructs the pending-event delivery task.
func NewOutboxPendingTask(at time.Time, limit int) (*asynq.Task, error) {
	return batchTask(TaskOutboxPending, at, limit)
}

// NewOutboxRetryTask constructs the errored-event retry task.
func NewOutboxRetryTask(at time.Time, limit int) (*asynq.Task, error) {
	return batchTask(TaskOutboxRetry, at, limit)
}

// NewBackupRunTask constructs the backup execution task.
func NewBackupRunTask(at time.Time) (*asynq.Task, error) {
	return sweepTask(TaskBackupRun, at)
}

// NewBackupCleanupTask constructs the backup retention cleanup task.
func NewBackupCleanupTask(at time.Time) (*asynq.Task, error) {
	return sweepTask(TaskBackupCleanup, at)
}

func sweepTask(taskType string, at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(SweepPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body, asynq.Queue(QueueDefault)), nil
}

func batchTask(taskType string, at time.Time, limit int) (*asynq.Task, error) {
	body, err := json.Marshal(BatchPayload{ScheduledFor: at, Limit: limit})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskType, body, asynq.Queue(QueueDefault)), nil
}
