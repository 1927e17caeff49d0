package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/scholaris-erp/scholaris-erp/internal/jobs"
)

// BackupExecutor runs backup schedules that are due.
type BackupExecutor interface {
	RunDue(ctx context.Context) (int, error)
}

// BackupRunJob executes due tenant backup schedules.
type BackupRunJob struct {
	Service BackupExecutor
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewBackupRunJob initialises the backup execution handler.
func NewBackupRunJob(svc BackupExecutor, logger *slog.Logger, metrics *jobmetrics.Metrics) *BackupRunJob {
	return &BackupRunJob{Service: svc, Logger: logger, Metrics: metrics}
}

// Handle executes the backup sweep.
func (j *BackupRunJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("backup run: handler not configured")
	}
	var payload SweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskBackupRun)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting backup sweep")
	start := time.Now()

	ran, err := j.Service.RunDue(ctx)
	if err != nil {
		resultErr = err
		logger.Error("backup sweep failed", slog.Any("error", err))
		return resultErr
	}
	j.metrics().AddItems(TaskBackupRun, "ran", ran)

	logger.Info("completed backup sweep",
		slog.Int("ran", ran),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *BackupRunJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskBackupRun))
	}
	return slog.Default().With(slog.String("job", TaskBackupRun))
}

func (j *BackupRunJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
