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

// BackupPruner deletes backup artifacts past their retention window.
type BackupPruner interface {
	PruneExpired(ctx context.Context) (int64, error)
}

// BackupCleanupJob enforces per-tenant backup retention.
type BackupCleanupJob struct {
	Service BackupPruner
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewBackupCleanupJob initialises the retention cleanup handler.
func NewBackupCleanupJob(svc BackupPruner, logger *slog.Logger, metrics *jobmetrics.Metrics) *BackupCleanupJob {
	return &BackupCleanupJob{Service: svc, Logger: logger, Metrics: metrics}
}

// Handle executes the retention sweep.
func (j *BackupCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("backup cleanup: handler not configured")
	}
	var payload SweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskBackupCleanup)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting backup cleanup sweep")
	start := time.Now()

	pruned, err := j.Service.PruneExpired(ctx)
	if err != nil {
		resultErr = err
		logger.Error("cleanup sweep failed", slog.Any("error", err))
		return resultErr
	}
	j.metrics().AddItems(TaskBackupCleanup, "pruned", int(pruned))

	logger.Info("completed backup cleanup sweep",
		slog.Int64("pruned", pruned),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *BackupCleanupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskBackupCleanup))
	}
	return slog.Default().With(slog.String("job", TaskBackupCleanup))
}

func (j *BackupCleanupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
