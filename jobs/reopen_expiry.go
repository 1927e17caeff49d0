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

// ReopenSweeper closes reopened periods whose extended end date has passed.
type ReopenSweeper interface {
	CloseExpiredReopened(ctx context.Context) (int, error)
}

// ReopenExpiryJob returns reopened periods to closed once their window lapses.
type ReopenExpiryJob struct {
	Service ReopenSweeper
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewReopenExpiryJob initialises the reopen expiry handler.
func NewReopenExpiryJob(svc ReopenSweeper, logger *slog.Logger, metrics *jobmetrics.Metrics) *ReopenExpiryJob {
	return &ReopenExpiryJob{Service: svc, Logger: logger, Metrics: metrics}
}

// Handle executes the expiry sweep.
func (j *ReopenExpiryJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("reopen expiry: handler not configured")
	}
	var payload SweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskReopenExpiry)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting reopen expiry sweep")
	start := time.Now()

	closed, err := j.Service.CloseExpiredReopened(ctx)
	if err != nil {
		resultErr = err
		logger.Error("expiry sweep failed", slog.Any("error", err))
		return resultErr
	}
	j.metrics().AddItems(TaskReopenExpiry, "closed", closed)

	logger.Info("completed reopen expiry sweep",
		slog.Int("closed", closed),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *ReopenExpiryJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskReopenExpiry))
	}
	return slog.Default().With(slog.String("job", TaskReopenExpiry))
}

func (j *ReopenExpiryJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
