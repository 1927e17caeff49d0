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

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// PeriodActivator opens periods whose scheduled start date has arrived.
type PeriodActivator interface {
	ActivateScheduled(ctx context.Context) (int, error)
}

// PeriodActivationJob flips closed periods to open on their start date.
type PeriodActivationJob struct {
	Service PeriodActivator
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewPeriodActivationJob initialises the activation sweep handler.
func NewPeriodActivationJob(svc PeriodActivator, logger *slog.Logger, metrics *jobmetrics.Metrics) *PeriodActivationJob {
	return &PeriodActivationJob{Service: svc, Logger: logger, Metrics: metrics}
}

// Handle executes the activation sweep.
func (j *PeriodActivationJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("period activation: handler not configured")
	}
	var payload SweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskPeriodActivation)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting period activation sweep")
	start := time.Now()

	activated, err := j.Service.ActivateScheduled(ctx)
	if err != nil {
		resultErr = err
		logger.Error("activation sweep failed", slog.Any("error", err))
		return resultErr
	}
	j.metrics().AddItems(TaskPeriodActivation, "activated", activated)

	logger.Info("completed period activation sweep",
		slog.Int("activated", activated),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *PeriodActivationJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskPeriodActivation))
	}
	return slog.Default().With(slog.String("job", TaskPeriodActivation))
}

func (j *PeriodActivationJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
