package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	jobmetrics "github.com/scholaris-erp/scholaris-erp/internal/jobs"
	"github.com/scholaris-erp/scholaris-erp/internal/outbox"
)

const defaultRetryBatch = 50

// ErrorReprocessor walks tenants holding errored events and retries them.
type ErrorReprocessor interface {
	TenantsWithErrors(ctx context.Context) ([]int64, error)
	ReprocessErrors(ctx context.Context, tenantID int64, limit int) (outbox.ReprocessSummary, error)
}

// OutboxRetryJob re-attempts delivery of errored outbox events tenant by tenant.
type OutboxRetryJob struct {
	Service ErrorReprocessor
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewOutboxRetryJob initialises the retry handler.
func NewOutboxRetryJob(svc ErrorReprocessor, logger *slog.Logger, metrics *jobmetrics.Metrics) *OutboxRetryJob {
	return &OutboxRetryJob{Service: svc, Logger: logger, Metrics: metrics}
}

// Handle iterates tenants with errored events, isolating per-tenant failures.
func (j *OutboxRetryJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("outbox retry: handler not configured")
	}
	var payload BatchPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Limit <= 0 {
		payload.Limit = defaultRetryBatch
	}

	tracker := j.metrics().Track(TaskOutboxRetry)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting outbox retry sweep", slog.Int("limit", payload.Limit))
	start := time.Now()

	tenants, err := j.Service.TenantsWithErrors(ctx)
	if err != nil {
		resultErr = err
		logger.Error("listing tenants failed", slog.Any("error", err))
		return resultErr
	}

	var succeeded, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(tenantSweepConcurrency)
	for _, tenantID := range tenants {
		tenantID := tenantID
		g.Go(func() error {
			summary, err := j.Service.ReprocessErrors(gctx, tenantID, payload.Limit)
			if err != nil {
				logger.Error("tenant retry failed",
					slog.Int64("tenant_id", tenantID),
					slog.Any("error", err),
				)
				return nil
			}
			succeeded.Add(int64(summary.Succeeded))
			failed.Add(int64(summary.Failed))
			return nil
		})
	}
	_ = g.Wait()
	j.metrics().AddItems(TaskOutboxRetry, "sent", int(succeeded.Load()))
	j.metrics().AddItems(TaskOutboxRetry, "failed", int(failed.Load()))

	logger.Info("completed outbox retry sweep",
		slog.Int("tenants", len(tenants)),
		slog.Int64("sent", succeeded.Load()),
		slog.Int64("failed", failed.Load()),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *OutboxRetryJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskOutboxRetry))
	}
	return slog.Default().With(slog.String("job", TaskOutboxRetry))
}

func (j *OutboxRetryJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
