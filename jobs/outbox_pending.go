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

const (
	defaultPendingBatch = 100
	// Delivery is network bound, so a few tenants in flight is plenty.
	tenantSweepConcurrency = 4
)

// PendingDeliverer walks tenants holding pending events and delivers them.
type PendingDeliverer interface {
	TenantsWithPending(ctx context.Context) ([]int64, error)
	ProcessPending(ctx context.Context, tenantID int64, limit int) (outbox.ReprocessSummary, error)
}

// OutboxPendingJob drains pending outbox events across all tenants.
type OutboxPendingJob struct {
	Service PendingDeliverer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewOutboxPendingJob initialises the pending delivery handler.
func NewOutboxPendingJob(svc PendingDeliverer, logger *slog.Logger, metrics *jobmetrics.Metrics) *OutboxPendingJob {
	return &OutboxPendingJob{Service: svc, Logger: logger, Metrics: metrics}
}

// Handle iterates tenants with pending events. A failing tenant is logged and
// skipped so the sweep always visits every tenant.
func (j *OutboxPendingJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Service == nil {
		return errors.New("outbox pending: handler not configured")
	}
	var payload BatchPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if payload.Limit <= 0 {
		payload.Limit = defaultPendingBatch
	}

	tracker := j.metrics().Track(TaskOutboxPending)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	logger := j.logger()
	logger.Info("starting outbox pending sweep", slog.Int("limit", payload.Limit))
	start := time.Now()

	tenants, err := j.Service.TenantsWithPending(ctx)
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
			summary, err := j.Service.ProcessPending(gctx, tenantID, payload.Limit)
			if err != nil {
				// Keep sweeping the other tenants.
				logger.Error("tenant sweep failed",
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
	j.metrics().AddItems(TaskOutboxPending, "sent", int(succeeded.Load()))
	j.metrics().AddItems(TaskOutboxPending, "failed", int(failed.Load()))

	logger.Info("completed outbox pending sweep",
		slog.Int("tenants", len(tenants)),
		slog.Int64("sent", succeeded.Load()),
		slog.Int64("failed", failed.Load()),
		slog.Duration("duration", time.Since(start)),
	)
	return resultErr
}

func (j *OutboxPendingJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskOutboxPending))
	}
	return slog.Default().With(slog.String("job", TaskOutboxPending))
}

func (j *OutboxPendingJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
