package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jobmetrics "github.com/scholaris-erp/scholaris-erp/internal/jobs"
	"github.com/scholaris-erp/scholaris-erp/internal/outbox"
)

func testMetrics() *jobmetrics.Metrics {
	return jobmetrics.NewMetrics(prometheus.NewRegistry())
}

func sweepTaskAt(t *testing.T, taskType string) *asynq.Task {
	t.Helper()
	body, err := json.Marshal(SweepPayload{ScheduledFor: time.Now().UTC()})
	require.NoError(t, err)
	return asynq.NewTask(taskType, body)
}

func batchTaskAt(t *testing.T, taskType string, limit int) *asynq.Task {
	t.Helper()
	body, err := json.Marshal(BatchPayload{ScheduledFor: time.Now().UTC(), Limit: limit})
	require.NoError(t, err)
	return asynq.NewTask(taskType, body)
}

type stubActivator struct {
	activated int
	err       error
	calls     int
}

func (s *stubActivator) ActivateScheduled(context.Context) (int, error) {
	s.calls++
	return s.activated, s.err
}

func TestPeriodActivationJob(t *testing.T) {
	svc := &stubActivator{activated: 3}
	job := NewPeriodActivationJob(svc, nil, testMetrics())

	err := job.Handle(context.Background(), sweepTaskAt(t, TaskPeriodActivation))
	require.NoError(t, err)
	assert.Equal(t, 1, svc.calls)
}

func TestPeriodActivationJobPropagatesSweepError(t *testing.T) {
	svc := &stubActivator{err: errors.New("db down")}
	job := NewPeriodActivationJob(svc, nil, testMetrics())

	err := job.Handle(context.Background(), sweepTaskAt(t, TaskPeriodActivation))
	require.Error(t, err)
}

func TestPeriodActivationJobSkipsMalformedPayload(t *testing.T) {
	job := NewPeriodActivationJob(&stubActivator{}, nil, testMetrics())

	err := job.Handle(context.Background(), asynq.NewTask(TaskPeriodActivation, []byte("{broken")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

type stubReopenSweeper struct {
	closed int
	calls  int
}

func (s *stubReopenSweeper) CloseExpiredReopened(context.Context) (int, error) {
	s.calls++
	return s.closed, nil
}

func TestReopenExpiryJob(t *testing.T) {
	svc := &stubReopenSweeper{closed: 2}
	job := NewReopenExpiryJob(svc, nil, testMetrics())

	err := job.Handle(context.Background(), sweepTaskAt(t, TaskReopenExpiry))
	require.NoError(t, err)
	assert.Equal(t, 1, svc.calls)
}

type stubDeliverer struct {
	tenants   []int64
	failFor   map[int64]error
	summaries map[int64]outbox.ReprocessSummary

	mu     sync.Mutex
	seen   []int64
	limits []int
}

func (s *stubDeliverer) TenantsWithPending(context.Context) ([]int64, error) {
	return s.tenants, nil
}

func (s *stubDeliverer) ProcessPending(_ context.Context, tenantID int64, limit int) (outbox.ReprocessSummary, error) {
	s.mu.Lock()
	s.seen = append(s.seen, tenantID)
	s.limits = append(s.limits, limit)
	s.mu.Unlock()
	if err := s.failFor[tenantID]; err != nil {
		return outbox.ReprocessSummary{}, err
	}
	return s.summaries[tenantID], nil
}

func TestOutboxPendingJobVisitsEveryTenant(t *testing.T) {
	svc := &stubDeliverer{
		tenants: []int64{1, 2, 3},
		failFor: map[int64]error{2: errors.New("gateway down")},
		summaries: map[int64]outbox.ReprocessSummary{
			1: {Processed: 2, Succeeded: 2},
			3: {Processed: 1, Succeeded: 1},
		},
	}
	job := NewOutboxPendingJob(svc, nil, testMetrics())

	err := job.Handle(context.Background(), batchTaskAt(t, TaskOutboxPending, 25))
	require.NoError(t, err, "one broken tenant must not abort the sweep")
	assert.ElementsMatch(t, []int64{1, 2, 3}, svc.seen)
	assert.Equal(t, []int{25, 25, 25}, svc.limits)
}

func TestOutboxPendingJobDefaultsBatchLimit(t *testing.T) {
	svc := &stubDeliverer{tenants: []int64{7}}
	job := NewOutboxPendingJob(svc, nil, testMetrics())

	err := job.Handle(context.Background(), batchTaskAt(t, TaskOutboxPending, 0))
	require.NoError(t, err)
	assert.Equal(t, []int{defaultPendingBatch}, svc.limits)
}

type stubReprocessor struct {
	tenants []int64

	mu   sync.Mutex
	seen []int64
}

func (s *stubReprocessor) TenantsWithErrors(context.Context) ([]int64, error) {
	return s.tenants, nil
}

func (s *stubReprocessor) ReprocessErrors(_ context.Context, tenantID int64, limit int) (outbox.ReprocessSummary, error) {
	s.mu.Lock()
	s.seen = append(s.seen, tenantID)
	s.mu.Unlock()
	return outbox.ReprocessSummary{Processed: 1, Succeeded: 1}, nil
}

func TestOutboxRetryJob(t *testing.T) {
	svc := &stubReprocessor{tenants: []int64{4, 9}}
	job := NewOutboxRetryJob(svc, nil, testMetrics())

	err := job.Handle(context.Background(), batchTaskAt(t, TaskOutboxRetry, 10))
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{4, 9}, svc.seen)
}

type stubBackupSvc struct {
	ran    int
	pruned int64
	err    error
}

func (s *stubBackupSvc) RunDue(context.Context) (int, error) { return s.ran, s.err }

func (s *stubBackupSvc) PruneExpired(context.Context) (int64, error) { return s.pruned, s.err }

func TestBackupJobs(t *testing.T) {
	svc := &stubBackupSvc{ran: 2, pruned: 5}

	run := NewBackupRunJob(svc, nil, testMetrics())
	require.NoError(t, run.Handle(context.Background(), sweepTaskAt(t, TaskBackupRun)))

	cleanup := NewBackupCleanupJob(svc, nil, testMetrics())
	require.NoError(t, cleanup.Handle(context.Background(), sweepTaskAt(t, TaskBackupCleanup)))
}

func TestBackupRunJobPropagatesError(t *testing.T) {
	svc := &stubBackupSvc{err: errors.New("pg_dump failed")}
	job := NewBackupRunJob(svc, nil, testMetrics())

	err := job.Handle(context.Background(), sweepTaskAt(t, TaskBackupRun))
	require.Error(t, err)
}

func TestTaskConstructorsCarrySchedule(t *testing.T) {
	at := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	task, err := NewOutboxPendingTask(at, 40)
	require.NoError(t, err)
	assert.Equal(t, TaskOutboxPending, task.Type())

	var payload BatchPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.True(t, payload.ScheduledFor.Equal(at))
	assert.Equal(t, 40, payload.Limit)
}
