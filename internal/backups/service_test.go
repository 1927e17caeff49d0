package backups_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/scholaris-erp/scholaris-erp/internal/backups"
)

type stubBackupRepo struct {
	schedules []backups.Schedule
	artifacts []backups.Artifact
	runs      map[int64]time.Time
	cutoffs   map[int64]time.Time
	deleted   map[int64]time.Time
}

func (r *stubBackupRepo) ActiveSchedules(ctx context.Context) ([]backups.Schedule, error) {
	return r.schedules, nil
}

func (r *stubBackupRepo) RecordRun(ctx context.Context, a backups.Artifact) error {
	if r.runs == nil {
		r.runs = map[int64]time.Time{}
	}
	r.runs[a.ScheduleID] = a.CreatedAt
	r.artifacts = append(r.artifacts, a)
	return nil
}

func (r *stubBackupRepo) DeleteArtifactsBefore(ctx context.Context, tenantID int64, cutoff time.Time) (int64, error) {
	if r.deleted == nil {
		r.deleted = map[int64]time.Time{}
	}
	r.deleted[tenantID] = cutoff
	return 2, nil
}

func (r *stubBackupRepo) RetentionCutoffs(ctx context.Context, now time.Time) (map[int64]time.Time, error) {
	return r.cutoffs, nil
}

type stubRunner struct {
	err   error
	calls int
}

func (s *stubRunner) Run(ctx context.Context, schedule backups.Schedule) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return "s3://backups/demo", nil
}

func TestRunDueSkipsFreshSchedules(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	recent := now.Add(-30 * time.Minute)
	stale := now.Add(-48 * time.Hour)
	repo := &stubBackupRepo{schedules: []backups.Schedule{
		{ID: 1, TenantID: 1, Frequency: backups.FrequencyDaily, Active: true, LastRunAt: &stale},
		{ID: 2, TenantID: 2, Frequency: backups.FrequencyDaily, Active: true, LastRunAt: &recent},
		{ID: 3, TenantID: 3, Frequency: backups.FrequencyDaily, Active: false},
		{ID: 4, TenantID: 4, Frequency: backups.FrequencyHourly, Active: true},
	}}
	runner := &stubRunner{}
	svc := backups.NewService(repo, runner, nil)
	svc.WithNow(func() time.Time { return now })

	ran, err := svc.RunDue(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, ran, "stale and never-run schedules fire; fresh and inactive do not")
	require.Len(t, repo.artifacts, 2)
	require.Contains(t, repo.runs, int64(1))
	require.Contains(t, repo.runs, int64(4))
}

func TestRunDueIsolatesRunnerFailures(t *testing.T) {
	repo := &stubBackupRepo{schedules: []backups.Schedule{
		{ID: 1, TenantID: 1, Frequency: backups.FrequencyDaily, Active: true},
		{ID: 2, TenantID: 2, Frequency: backups.FrequencyDaily, Active: true},
	}}
	runner := &stubRunner{err: errors.New("storage unreachable")}
	svc := backups.NewService(repo, runner, nil)

	ran, err := svc.RunDue(context.Background())
	require.NoError(t, err)
	require.Zero(t, ran)
	require.Equal(t, 2, runner.calls, "failure on one schedule must not stop the pass")
}

func TestPruneExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 2, 0, 0, 0, time.UTC)
	repo := &stubBackupRepo{cutoffs: map[int64]time.Time{
		1: now.AddDate(0, 0, -30),
		2: now.AddDate(0, 0, -7),
	}}
	svc := backups.NewService(repo, &stubRunner{}, nil)
	svc.WithNow(func() time.Time { return now })

	deleted, err := svc.PruneExpired(context.Background())
	require.NoError(t, err)
	require.Equal(t, int64(4), deleted)
	require.Len(t, repo.deleted, 2)
}
