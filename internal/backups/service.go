package backups

import (
	"context"
	"log/slog"
	"time"
)

// Runner executes one backup and returns where the artifact was stored.
// The storage subsystem itself lives outside this core.
type Runner interface {
	Run(ctx context.Context, schedule Schedule) (location string, err error)
}

// Service coordinates scheduled backups and retention cleanup.
type Service struct {
	repo   Repository
	runner Runner
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a Service instance.
func NewService(repo Repository, runner Runner, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		runner: runner,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// RunDue executes every schedule that is due. One schedule's failure never
// aborts the rest of the pass.
func (s *Service) RunDue(ctx context.Context) (int, error) {
	schedules, err := s.repo.ActiveSchedules(ctx)
	if err != nil {
		return 0, err
	}
	now := s.now()
	ran := 0
	for _, schedule := range schedules {
		if !schedule.Due(now) {
			continue
		}
		location, err := s.runner.Run(ctx, schedule)
		if err != nil {
			if s.logger != nil {
				s.logger.Error("backup run",
					slog.Int64("schedule_id", schedule.ID),
					slog.Int64("tenant_id", schedule.TenantID),
					slog.Any("error", err))
			}
			continue
		}
		if err := s.repo.RecordRun(ctx, Artifact{
			ScheduleID: schedule.ID,
			TenantID:   schedule.TenantID,
			Location:   location,
			CreatedAt:  now,
		}); err != nil {
			return ran, err
		}
		ran++
	}
	return ran, nil
}

// PruneExpired deletes artifacts older than each tenant's retention window.
func (s *Service) PruneExpired(ctx context.Context) (int64, error) {
	cutoffs, err := s.repo.RetentionCutoffs(ctx, s.now())
	if err != nil {
		return 0, err
	}
	var deleted int64
	for tenantID, cutoff := range cutoffs {
		n, err := s.repo.DeleteArtifactsBefore(ctx, tenantID, cutoff)
		if err != nil {
			if s.logger != nil {
				s.logger.Error("backup retention cleanup",
					slog.Int64("tenant_id", tenantID), slog.Any("error", err))
			}
			continue
		}
		deleted += n
	}
	return deleted, nil
}
