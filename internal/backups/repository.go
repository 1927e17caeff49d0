package backups

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scholaris-erp/scholaris-erp/internal/platform/db"
)

// Repository persists backup schedules and artifacts.
type Repository interface {
	ActiveSchedules(ctx context.Context) ([]Schedule, error)
	RecordRun(ctx context.Context, a Artifact) error
	DeleteArtifactsBefore(ctx context.Context, tenantID int64, cutoff time.Time) (int64, error)
	RetentionCutoffs(ctx context.Context, now time.Time) (map[int64]time.Time, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns a pgx-backed backup repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) ActiveSchedules(ctx context.Context) ([]Schedule, error) {
	rows, err := r.db.Query(ctx, `SELECT id, tenant_id, frequency, retention_days, active, last_run_at, created_at, updated_at
FROM backup_schedules WHERE active ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var schedules []Schedule
	for rows.Next() {
		var s Schedule
		if err := rows.Scan(&s.ID, &s.TenantID, &s.Frequency, &s.RetentionDays, &s.Active, &s.LastRunAt, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		schedules = append(schedules, s)
	}
	return schedules, rows.Err()
}

// RecordRun stores the artifact and stamps the schedule inside one
// transaction. A crash between the two writes would otherwise leave the
// schedule due again with the artifact already on disk.
func (r *repository) RecordRun(ctx context.Context, a Artifact) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `INSERT INTO backup_artifacts (schedule_id, tenant_id, location, created_at)
VALUES ($1,$2,$3,$4)`, a.ScheduleID, a.TenantID, a.Location, a.CreatedAt); err != nil {
			return err
		}
		_, err := tx.Exec(ctx, `UPDATE backup_schedules SET last_run_at=$2, updated_at=NOW() WHERE id=$1`, a.ScheduleID, a.CreatedAt)
		return err
	})
}

func (r *repository) DeleteArtifactsBefore(ctx context.Context, tenantID int64, cutoff time.Time) (int64, error) {
	cmd, err := r.db.Exec(ctx, `DELETE FROM backup_artifacts WHERE tenant_id=$1 AND created_at < $2`, tenantID, cutoff)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

// RetentionCutoffs computes, per tenant with an active schedule, the instant
// before which artifacts have aged out.
func (r *repository) RetentionCutoffs(ctx context.Context, now time.Time) (map[int64]time.Time, error) {
	rows, err := r.db.Query(ctx, `SELECT tenant_id, MIN(retention_days) FROM backup_schedules WHERE active GROUP BY tenant_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	cutoffs := make(map[int64]time.Time)
	for rows.Next() {
		var tenantID int64
		var days int
		if err := rows.Scan(&tenantID, &days); err != nil {
			return nil, err
		}
		cutoffs[tenantID] = now.AddDate(0, 0, -days)
	}
	return cutoffs, rows.Err()
}
