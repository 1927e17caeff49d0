package periods

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scholaris-erp/scholaris-erp/internal/shared"
)

const periodColumns = `id, tenant_id, academic_year_id, kind, number, start_date, end_date, status, reopened_by, reopened_at, reopen_reason, created_at, updated_at`

// Repository encapsulates DB operations for periods. Every tenant-facing
// query is keyed by tenant id; the sweep methods are the only cross-tenant
// path and exist for the scheduler.
type Repository interface {
	Insert(ctx context.Context, p Period) (Period, error)
	GetByID(ctx context.Context, tenantID, id int64) (Period, error)
	Update(ctx context.Context, p Period) (Period, error)
	List(ctx context.Context, tenantID int64, limit, offset int) ([]Period, error)
	FindActive(ctx context.Context, tenantID int64, now time.Time) (Period, error)
	AcademicYearBelongs(ctx context.Context, tenantID, yearID int64) (bool, error)
	ActivateScheduled(ctx context.Context, day time.Time) ([]Period, error)
	CloseExpiredReopened(ctx context.Context, now time.Time) ([]Period, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns a pgx-backed period repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) Insert(ctx context.Context, p Period) (Period, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO periods (tenant_id, academic_year_id, kind, number, start_date, end_date, status)
VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id, created_at, updated_at`,
		p.TenantID, p.AcademicYearID, p.Kind, p.Number, p.StartDate, p.EndDate, p.Status)
	if err := row.Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Period{}, shared.NewValidation("a period with this number already exists for the academic year")
		}
		return Period{}, err
	}
	return p, nil
}

func (r *repository) GetByID(ctx context.Context, tenantID, id int64) (Period, error) {
	row := r.db.QueryRow(ctx, `SELECT `+periodColumns+` FROM periods WHERE id=$1 AND tenant_id=$2`, id, tenantID)
	return scanPeriod(row)
}

// Update rewrites the mutable fields as a single conditional statement keyed
// by id and tenant. Zero rows affected means the row is missing or foreign.
func (r *repository) Update(ctx context.Context, p Period) (Period, error) {
	row := r.db.QueryRow(ctx, `UPDATE periods
SET start_date=$3, end_date=$4, status=$5, reopened_by=$6, reopened_at=$7, reopen_reason=$8, updated_at=NOW()
WHERE id=$1 AND tenant_id=$2
RETURNING `+periodColumns,
		p.ID, p.TenantID, p.StartDate, p.EndDate, p.Status, p.ReopenedBy, p.ReopenedAt, p.ReopenReason)
	return scanPeriod(row)
}

func (r *repository) List(ctx context.Context, tenantID int64, limit, offset int) ([]Period, error) {
	rows, err := r.db.Query(ctx, `SELECT `+periodColumns+` FROM periods
WHERE tenant_id=$1 ORDER BY start_date DESC LIMIT $2 OFFSET $3`, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// FindActive returns the OPEN period whose window contains now.
func (r *repository) FindActive(ctx context.Context, tenantID int64, now time.Time) (Period, error) {
	row := r.db.QueryRow(ctx, `SELECT `+periodColumns+` FROM periods
WHERE tenant_id=$1 AND status='OPEN' AND $2 BETWEEN start_date AND end_date
ORDER BY start_date LIMIT 1`, tenantID, now)
	return scanPeriod(row)
}

func (r *repository) AcademicYearBelongs(ctx context.Context, tenantID, yearID int64) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM academic_years WHERE id=$1 AND tenant_id=$2)`, yearID, tenantID).Scan(&exists)
	return exists, err
}

// ActivateScheduled opens every closed period whose window begins on the
// given day, across all tenants. Used only by the daily activation job.
func (r *repository) ActivateScheduled(ctx context.Context, day time.Time) ([]Period, error) {
	rows, err := r.db.Query(ctx, `UPDATE periods
SET status='OPEN', updated_at=NOW()
WHERE status='CLOSED' AND start_date::date = $1::date AND reopened_at IS NULL
RETURNING `+periodColumns, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPeriods(rows)
}

// CloseExpiredReopened force-closes reopened periods whose extension window
// has passed. The status guard makes concurrent sweeps idempotent.
func (r *repository) CloseExpiredReopened(ctx context.Context, now time.Time) ([]Period, error) {
	rows, err := r.db.Query(ctx, `UPDATE periods
SET status='CLOSED', updated_at=NOW()
WHERE status='OPEN' AND reopened_at IS NOT NULL AND end_date < $1
RETURNING `+periodColumns, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPeriods(rows)
}

func collectPeriods(rows pgx.Rows) ([]Period, error) {
	var result []Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	err := row.Scan(&p.ID, &p.TenantID, &p.AcademicYearID, &p.Kind, &p.Number,
		&p.StartDate, &p.EndDate, &p.Status, &p.ReopenedBy, &p.ReopenedAt, &p.ReopenReason,
		&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, shared.ErrNotFound
		}
		return Period{}, err
	}
	return p, nil
}
