package outbox

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scholaris-erp/scholaris-erp/internal/shared"
)

const eventColumns = `id, tenant_id, event_type, payload, status, protocol, attempts, last_error, cancel_reason, created_by, created_at, updated_at, sent_at`

// Repository encapsulates DB operations for outbox events. Status
// transitions are conditional updates guarded by the current status: a
// false return means another writer got there first, so the caller skips
// the row rather than delivering twice.
type Repository interface {
	Insert(ctx context.Context, e Event) (Event, error)
	GetByID(ctx context.Context, tenantID int64, id uuid.UUID) (Event, error)
	List(ctx context.Context, tenantID int64, status Status, limit, offset int) ([]Event, error)
	MarkSent(ctx context.Context, id uuid.UUID, protocol string, at time.Time) (bool, error)
	MarkError(ctx context.Context, id uuid.UUID, message string) (bool, error)
	ResetToPending(ctx context.Context, tenantID int64, id uuid.UUID) (bool, error)
	Cancel(ctx context.Context, tenantID int64, id uuid.UUID, reason string) (bool, error)
	ListPendingIDs(ctx context.Context, tenantID int64, limit int) ([]uuid.UUID, error)
	ListErrorIDs(ctx context.Context, tenantID int64, limit int) ([]uuid.UUID, error)
	TenantsWithPending(ctx context.Context) ([]int64, error)
	TenantsWithErrors(ctx context.Context) ([]int64, error)
	CountByStatus(ctx context.Context, tenantID int64) (Stats, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns a pgx-backed outbox repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) Insert(ctx context.Context, e Event) (Event, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO outbox_events (id, tenant_id, event_type, payload, status, created_by)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING created_at, updated_at`,
		e.ID, e.TenantID, e.EventType, e.Payload, e.Status, e.CreatedBy)
	if err := row.Scan(&e.CreatedAt, &e.UpdatedAt); err != nil {
		return Event{}, err
	}
	return e, nil
}

func (r *repository) GetByID(ctx context.Context, tenantID int64, id uuid.UUID) (Event, error) {
	row := r.db.QueryRow(ctx, `SELECT `+eventColumns+` FROM outbox_events WHERE id=$1 AND tenant_id=$2`, id, tenantID)
	return scanEvent(row)
}

func (r *repository) List(ctx context.Context, tenantID int64, status Status, limit, offset int) ([]Event, error) {
	query := `SELECT ` + eventColumns + ` FROM outbox_events WHERE tenant_id=$1`
	args := []any{tenantID}
	if status != "" {
		query += ` AND status=$2`
		args = append(args, status)
	}
	query += ` ORDER BY created_at DESC LIMIT ` + placeholder(len(args)+1) + ` OFFSET ` + placeholder(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, e)
	}
	return result, rows.Err()
}

// MarkSent completes delivery, but only while the row is still PENDING.
func (r *repository) MarkSent(ctx context.Context, id uuid.UUID, protocol string, at time.Time) (bool, error) {
	cmd, err := r.db.Exec(ctx, `UPDATE outbox_events
SET status='SENT', protocol=$2, sent_at=$3, last_error='', updated_at=NOW()
WHERE id=$1 AND status='PENDING'`, id, protocol, at)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

// MarkError records a failed attempt and bumps the attempt counter.
func (r *repository) MarkError(ctx context.Context, id uuid.UUID, message string) (bool, error) {
	cmd, err := r.db.Exec(ctx, `UPDATE outbox_events
SET status='ERROR', last_error=$2, attempts=attempts+1, updated_at=NOW()
WHERE id=$1 AND status='PENDING'`, id, message)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *repository) ResetToPending(ctx context.Context, tenantID int64, id uuid.UUID) (bool, error) {
	cmd, err := r.db.Exec(ctx, `UPDATE outbox_events
SET status='PENDING', updated_at=NOW()
WHERE id=$1 AND tenant_id=$2 AND status='ERROR'`, id, tenantID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

// Cancel is allowed from PENDING and ERROR only; terminal states stay put.
func (r *repository) Cancel(ctx context.Context, tenantID int64, id uuid.UUID, reason string) (bool, error) {
	cmd, err := r.db.Exec(ctx, `UPDATE outbox_events
SET status='CANCELED', cancel_reason=$3, updated_at=NOW()
WHERE id=$1 AND tenant_id=$2 AND status IN ('PENDING','ERROR')`, id, tenantID, reason)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (r *repository) ListPendingIDs(ctx context.Context, tenantID int64, limit int) ([]uuid.UUID, error) {
	return r.listIDs(ctx, `SELECT id FROM outbox_events
WHERE tenant_id=$1 AND status='PENDING' ORDER BY created_at ASC LIMIT $2`, tenantID, limit)
}

// ListErrorIDs returns ERROR rows most-recently-updated first.
func (r *repository) ListErrorIDs(ctx context.Context, tenantID int64, limit int) ([]uuid.UUID, error) {
	return r.listIDs(ctx, `SELECT id FROM outbox_events
WHERE tenant_id=$1 AND status='ERROR' ORDER BY updated_at DESC LIMIT $2`, tenantID, limit)
}

func (r *repository) listIDs(ctx context.Context, query string, tenantID int64, limit int) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, query, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *repository) TenantsWithPending(ctx context.Context) ([]int64, error) {
	return r.tenantIDs(ctx, `SELECT DISTINCT tenant_id FROM outbox_events WHERE status='PENDING' ORDER BY tenant_id`)
}

func (r *repository) TenantsWithErrors(ctx context.Context) ([]int64, error) {
	return r.tenantIDs(ctx, `SELECT DISTINCT tenant_id FROM outbox_events WHERE status='ERROR' ORDER BY tenant_id`)
}

func (r *repository) tenantIDs(ctx context.Context, query string) ([]int64, error) {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *repository) CountByStatus(ctx context.Context, tenantID int64) (Stats, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM outbox_events WHERE tenant_id=$1 GROUP BY status`, tenantID)
	if err != nil {
		return Stats{}, err
	}
	defer rows.Close()
	var stats Stats
	for rows.Next() {
		var status Status
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, err
		}
		switch status {
		case StatusPending:
			stats.Pending = count
		case StatusSent:
			stats.Sent = count
		case StatusError:
			stats.Error = count
		case StatusCanceled:
			stats.Canceled = count
		}
	}
	return stats, rows.Err()
}

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func scanEvent(row pgx.Row) (Event, error) {
	var e Event
	err := row.Scan(&e.ID, &e.TenantID, &e.EventType, &e.Payload, &e.Status, &e.Protocol,
		&e.Attempts, &e.LastError, &e.CancelReason, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt, &e.SentAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Event{}, shared.ErrNotFound
		}
		return Event{}, err
	}
	return e, nil
}
