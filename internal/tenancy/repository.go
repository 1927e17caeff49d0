package tenancy

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scholaris-erp/scholaris-erp/internal/shared"
)

// Repository resolves tenants from storage.
type Repository interface {
	FindBySubdomain(ctx context.Context, subdomain string) (Tenant, error)
	SubdomainByTenant(ctx context.Context, tenantID int64) (string, error)
	ListActiveIDs(ctx context.Context) ([]int64, error)
}

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns a pgx-backed tenant repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) FindBySubdomain(ctx context.Context, subdomain string) (Tenant, error) {
	var t Tenant
	err := r.db.QueryRow(ctx, `SELECT id, name, subdomain, active, created_at, updated_at
FROM tenants WHERE subdomain=$1 AND active`, subdomain).
		Scan(&t.ID, &t.Name, &t.Subdomain, &t.Active, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Tenant{}, shared.ErrNotFound
		}
		return Tenant{}, err
	}
	return t, nil
}

func (r *repository) SubdomainByTenant(ctx context.Context, tenantID int64) (string, error) {
	var subdomain string
	err := r.db.QueryRow(ctx, `SELECT subdomain FROM tenants WHERE id=$1`, tenantID).Scan(&subdomain)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", shared.ErrNotFound
		}
		return "", err
	}
	return subdomain, nil
}

// ListActiveIDs returns every active tenant id. Only the scheduled sweep
// path may use it; request handlers stay scoped to one tenant.
func (r *repository) ListActiveIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM tenants WHERE active ORDER BY id`)
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
