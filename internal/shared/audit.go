package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SystemActorID marks audit entries written by scheduled jobs.
const SystemActorID int64 = 0

// AuditEntry is one append-only record in audit_logs. Before and After hold
// snapshots of the mutated row so reopen/cancel decisions stay reviewable.
type AuditEntry struct {
	ActorID  int64
	TenantID int64
	Action   string
	Entity   string
	EntityID string
	Before   any
	After    any
	At       time.Time
}

// AuditLogger appends entries to audit_logs.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists the entry. A nil logger is a no-op so services stay usable
// in tests that do not care about audit output.
func (l *AuditLogger) Record(ctx context.Context, entry AuditEntry) error {
	if l == nil || l.pool == nil {
		return nil
	}
	if entry.Action == "" || entry.Entity == "" || entry.EntityID == "" {
		return errors.New("audit entry requires action/entity/entity_id")
	}
	beforeJSON, err := json.Marshal(entry.Before)
	if err != nil {
		return err
	}
	afterJSON, err := json.Marshal(entry.After)
	if err != nil {
		return err
	}
	at := entry.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO audit_logs (id, actor_id, tenant_id, action, entity, entity_id, before, after, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		uuid.New(), entry.ActorID, entry.TenantID, entry.Action, entry.Entity, entry.EntityID, beforeJSON, afterJSON, at)
	return err
}
