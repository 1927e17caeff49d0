package outbox

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/scholaris-erp/scholaris-erp/internal/shared"
)

// Auditor records append-only audit entries for outbox transitions.
type Auditor interface {
	Record(ctx context.Context, entry shared.AuditEntry) error
}

// DeliveryResult describes the outcome of one delivery attempt. Delivery
// being skipped (integration off, or another writer already transitioned
// the row) is a non-error outcome.
type DeliveryResult struct {
	Delivered bool   `json:"delivered"`
	Skipped   bool   `json:"skipped"`
	Protocol  string `json:"protocol,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// ReprocessSummary reports a batch retry. Processed always equals
// Succeeded plus Failed.
type ReprocessSummary struct {
	Processed int `json:"processed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// IntegrationStatus is the externally visible view of the integration.
type IntegrationStatus struct {
	Enabled    bool `json:"enabled"`
	Configured bool `json:"configured"`
}

// Service orchestrates the outbox lifecycle.
type Service struct {
	repo    Repository
	gateway Gateway
	cfg     IntegrationConfig
	audit   Auditor
	logger  *slog.Logger
	now     func() time.Time
}

// NewService constructs a Service instance.
func NewService(repo Repository, gateway Gateway, cfg IntegrationConfig, audit Auditor, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		gateway: gateway,
		cfg:     cfg,
		audit:   audit,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Enqueue inserts a PENDING event. No external call happens here.
func (s *Service) Enqueue(ctx context.Context, tenantID int64, eventType string, payload json.RawMessage, actor *shared.Identity) (Event, error) {
	eventType = strings.TrimSpace(eventType)
	if eventType == "" {
		return Event{}, shared.NewValidation("event type is required")
	}
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	event := Event{
		ID:        uuid.New(),
		TenantID:  tenantID,
		EventType: eventType,
		Payload:   payload,
		Status:    StatusPending,
		CreatedBy: actorID(actor),
	}
	created, err := s.repo.Insert(ctx, event)
	if err != nil {
		return Event{}, err
	}
	s.recordAudit(ctx, actorID(actor), tenantID, "outbox.enqueue", created.ID, nil, created)
	return created, nil
}

// Get returns a single event scoped to the tenant.
func (s *Service) Get(ctx context.Context, tenantID int64, id uuid.UUID) (Event, error) {
	return s.repo.GetByID(ctx, tenantID, id)
}

// List returns the tenant's events, optionally filtered by status.
func (s *Service) List(ctx context.Context, tenantID int64, status Status, limit, offset int) ([]Event, error) {
	return s.repo.List(ctx, tenantID, status, limit, offset)
}

// Status reports whether the integration can deliver at all.
func (s *Service) Status() IntegrationStatus {
	return IntegrationStatus{Enabled: s.cfg.Enabled, Configured: s.cfg.Configured()}
}

// Stats returns per-status counts for the tenant.
func (s *Service) Stats(ctx context.Context, tenantID int64) (Stats, error) {
	return s.repo.CountByStatus(ctx, tenantID)
}

// AttemptDeliver performs one delivery attempt. With the integration
// disabled or unconfigured it returns a failure result without touching the
// row, so the system keeps functioning with the integration off. A nil actor
// records the attempt as the system (scheduler sweeps).
func (s *Service) AttemptDeliver(ctx context.Context, tenantID int64, id uuid.UUID, actor *shared.Identity) (DeliveryResult, error) {
	event, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return DeliveryResult{}, err
	}
	if event.Status != StatusPending {
		return DeliveryResult{Skipped: true, Reason: "event is not pending"}, nil
	}
	if !s.cfg.Enabled {
		return DeliveryResult{Reason: "integration disabled"}, nil
	}
	if !s.cfg.Configured() {
		return DeliveryResult{Reason: "integration not configured"}, nil
	}

	protocol, deliverErr := s.gateway.Deliver(ctx, event)
	if deliverErr != nil {
		moved, err := s.repo.MarkError(ctx, id, deliverErr.Error())
		if err != nil {
			return DeliveryResult{}, err
		}
		if moved {
			s.recordAudit(ctx, actorID(actor), tenantID, "outbox.attempt_failed", id,
				map[string]any{"status": event.Status}, map[string]any{"status": StatusError, "error": deliverErr.Error()})
		}
		return DeliveryResult{Reason: deliverErr.Error()}, nil
	}

	moved, err := s.repo.MarkSent(ctx, id, protocol, s.now())
	if err != nil {
		return DeliveryResult{}, err
	}
	if !moved {
		// Another writer finished the transition first; the delivery above
		// may have duplicated, which at-least-once allows.
		return DeliveryResult{Skipped: true, Reason: "already handled"}, nil
	}
	s.recordAudit(ctx, actorID(actor), tenantID, "outbox.sent", id,
		map[string]any{"status": event.Status}, map[string]any{"status": StatusSent, "protocol": protocol})
	return DeliveryResult{Delivered: true, Protocol: protocol}, nil
}

// Send is the manual delivery path: an ERROR row is first reset to PENDING,
// then a delivery attempt runs attributed to the requesting actor.
func (s *Service) Send(ctx context.Context, tenantID int64, id uuid.UUID, actor *shared.Identity) (DeliveryResult, error) {
	event, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return DeliveryResult{}, err
	}
	if event.Status == StatusError {
		if _, err := s.repo.ResetToPending(ctx, tenantID, id); err != nil {
			return DeliveryResult{}, err
		}
	}
	return s.AttemptDeliver(ctx, tenantID, id, actor)
}

// ReprocessErrors resets up to limit ERROR rows to PENDING and retries each.
// One item's failure never aborts the batch.
func (s *Service) ReprocessErrors(ctx context.Context, tenantID int64, limit int) (ReprocessSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	ids, err := s.repo.ListErrorIDs(ctx, tenantID, limit)
	if err != nil {
		return ReprocessSummary{}, err
	}
	var summary ReprocessSummary
	for _, id := range ids {
		moved, err := s.repo.ResetToPending(ctx, tenantID, id)
		if err != nil || !moved {
			if err != nil && s.logger != nil {
				s.logger.Error("reset outbox event", slog.String("event_id", id.String()), slog.Any("error", err))
			}
			continue
		}
		summary.Processed++
		result, err := s.AttemptDeliver(ctx, tenantID, id, nil)
		if err == nil && result.Delivered {
			summary.Succeeded++
		} else {
			summary.Failed++
			if err != nil && s.logger != nil {
				s.logger.Error("redeliver outbox event", slog.String("event_id", id.String()), slog.Any("error", err))
			}
		}
	}
	return summary, nil
}

// ProcessPending attempts delivery for the tenant's PENDING events.
func (s *Service) ProcessPending(ctx context.Context, tenantID int64, limit int) (ReprocessSummary, error) {
	if limit <= 0 {
		limit = 100
	}
	ids, err := s.repo.ListPendingIDs(ctx, tenantID, limit)
	if err != nil {
		return ReprocessSummary{}, err
	}
	var summary ReprocessSummary
	for _, id := range ids {
		summary.Processed++
		result, err := s.AttemptDeliver(ctx, tenantID, id, nil)
		if err == nil && result.Delivered {
			summary.Succeeded++
		} else {
			summary.Failed++
			if err != nil && s.logger != nil {
				s.logger.Error("deliver outbox event", slog.String("event_id", id.String()), slog.Any("error", err))
			}
		}
	}
	return summary, nil
}

// Cancel terminates a non-terminal event with a reason.
func (s *Service) Cancel(ctx context.Context, tenantID int64, id uuid.UUID, actor *shared.Identity, reason string) (Event, error) {
	event, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return Event{}, err
	}
	if event.Status.Terminal() {
		return Event{}, shared.NewValidation("event is already " + strings.ToLower(string(event.Status)))
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Event{}, shared.NewValidation("a cancellation reason is required")
	}
	moved, err := s.repo.Cancel(ctx, tenantID, id, reason)
	if err != nil {
		return Event{}, err
	}
	if !moved {
		return Event{}, shared.NewValidation("event can no longer be canceled")
	}
	canceled, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return Event{}, err
	}
	s.recordAudit(ctx, actorID(actor), tenantID, "outbox.cancel", id,
		map[string]any{"status": event.Status}, map[string]any{"status": StatusCanceled, "reason": reason})
	return canceled, nil
}

// TenantsWithPending lists tenants owed a pending sweep. Scheduler use only.
func (s *Service) TenantsWithPending(ctx context.Context) ([]int64, error) {
	return s.repo.TenantsWithPending(ctx)
}

// TenantsWithErrors lists tenants owed an error retry. Scheduler use only.
func (s *Service) TenantsWithErrors(ctx context.Context) ([]int64, error) {
	return s.repo.TenantsWithErrors(ctx)
}

func (s *Service) recordAudit(ctx context.Context, actor, tenantID int64, action string, eventID uuid.UUID, before, after any) {
	if s.audit == nil {
		return
	}
	entry := shared.AuditEntry{
		ActorID:  actor,
		TenantID: tenantID,
		Action:   action,
		Entity:   "outbox_event",
		EntityID: eventID.String(),
		Before:   before,
		After:    after,
		At:       s.now(),
	}
	if err := s.audit.Record(ctx, entry); err != nil && s.logger != nil {
		s.logger.Error("audit outbox transition", slog.String("action", action), slog.Any("error", err))
	}
}

func actorID(actor *shared.Identity) int64 {
	if actor == nil {
		return shared.SystemActorID
	}
	return actor.UserID
}
