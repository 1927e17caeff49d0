package periods

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/scholaris-erp/scholaris-erp/internal/authz"
	"github.com/scholaris-erp/scholaris-erp/internal/shared"
)

const defaultReopenReason = "reopened for corrections"

// Auditor records append-only audit entries for period transitions.
type Auditor interface {
	Record(ctx context.Context, entry shared.AuditEntry) error
}

// Service orchestrates the period lifecycle.
type Service struct {
	repo   Repository
	audit  Auditor
	logger *slog.Logger
	now    func() time.Time
}

// NewService constructs a Service instance.
func NewService(repo Repository, audit Auditor, logger *slog.Logger) *Service {
	return &Service{
		repo:   repo,
		audit:  audit,
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

// CreateInput captures the fields needed to define a new period.
type CreateInput struct {
	AcademicYearID int64
	Kind           Kind
	Number         int
	StartDate      time.Time
	EndDate        time.Time
}

func (in CreateInput) validate() error {
	if in.AcademicYearID == 0 {
		return shared.NewValidation("academic year is required")
	}
	if !in.Kind.Valid() {
		return shared.NewValidation("kind must be SEMESTER or TRIMESTER")
	}
	if !in.Kind.ValidNumber(in.Number) {
		return shared.NewValidation("invalid period number for " + string(in.Kind))
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		return shared.NewValidation("start and end date are required")
	}
	if !in.EndDate.After(in.StartDate) {
		return shared.NewValidation("end date must be after start date")
	}
	return nil
}

// Create inserts an OPEN period after validating the academic year belongs
// to the tenant and the number fits the kind.
func (s *Service) Create(ctx context.Context, tenantID int64, actor *shared.Identity, in CreateInput) (Period, error) {
	if err := in.validate(); err != nil {
		return Period{}, err
	}
	belongs, err := s.repo.AcademicYearBelongs(ctx, tenantID, in.AcademicYearID)
	if err != nil {
		return Period{}, err
	}
	if !belongs {
		return Period{}, shared.NewNotFound("academic year not found")
	}
	created, err := s.repo.Insert(ctx, Period{
		TenantID:       tenantID,
		AcademicYearID: in.AcademicYearID,
		Kind:           in.Kind,
		Number:         in.Number,
		StartDate:      in.StartDate,
		EndDate:        in.EndDate,
		Status:         StatusOpen,
	})
	if err != nil {
		return Period{}, err
	}
	s.recordAudit(ctx, actorID(actor), tenantID, "period.create", created.ID, nil, created)
	return created, nil
}

// UpdateInput carries optional date and status edits.
type UpdateInput struct {
	StartDate *time.Time
	EndDate   *time.Time
	Status    *Status
}

// Update applies date edits and direct OPEN/CLOSED transitions. EXPIRED is
// always computed and may never be written.
func (s *Service) Update(ctx context.Context, tenantID, id int64, actor *shared.Identity, in UpdateInput) (Period, error) {
	current, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return Period{}, err
	}
	updated := current
	if in.StartDate != nil {
		updated.StartDate = *in.StartDate
	}
	if in.EndDate != nil {
		updated.EndDate = *in.EndDate
	}
	if in.Status != nil {
		if *in.Status != StatusOpen && *in.Status != StatusClosed {
			return Period{}, shared.NewValidation("status may only be set to OPEN or CLOSED")
		}
		updated.Status = *in.Status
	}
	if !updated.EndDate.After(updated.StartDate) {
		return Period{}, shared.NewValidation("end date must be after start date")
	}
	saved, err := s.repo.Update(ctx, updated)
	if err != nil {
		return Period{}, err
	}
	s.recordAudit(ctx, actorID(actor), tenantID, "period.update", id, current, saved)
	return saved, nil
}

// ReopenInput carries the justification and optional extension for a reopen.
type ReopenInput struct {
	Reason     string
	NewEndDate *time.Time
}

// Reopen moves an EXPIRED or CLOSED period back to OPEN, stamping who did it
// and why. Reopening a period that is effectively open already is an error.
func (s *Service) Reopen(ctx context.Context, tenantID, id int64, actor *shared.Identity, in ReopenInput) (Period, error) {
	if actor == nil {
		return Period{}, shared.ErrUnauthenticated
	}
	if !actor.HasRole(authz.RoleSuperAdmin) && !actor.HasRole(authz.RoleDirector) && !actor.HasRole(authz.RoleSecretary) {
		return Period{}, shared.NewForbidden(shared.ReasonForbidden, "reopening a period requires a privileged role")
	}
	current, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return Period{}, err
	}
	now := s.now()
	if current.Effective(now) == StatusOpen {
		return Period{}, shared.NewValidation("period is already open, no need to reopen")
	}
	reason := strings.TrimSpace(in.Reason)
	if reason == "" {
		reason = defaultReopenReason
	}
	updated := current
	updated.Status = StatusOpen
	updated.ReopenedBy = &actor.UserID
	updated.ReopenedAt = &now
	updated.ReopenReason = reason
	if in.NewEndDate != nil {
		if !in.NewEndDate.After(updated.StartDate) {
			return Period{}, shared.NewValidation("new end date must be after the start date")
		}
		updated.EndDate = *in.NewEndDate
	}
	saved, err := s.repo.Update(ctx, updated)
	if err != nil {
		return Period{}, err
	}
	s.recordAudit(ctx, actor.UserID, tenantID, "period.reopen", id, current, saved)
	return saved, nil
}

// Get returns a single period scoped to the tenant.
func (s *Service) Get(ctx context.Context, tenantID, id int64) (Period, error) {
	return s.repo.GetByID(ctx, tenantID, id)
}

// List returns the tenant's periods, newest first.
func (s *Service) List(ctx context.Context, tenantID int64, limit, offset int) ([]Period, error) {
	return s.repo.List(ctx, tenantID, limit, offset)
}

// GetActive returns the period currently accepting grade entry, if any.
func (s *Service) GetActive(ctx context.Context, tenantID int64) (Period, error) {
	return s.repo.FindActive(ctx, tenantID, s.now())
}

// Now exposes the service clock so handlers derive effective statuses from
// the same instant the service uses.
func (s *Service) Now() time.Time {
	return s.now()
}

// ActivateScheduled opens every period that begins today. Cross-tenant;
// only the scheduler calls it.
func (s *Service) ActivateScheduled(ctx context.Context) (int, error) {
	opened, err := s.repo.ActivateScheduled(ctx, s.now())
	if err != nil {
		return 0, err
	}
	for _, p := range opened {
		s.recordAudit(ctx, shared.SystemActorID, p.TenantID, "period.auto_activate", p.ID, nil, p)
	}
	return len(opened), nil
}

// CloseExpiredReopened force-closes reopened periods whose extension has
// lapsed. Cross-tenant; only the scheduler calls it.
func (s *Service) CloseExpiredReopened(ctx context.Context) (int, error) {
	closed, err := s.repo.CloseExpiredReopened(ctx, s.now())
	if err != nil {
		return 0, err
	}
	for _, p := range closed {
		s.recordAudit(ctx, shared.SystemActorID, p.TenantID, "period.reopen_expired", p.ID, nil, p)
	}
	return len(closed), nil
}

func (s *Service) recordAudit(ctx context.Context, actor, tenantID int64, action string, entityID int64, before, after any) {
	if s.audit == nil {
		return
	}
	entry := shared.AuditEntry{
		ActorID:  actor,
		TenantID: tenantID,
		Action:   action,
		Entity:   "period",
		EntityID: strconv.FormatInt(entityID, 10),
		Before:   before,
		After:    after,
		At:       s.now(),
	}
	if err := s.audit.Record(ctx, entry); err != nil && s.logger != nil {
		s.logger.Error("audit period transition", slog.String("action", action), slog.Any("error", err))
	}
}

func actorID(actor *shared.Identity) int64 {
	if actor == nil {
		return shared.SystemActorID
	}
	return actor.UserID
}
