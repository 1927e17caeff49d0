package periods

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/scholaris-erp/scholaris-erp/internal/authz"
	"github.com/scholaris-erp/scholaris-erp/internal/shared"
)

// Handler wires HTTP endpoints for period management.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs a period HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	tenantID, err := h.tenantScope(r)
	if err != nil {
		shared.RenderError(w, h.logger, err)
		return
	}
	page := shared.ParsePagination(r)
	items, err := h.service.List(r.Context(), tenantID, page.Limit(), page.Offset())
	if err != nil {
		shared.RenderError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponseList(items, h.service.Now()))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	tenantID, err := h.tenantScope(r)
	if err != nil {
		shared.RenderError(w, h.logger, err)
		return
	}
	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.RenderError(w, h.logger, shared.NewValidation("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		shared.RenderError(w, h.logger, shared.NewValidation(err.Error()))
		return
	}
	actor := shared.IdentityFromContext(r.Context())
	created, err := h.service.Create(r.Context(), tenantID, actor, CreateInput{
		AcademicYearID: req.AcademicYearID,
		Kind:           Kind(req.Kind),
		Number:         req.Number,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
	})
	if err != nil {
		shared.RenderError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, toResponse(created, h.service.Now()))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	tenantID, err := h.tenantScope(r)
	if err != nil {
		shared.RenderError(w, h.logger, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		shared.RenderError(w, h.logger, err)
		return
	}
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.RenderError(w, h.logger, shared.NewValidation("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		shared.RenderError(w, h.logger, shared.NewValidation(err.Error()))
		return
	}
	in := UpdateInput{StartDate: req.StartDate, EndDate: req.EndDate}
	if req.Status != nil {
		status := Status(*req.Status)
		in.Status = &status
	}
	actor := shared.IdentityFromContext(r.Context())
	updated, err := h.service.Update(r.Context(), tenantID, id, actor, in)
	if err != nil {
		shared.RenderError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(updated, h.service.Now()))
}

func (h *Handler) reopen(w http.ResponseWriter, r *http.Request) {
	tenantID, err := h.tenantScope(r)
	if err != nil {
		shared.RenderError(w, h.logger, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		shared.RenderError(w, h.logger, err)
		return
	}
	var req reopenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.RenderError(w, h.logger, shared.NewValidation("invalid request body"))
		return
	}
	actor := shared.IdentityFromContext(r.Context())
	reopened, err := h.service.Reopen(r.Context(), tenantID, id, actor, ReopenInput{
		Reason:     req.Reason,
		NewEndDate: req.NewEndDate,
	})
	if err != nil {
		shared.RenderError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(reopened, h.service.Now()))
}

func (h *Handler) active(w http.ResponseWriter, r *http.Request) {
	tenantID, err := h.tenantScope(r)
	if err != nil {
		shared.RenderError(w, h.logger, err)
		return
	}
	period, err := h.service.GetActive(r.Context(), tenantID)
	if err != nil {
		shared.RenderError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(period, h.service.Now()))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	tenantID, err := h.tenantScope(r)
	if err != nil {
		shared.RenderError(w, h.logger, err)
		return
	}
	id, err := pathID(r)
	if err != nil {
		shared.RenderError(w, h.logger, err)
		return
	}
	period, err := h.service.Get(r.Context(), tenantID, id)
	if err != nil {
		shared.RenderError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, toResponse(period, h.service.Now()))
}

func (h *Handler) tenantScope(r *http.Request) (int64, error) {
	var override int64
	if raw := r.URL.Query().Get("tenant_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed <= 0 {
			return 0, shared.NewValidation("invalid tenant_id")
		}
		override = parsed
	}
	return authz.ScopeFromRequest(shared.TenantFromContext(r.Context()), shared.IdentityFromContext(r.Context()), override)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.NewValidation("invalid id")
	}
	return id, nil
}
