package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/scholaris-erp/scholaris-erp/internal/authz"
	"github.com/scholaris-erp/scholaris-erp/internal/shared"
)

// Handler wires HTTP endpoints for outbox events.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs an outbox HTTP handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{
		logger:   logger,
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	tenantID, err := h.tenantScope(r)
	if err != nil {
		shared.RenderError(w, h.logger, err)
		return
	}
	var req enqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.RenderError(w, h.logger, shared.NewValidation("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		shared.RenderError(w, h.logger, shared.NewValidation(err.Error()))
		return
	}
	actor := shared.IdentityFromContext(r.Context())
	created, err := h.service.Enqueue(r.Context(), tenantID, req.EventType, req.Payload, actor)
	if err != nil {
		shared.RenderError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, created)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	tenantID, err := h.tenantScope(r)
	if err != nil {
		shared.RenderError(w, h.logger, err)
		return
	}
	page := shared.ParsePagination(r)
	status := Status(r.URL.Query().Get("status"))
	items, err := h.service.List(r.Context(), tenantID, status, page.Limit(), page.Offset())
	if err != nil {
		shared.RenderError(w, h.logger, err)
		return
	}
	if items == nil {
		items = []Event{}
	}
	shared.WriteJSON(w, http.StatusOK, items)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	tenantID, err := h.tenantScope(r)
	if err != nil {
		shared.RenderError(w, h.logger, err)
		return
	}
	id, err := pathEventID(r)
	if err != nil {
		shared.RenderError(w, h.logger, err)
		return
	}
	event, err := h.service.Get(r.Context(), tenantID, id)
	if err != nil {
		shared.RenderError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, event)
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	tenantID, err := h.tenantScope(r)
	if err != nil {
		shared.RenderError(w, h.logger, err)
		return
	}
	id, err := pathEventID(r)
	if err != nil {
		shared.RenderError(w, h.logger, err)
		return
	}
	actor := shared.IdentityFromContext(r.Context())
	result, err := h.service.Send(r.Context(), tenantID, id, actor)
	if err != nil {
		shared.RenderError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	tenantID, err := h.tenantScope(r)
	if err != nil {
		shared.RenderError(w, h.logger, err)
		return
	}
	id, err := pathEventID(r)
	if err != nil {
		shared.RenderError(w, h.logger, err)
		return
	}
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.RenderError(w, h.logger, shared.NewValidation("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		shared.RenderError(w, h.logger, shared.NewValidation(err.Error()))
		return
	}
	actor := shared.IdentityFromContext(r.Context())
	canceled, err := h.service.Cancel(r.Context(), tenantID, id, actor, req.Reason)
	if err != nil {
		shared.RenderError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, canceled)
}

func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	tenantID, err := h.tenantScope(r)
	if err != nil {
		shared.RenderError(w, h.logger, err)
		return
	}
	stats, err := h.service.Stats(r.Context(), tenantID)
	if err != nil {
		shared.RenderError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, stats)
}

func (h *Handler) integrationStatus(w http.ResponseWriter, r *http.Request) {
	shared.WriteJSON(w, http.StatusOK, h.service.Status())
}

func (h *Handler) processPending(w http.ResponseWriter, r *http.Request) {
	h.processBatch(w, r, h.service.ProcessPending)
}

func (h *Handler) processErrors(w http.ResponseWriter, r *http.Request) {
	h.processBatch(w, r, h.service.ReprocessErrors)
}

func (h *Handler) processBatch(w http.ResponseWriter, r *http.Request,
	run func(ctx context.Context, tenantID int64, limit int) (ReprocessSummary, error)) {
	tenantID, err := h.tenantScope(r)
	if err != nil {
		shared.RenderError(w, h.logger, err)
		return
	}
	var req processRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		shared.RenderError(w, h.logger, shared.NewValidation("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		shared.RenderError(w, h.logger, shared.NewValidation(err.Error()))
		return
	}
	summary, err := run(r.Context(), tenantID, req.Limit)
	if err != nil {
		shared.RenderError(w, h.logger, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, summary)
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

func pathEventID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, shared.NewValidation("invalid event id")
	}
	return id, nil
}
