package outbox

import (
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/scholaris-erp/scholaris-erp/internal/authz"
)

// MountRoutes registers HTTP routes. Batch processing endpoints are rate
// limited; each can fan out into many external calls.
func (h *Handler) MountRoutes(r chi.Router, az authz.Middleware) {
	r.Get("/", h.list)
	r.Get("/stats", h.stats)
	r.Get("/integration-status", h.integrationStatus)
	r.Get("/{id}", h.get)
	r.Group(func(r chi.Router) {
		r.Use(az.RequirePrivileged())
		r.Post("/", h.create)
		r.Post("/{id}/send", h.send)
		r.Post("/{id}/cancel", h.cancel)
		r.Group(func(r chi.Router) {
			r.Use(httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP)))
			r.Post("/process-pending", h.processPending)
			r.Post("/process-errors", h.processErrors)
		})
	})
}
