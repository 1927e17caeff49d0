package periods

import (
	"github.com/go-chi/chi/v5"

	"github.com/scholaris-erp/scholaris-erp/internal/authz"
)

// MountRoutes registers HTTP routes.
func (h *Handler) MountRoutes(r chi.Router, az authz.Middleware) {
	r.Get("/", h.list)
	r.Get("/active", h.active)
	r.Get("/{id}", h.get)
	r.Group(func(r chi.Router) {
		r.Use(az.RequirePrivileged())
		r.Post("/", h.create)
		r.Put("/{id}", h.update)
		r.Post("/{id}/reopen", h.reopen)
	})
}
