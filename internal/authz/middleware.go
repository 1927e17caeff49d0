package authz

import (
	"log/slog"
	"net/http"

	"github.com/scholaris-erp/scholaris-erp/internal/shared"
)

// Middleware wires authorization helpers for HTTP handlers.
type Middleware struct {
	Gate   Gate
	Logger *slog.Logger
}

// ValidateTenant runs the tenant-domain gate on every request in the group.
func (m Middleware) ValidateTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tc := shared.TenantFromContext(r.Context())
		id := shared.IdentityFromContext(r.Context())
		if err := m.Gate.ValidateTenantDomain(r.Context(), tc, id); err != nil {
			shared.RenderError(w, m.Logger, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAny ensures the caller holds at least one of the given roles.
func (m Middleware) RequireAny(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := shared.IdentityFromContext(r.Context())
			if id == nil {
				shared.RenderError(w, m.Logger, shared.ErrUnauthenticated)
				return
			}
			if !hasAnyRole(id.Roles, roles) {
				shared.RenderError(w, m.Logger,
					shared.NewForbidden(shared.ReasonForbidden, "insufficient role"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePrivileged shortcuts the roles allowed to mutate domain state.
func (m Middleware) RequirePrivileged() func(http.Handler) http.Handler {
	return m.RequireAny(PrivilegedRoles()...)
}
