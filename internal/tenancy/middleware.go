package tenancy

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/scholaris-erp/scholaris-erp/internal/shared"
)

// Middleware resolves the tenant for every request and stores the result in
// the request context. Resolution failures end the request here; handlers
// downstream can rely on a TenantContext being present.
type Middleware struct {
	Repo   Repository
	Config ResolverConfig
	Logger *slog.Logger
}

// Handler implements the chi middleware contract.
func (m Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, err := ResolveRequest(r, m.Config)
		if err != nil {
			shared.RenderError(w, m.Logger, err)
			return
		}

		tc := &shared.TenantContext{Mode: res.Mode}
		if res.Mode == shared.TenantModeSubdomain {
			tenant, err := m.Repo.FindBySubdomain(r.Context(), res.Subdomain)
			if err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					shared.RenderError(w, m.Logger, shared.NewNotFound("institution not found"))
					return
				}
				shared.RenderError(w, m.Logger, err)
				return
			}
			tc.TenantID = &tenant.ID
			tc.Subdomain = tenant.Subdomain
		}

		ctx := shared.ContextWithTenant(r.Context(), tc)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
