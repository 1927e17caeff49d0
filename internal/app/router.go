package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/scholaris-erp/scholaris-erp/internal/auth"
	"github.com/scholaris-erp/scholaris-erp/internal/authz"
	"github.com/scholaris-erp/scholaris-erp/internal/observability"
	"github.com/scholaris-erp/scholaris-erp/internal/outbox"
	"github.com/scholaris-erp/scholaris-erp/internal/periods"
	"github.com/scholaris-erp/scholaris-erp/internal/tenancy"
	"github.com/scholaris-erp/scholaris-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Config  *Config
	Metrics *observability.Metrics

	Tenancy tenancy.Middleware
	Auth    auth.Middleware
	Authz   authz.Middleware

	PeriodsHandler *periods.Handler
	OutboxHandler  *outbox.Handler
	JobsHandler    *jobs.Handler
}

// NewRouter constructs the chi.Router with Scholaris defaults. Every API route
// runs behind tenant resolution, identity extraction and the tenant gate, in
// that order.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(params.Tenancy.Handler)
		api.Use(params.Auth.Handler)
		api.Use(params.Authz.ValidateTenant)

		api.Route("/periods", func(pr chi.Router) {
			params.PeriodsHandler.MountRoutes(pr, params.Authz)
		})
		api.Route("/outbox-events", func(or chi.Router) {
			params.OutboxHandler.MountRoutes(or, params.Authz)
		})
		if params.JobsHandler != nil {
			api.Group(func(jr chi.Router) {
				jr.Use(params.Authz.RequirePrivileged())
				jr.Route("/jobs", params.JobsHandler.MountAdminRoutes)
			})
		}
	})

	return r
}
