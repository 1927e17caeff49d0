package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/scholaris-erp/scholaris-erp/internal/shared"
)

const bearerPrefix = "Bearer "

// Middleware extracts the caller identity from the Authorization header.
// Requests without a token continue unauthenticated; route-level guards
// decide whether that is acceptable.
type Middleware struct {
	Secret string
	Logger *slog.Logger
}

// Handler implements the chi middleware contract.
func (m Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, bearerPrefix) {
			next.ServeHTTP(w, r)
			return
		}
		identity, err := ParseToken(strings.TrimPrefix(header, bearerPrefix), m.Secret)
		if err != nil {
			shared.RenderError(w, m.Logger, err)
			return
		}
		ctx := shared.ContextWithIdentity(r.Context(), identity)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
