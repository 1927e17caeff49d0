package shared

import "context"

// TenantMode describes how the tenant was derived for a request.
type TenantMode string

const (
	// TenantModeIgnored disables tenant enforcement (loopback / local dev).
	TenantModeIgnored TenantMode = "ignored"
	// TenantModeCentral is the platform portal; no tenant is implied.
	TenantModeCentral TenantMode = "central"
	// TenantModeSubdomain pins the request to one institution.
	TenantModeSubdomain TenantMode = "subdomain"
)

// TenantContext is the per-request resolution result. It is never persisted.
type TenantContext struct {
	Mode      TenantMode
	TenantID  *int64
	Subdomain string
}

// Identity holds the claims of an already-verified caller.
type Identity struct {
	UserID    int64
	TenantID  *int64
	Subdomain string
	Roles     []string
}

// HasRole reports whether the identity carries the given role.
func (id *Identity) HasRole(role string) bool {
	if id == nil {
		return false
	}
	for _, r := range id.Roles {
		if r == role {
			return true
		}
	}
	return false
}

type tenantContextKey struct{}
type identityContextKey struct{}

// ContextWithTenant stores the resolved tenant context.
func ContextWithTenant(ctx context.Context, tc *TenantContext) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, tc)
}

// TenantFromContext extracts the tenant context, if any.
func TenantFromContext(ctx context.Context) *TenantContext {
	tc, _ := ctx.Value(tenantContextKey{}).(*TenantContext)
	return tc
}

// ContextWithIdentity stores the caller identity.
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the caller identity, if any.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityContextKey{}).(*Identity)
	return id
}
