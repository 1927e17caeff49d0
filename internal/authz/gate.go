package authz

import (
	"context"
	"fmt"

	"github.com/scholaris-erp/scholaris-erp/internal/shared"
)

// SubdomainLookup resolves a tenant id to its subdomain label, used to build
// redirect URLs for users who land on the central portal by mistake.
type SubdomainLookup interface {
	SubdomainByTenant(ctx context.Context, tenantID int64) (string, error)
}

// Gate enforces tenant scoping and portal access rules. It never mutates
// data; its only output is a typed authorization error.
type Gate struct {
	BaseDomain string
	Subdomains SubdomainLookup
}

// ValidateTenantDomain checks that the acting identity may operate under the
// resolved tenant context.
func (g Gate) ValidateTenantDomain(ctx context.Context, tc *shared.TenantContext, id *shared.Identity) error {
	if tc == nil || tc.Mode == shared.TenantModeIgnored {
		return nil
	}
	switch tc.Mode {
	case shared.TenantModeSubdomain:
		if id == nil {
			return shared.ErrUnauthenticated
		}
		if id.HasRole(RoleSuperAdmin) {
			return nil
		}
		if id.TenantID == nil || tc.TenantID == nil || *id.TenantID != *tc.TenantID {
			return shared.NewForbidden(shared.ReasonTenantMismatch, "account does not belong to this institution")
		}
		return nil
	case shared.TenantModeCentral:
		if id == nil {
			return shared.ErrUnauthenticated
		}
		if hasAnyRole(id.Roles, PlatformRoles()) {
			return nil
		}
		err := shared.NewForbidden(shared.ReasonRedirectToSubdomain, "use your institution's portal")
		if url := g.subdomainURL(ctx, id); url != "" {
			err.Meta = map[string]any{"redirect_url": url}
		}
		return err
	}
	return nil
}

// RequireTenantScope returns the identity's tenant id or fails. Every
// tenant-scoped read or write must pass through here before touching storage.
func RequireTenantScope(id *shared.Identity) (int64, error) {
	if id == nil {
		return 0, shared.ErrUnauthenticated
	}
	if id.TenantID == nil {
		return 0, shared.ErrTenantScopeMissing
	}
	return *id.TenantID, nil
}

// TenantScope picks the effective tenant for a request: the resolved
// subdomain tenant when enforcement is on, otherwise the identity's own.
func TenantScope(tc *shared.TenantContext, id *shared.Identity) (int64, error) {
	if tc != nil && tc.Mode == shared.TenantModeSubdomain && tc.TenantID != nil {
		return *tc.TenantID, nil
	}
	return RequireTenantScope(id)
}

// ScopeFromRequest resolves the tenant a request operates on, honoring an
// explicit override for platform operators. On a subdomain the resolved
// tenant is authoritative and the override is ignored; on the central portal
// the override lets a super admin act on a chosen institution, while every
// other identity stays pinned to its own tenant.
func ScopeFromRequest(tc *shared.TenantContext, id *shared.Identity, override int64) (int64, error) {
	if tc != nil && tc.Mode == shared.TenantModeSubdomain && tc.TenantID != nil {
		return *tc.TenantID, nil
	}
	filter, err := InstitutionFilter(id, override)
	if err != nil {
		return 0, err
	}
	return filter.TenantID, nil
}

// Filter scopes storage queries to one tenant.
type Filter struct {
	TenantID int64
}

// InstitutionFilter derives the tenant filter for reads. Only the platform
// super role may override the tenant; everyone else is pinned to their own,
// and client-supplied tenant ids are ignored.
func InstitutionFilter(id *shared.Identity, override int64) (Filter, error) {
	if id == nil {
		return Filter{}, shared.ErrUnauthenticated
	}
	if id.HasRole(RoleSuperAdmin) && override > 0 {
		return Filter{TenantID: override}, nil
	}
	tenantID, err := RequireTenantScope(id)
	if err != nil {
		return Filter{}, err
	}
	return Filter{TenantID: tenantID}, nil
}

func (g Gate) subdomainURL(ctx context.Context, id *shared.Identity) string {
	subdomain := id.Subdomain
	if subdomain == "" && g.Subdomains != nil && id.TenantID != nil {
		if s, err := g.Subdomains.SubdomainByTenant(ctx, *id.TenantID); err == nil {
			subdomain = s
		}
	}
	if subdomain == "" || g.BaseDomain == "" {
		return ""
	}
	return fmt.Sprintf("https://%s.%s", subdomain, g.BaseDomain)
}
