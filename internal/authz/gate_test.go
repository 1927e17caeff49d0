package authz_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/scholaris-erp/scholaris-erp/internal/authz"
	"github.com/scholaris-erp/scholaris-erp/internal/shared"
)

func ptr(v int64) *int64 { return &v }

func subdomainCtx(tenantID int64) *shared.TenantContext {
	return &shared.TenantContext{Mode: shared.TenantModeSubdomain, TenantID: ptr(tenantID), Subdomain: "st-marys"}
}

func TestValidateTenantDomainIgnoredMode(t *testing.T) {
	gate := authz.Gate{BaseDomain: "scholaris.app"}
	tc := &shared.TenantContext{Mode: shared.TenantModeIgnored}
	require.NoError(t, gate.ValidateTenantDomain(context.Background(), tc, nil))
}

func TestValidateTenantDomainSubdomain(t *testing.T) {
	gate := authz.Gate{BaseDomain: "scholaris.app"}

	err := gate.ValidateTenantDomain(context.Background(), subdomainCtx(4), nil)
	require.ErrorIs(t, err, shared.ErrUnauthenticated)

	matching := &shared.Identity{UserID: 1, TenantID: ptr(4), Roles: []string{authz.RoleTeacher}}
	require.NoError(t, gate.ValidateTenantDomain(context.Background(), subdomainCtx(4), matching))

	foreign := &shared.Identity{UserID: 1, TenantID: ptr(9), Roles: []string{authz.RoleTeacher}}
	err = gate.ValidateTenantDomain(context.Background(), subdomainCtx(4), foreign)
	var de *shared.DomainError
	require.ErrorAs(t, err, &de)
	require.Equal(t, 403, de.Status)
	require.Equal(t, shared.ReasonTenantMismatch, de.Reason)

	platform := &shared.Identity{UserID: 2, Roles: []string{authz.RoleSuperAdmin}}
	require.NoError(t, gate.ValidateTenantDomain(context.Background(), subdomainCtx(4), platform))
}

func TestValidateTenantDomainCentral(t *testing.T) {
	gate := authz.Gate{BaseDomain: "scholaris.app"}
	central := &shared.TenantContext{Mode: shared.TenantModeCentral}

	platform := &shared.Identity{UserID: 2, Roles: []string{authz.RoleCommercial}}
	require.NoError(t, gate.ValidateTenantDomain(context.Background(), central, platform))

	director := &shared.Identity{UserID: 3, TenantID: ptr(4), Subdomain: "st-marys", Roles: []string{authz.RoleDirector}}
	err := gate.ValidateTenantDomain(context.Background(), central, director)
	var de *shared.DomainError
	require.ErrorAs(t, err, &de)
	require.Equal(t, 403, de.Status)
	require.Equal(t, shared.ReasonRedirectToSubdomain, de.Reason)
	require.Equal(t, "https://st-marys.scholaris.app", de.Meta["redirect_url"])

	// No tenant attached: still forbidden, but no redirect URL to offer.
	drifting := &shared.Identity{UserID: 5, Roles: []string{authz.RoleTeacher}}
	err = gate.ValidateTenantDomain(context.Background(), central, drifting)
	require.ErrorAs(t, err, &de)
	require.Equal(t, shared.ReasonRedirectToSubdomain, de.Reason)
	require.Nil(t, de.Meta)
}

func TestRequireTenantScope(t *testing.T) {
	_, err := authz.RequireTenantScope(nil)
	require.ErrorIs(t, err, shared.ErrUnauthenticated)

	_, err = authz.RequireTenantScope(&shared.Identity{UserID: 1})
	require.ErrorIs(t, err, shared.ErrTenantScopeMissing)

	tenantID, err := authz.RequireTenantScope(&shared.Identity{UserID: 1, TenantID: ptr(8)})
	require.NoError(t, err)
	require.Equal(t, int64(8), tenantID)
}

func TestInstitutionFilter(t *testing.T) {
	secretary := &shared.Identity{UserID: 1, TenantID: ptr(3), Roles: []string{authz.RoleSecretary}}
	filter, err := authz.InstitutionFilter(secretary, 99)
	require.NoError(t, err)
	require.Equal(t, int64(3), filter.TenantID, "ordinary roles cannot override the tenant")

	superAdmin := &shared.Identity{UserID: 2, TenantID: ptr(1), Roles: []string{authz.RoleSuperAdmin}}
	filter, err = authz.InstitutionFilter(superAdmin, 99)
	require.NoError(t, err)
	require.Equal(t, int64(99), filter.TenantID)

	filter, err = authz.InstitutionFilter(superAdmin, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), filter.TenantID)
}

func TestScopeFromRequest(t *testing.T) {
	central := &shared.TenantContext{Mode: shared.TenantModeCentral}

	// A platform operator with no tenant of its own works on the chosen one.
	superAdmin := &shared.Identity{UserID: 2, Roles: []string{authz.RoleSuperAdmin}}
	tenantID, err := authz.ScopeFromRequest(central, superAdmin, 7)
	require.NoError(t, err)
	require.Equal(t, int64(7), tenantID)

	// Without an override a tenantless operator still has no scope.
	_, err = authz.ScopeFromRequest(central, superAdmin, 0)
	require.ErrorIs(t, err, shared.ErrTenantScopeMissing)

	// Ordinary roles stay pinned regardless of what the client supplies.
	director := &shared.Identity{UserID: 3, TenantID: ptr(4), Roles: []string{authz.RoleDirector}}
	tenantID, err = authz.ScopeFromRequest(central, director, 99)
	require.NoError(t, err)
	require.Equal(t, int64(4), tenantID)

	// On a subdomain the resolved tenant wins even over a super admin override.
	tenantID, err = authz.ScopeFromRequest(subdomainCtx(4), superAdmin, 99)
	require.NoError(t, err)
	require.Equal(t, int64(4), tenantID)
}
