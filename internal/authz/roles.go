package authz

// Platform-level roles operate from the central portal across institutions.
const (
	RoleSuperAdmin = "super_admin"
	RoleCommercial = "commercial"
)

// Institution roles are always pinned to one tenant.
const (
	RoleDirector  = "director"
	RoleSecretary = "secretary"
	RoleTeacher   = "teacher"
)

// PlatformRoles may access the central portal.
func PlatformRoles() []string {
	return []string{RoleSuperAdmin, RoleCommercial}
}

// PrivilegedRoles may mutate periods and outbox events.
func PrivilegedRoles() []string {
	return []string{RoleSuperAdmin, RoleDirector, RoleSecretary}
}

func hasAnyRole(roles []string, wanted []string) bool {
	set := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	for _, w := range wanted {
		if _, ok := set[w]; ok {
			return true
		}
	}
	return false
}
