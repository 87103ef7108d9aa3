package auth

import "slices"

// Permission represents a named capability in the system.
type Permission string

// Permission constants.
const (
	PermProfileRead  Permission = "profile:read"
	PermUserRead     Permission = "user:read"
	PermUserManage   Permission = "user:manage"
	PermSessionAdmin Permission = "session:admin"
	PermAuditRead    Permission = "audit:read"
	PermEventStream  Permission = "event:stream"
)

// rolePermissions maps each role to its granted permissions.
// This is the single source of truth for the authorisation model.
var rolePermissions = map[Role][]Permission{
	RoleUser: {
		PermProfileRead,
	},
	RoleAdmin: {
		PermProfileRead,
		PermUserRead,
		PermUserManage,
		PermSessionAdmin,
		PermAuditRead,
		PermEventStream,
	},
}

// HasPermission returns true if the given role has the specified permission.
func HasPermission(role Role, perm Permission) bool {
	return slices.Contains(rolePermissions[role], perm)
}

// PermissionsForRole returns all permissions granted to a role.
// Returns nil for unknown roles.
func PermissionsForRole(role Role) []Permission {
	perms := rolePermissions[role]
	if perms == nil {
		return nil
	}
	return slices.Clone(perms)
}

// PermissionsForRoles returns the union of the permissions of roles,
// without duplicates and in first-seen order.
func PermissionsForRoles(roles []Role) []Permission {
	var out []Permission
	for _, r := range roles {
		for _, p := range rolePermissions[r] {
			if !slices.Contains(out, p) {
				out = append(out, p)
			}
		}
	}
	return out
}
