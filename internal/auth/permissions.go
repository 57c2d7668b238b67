package auth

import (
	"fmt"
	"strings"
)

// Permission is the smallest named capability unit used in authorization
// checks, e.g. "ticket:create".
type Permission string

const (
	PermTicketCreate         Permission = "ticket:create"
	PermTicketReadAll        Permission = "ticket:read_all"
	PermTicketReadAssigned   Permission = "ticket:read_assigned"
	PermTicketUpdate         Permission = "ticket:update"
	PermTicketUpdateAssigned Permission = "ticket:update_assigned"
	PermTicketDelete         Permission = "ticket:delete"

	PermProjectCreate  Permission = "project:create"
	PermProjectReadAll Permission = "project:read_all"
	PermProjectUpdate  Permission = "project:update"
	PermProjectDelete  Permission = "project:delete"

	PermUserReadAll    Permission = "user:read_all"
	PermUserUpdateSelf Permission = "user:update_self"
	PermUserUpdateRole Permission = "user:update_role"
	PermUserDelete     Permission = "user:delete"

	PermSystemAuditRead    Permission = "system:audit_read"
	PermSystemAdminActions Permission = "system:admin_actions"
)

// AllPermissions enumerates every atom that exists. The admin role's set is
// defined as this list, so a newly added atom is granted to admins without
// touching any call site.
var AllPermissions = []Permission{
	PermTicketCreate,
	PermTicketReadAll,
	PermTicketReadAssigned,
	PermTicketUpdate,
	PermTicketUpdateAssigned,
	PermTicketDelete,
	PermProjectCreate,
	PermProjectReadAll,
	PermProjectUpdate,
	PermProjectDelete,
	PermUserReadAll,
	PermUserUpdateSelf,
	PermUserUpdateRole,
	PermUserDelete,
	PermSystemAuditRead,
	PermSystemAdminActions,
}

// Role is a closed enumeration mapping to one fixed permission set.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleWorker  Role = "worker"
)

var rolePermissions = map[Role][]Permission{
	RoleAdmin: AllPermissions,
	RoleManager: {
		PermTicketCreate,
		PermTicketReadAll,
		PermTicketUpdate,
		PermTicketDelete,
		PermProjectCreate,
		PermProjectReadAll,
		PermProjectUpdate,
		PermProjectDelete,
	},
	RoleWorker: {
		PermTicketReadAssigned,
		PermTicketUpdateAssigned,
		PermUserUpdateSelf,
	},
}

// PermissionsFor returns the fixed permission set of the role in stable order.
// Unknown roles get nothing.
func PermissionsFor(role Role) []Permission {
	perms, ok := rolePermissions[role]
	if !ok {
		return nil
	}
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}

// AuthorityName returns the role's own label, distinct from its atoms, for
// checks of the form "any admin" rather than a specific capability.
func AuthorityName(role Role) string {
	return "role:" + string(role)
}

// ParseRole validates a role tag coming from the outside.
func ParseRole(s string) (Role, error) {
	switch Role(strings.TrimSpace(strings.ToLower(s))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleManager:
		return RoleManager, nil
	case RoleWorker:
		return RoleWorker, nil
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
}
