package rbac

import "lead-console/internal/auth"

// Only two roles exist: the owner manages leads and PINs, the agent works the
// calling queue. The canonical names live in internal/auth as part of the
// token contract.
const (
	RoleOwner = auth.RoleOwner
	RoleAgent = auth.RoleAgent
)

func IsKnownRole(role string) bool {
	return role == RoleOwner || role == RoleAgent
}
