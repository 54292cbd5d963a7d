package rbac

// Role names. Keep these stable; they are part of auth contracts.
const (
	// RoleAdmin may change configuration, manage datasets, and run the
	// panic controls.
	RoleAdmin = "admin"

	// RoleOperator runs campaigns day to day: start, stop, pause, test
	// calls.
	RoleOperator = "operator"

	// RoleViewer is read-only dashboard access.
	RoleViewer = "viewer"
)

func IsAdmin(role string) bool { return role == RoleAdmin }

func IsKnownRole(role string) bool {
	switch role {
	case RoleAdmin, RoleOperator, RoleViewer:
		return true
	default:
		return false
	}
}
