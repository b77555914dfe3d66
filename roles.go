package rbac

// Built-in role names seeded by default. Deployments may add their own
// roles on top of these.
const (
	RoleNameAdmin     = "admin"
	RoleNameDeveloper = "developer"
	RoleNameModerator = "moderator"
	RoleNameUser      = "user"
)

// DefaultRolePriority orders the built-in roles most privileged first;
// TopRole picks a user's headline role from it.
var DefaultRolePriority = []string{RoleNameAdmin, RoleNameDeveloper, RoleNameModerator, RoleNameUser}

// DefaultRoleNames returns the built-in role names in priority order.
func DefaultRoleNames() []string {
	out := make([]string, len(DefaultRolePriority))
	copy(out, DefaultRolePriority)
	return out
}

// TopRole returns the highest-priority role the user holds, walking the
// priority list in order. Empty string when none match.
func TopRole(priority, roles []string) string {
	if len(priority) == 0 {
		priority = DefaultRolePriority
	}
	held := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		held[r] = struct{}{}
	}
	for _, p := range priority {
		if _, ok := held[p]; ok {
			return p
		}
	}
	return ""
}

// HasAnyRole reports whether roles and required intersect. An empty
// required list means the route is open to any authenticated user.
func HasAnyRole(roles, required []string) bool {
	if len(required) == 0 {
		return true
	}
	held := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		held[r] = struct{}{}
	}
	for _, r := range required {
		if _, ok := held[r]; ok {
			return true
		}
	}
	return false
}

// RoleNames extracts the name column from a role slice.
func RoleNames(roles []*Role) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		if r != nil {
			out = append(out, r.Name)
		}
	}
	return out
}
