package scope

import "strings"

// Role is the caller's dashboard role, resolved from verified session claims.
// It is always passed explicitly; nothing in this package reads ambient
// session state.
type Role string

const (
	// RoleAdmin may inspect any user's activity across the platform.
	RoleAdmin Role = "admin"
	// RoleObserver manages one or more teams and may inspect consenting
	// members of those teams while in team mode.
	RoleObserver Role = "observer"
	// RoleMember may only inspect their own activity.
	RoleMember Role = "member"
)

// ParseRole converts a case-insensitive string to a Role.
func ParseRole(value string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "admin", "developer":
		return RoleAdmin, true
	case "observer", "manager":
		return RoleObserver, true
	case "member", "user":
		return RoleMember, true
	default:
		return "", false
	}
}

// Identity captures who is asking. ManagedTeamIDs is only populated for
// observers and bounds which teams the "all" sentinel may expand to.
type Identity struct {
	UserID         string
	Role           Role
	ManagedTeamIDs []string
}

// ManagesTeam reports whether the identity manages the given team.
func (id Identity) ManagesTeam(teamID string) bool {
	for _, t := range id.ManagedTeamIDs {
		if t == teamID {
			return true
		}
	}
	return false
}
