package rbac

// Role represents an authorisation tier within a household.
type Role string

const (
	// RoleAdmin has full control of the household, including managing
	// responsible members and acting across households.
	RoleAdmin Role = "admin"

	// RoleResponsible is a trusted adult: manages members, simplified and
	// external memberships but not peers or admins.
	RoleResponsible Role = "responsible"

	// RoleMember is a regular household member.
	RoleMember Role = "member"

	// RoleSimplified is a reduced-surface account (children, elderly):
	// mostly read access plus a few safe actions.
	RoleSimplified Role = "simplified"

	// RoleExternal is a restricted outsider account (cleaner, sitter),
	// additionally constrained by an access window.
	RoleExternal Role = "external"

	// RolePet is a profile-only identity for pet records. Pets do not log in.
	RolePet Role = "pet"
)

// roleRanks is the fixed total order over roles. Used only for "does this
// role outrank that role" comparisons; it grants no permissions by itself.
var roleRanks = map[Role]int{
	RoleAdmin:       60,
	RoleResponsible: 50,
	RoleMember:      40,
	RoleSimplified:  30,
	RoleExternal:    20,
	RolePet:         10,
}

// Rank returns the numeric rank of a role, or 0 for unknown roles.
func Rank(r Role) int {
	return roleRanks[r]
}

// IsValidRole returns true if r is one of the closed set of roles.
func IsValidRole(r Role) bool {
	_, ok := roleRanks[r]
	return ok
}

// HasMinRole returns true iff role's rank is at least min's rank.
// Unknown roles rank below everything.
func HasMinRole(role, min Role) bool {
	return Rank(role) >= Rank(min)
}

// CanAssignRole reports whether an actor may create a membership with, or
// promote a membership to, the target role. Only admins may hand out the
// admin and responsible roles; for everything else the actor must strictly
// outrank the target.
func CanAssignRole(actor, target Role) bool {
	if !IsValidRole(actor) || !IsValidRole(target) {
		return false
	}
	if target == RoleAdmin || target == RoleResponsible {
		return actor == RoleAdmin
	}
	return Rank(actor) > Rank(target)
}

// CanManageMember reports whether an actor may modify or remove a membership
// that currently holds the given role. Peers and superiors are off limits.
func CanManageMember(actor, current Role) bool {
	if !IsValidRole(actor) || !IsValidRole(current) {
		return false
	}
	return Rank(actor) > Rank(current)
}
