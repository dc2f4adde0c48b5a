package domain

// Role is an account tier. Tiers form a strict chain:
// powerhouse -> super -> master -> player.
type Role string

const (
	RolePowerhouse Role = "powerhouse"
	RoleSuper      Role = "super"
	RoleMaster     Role = "master"
	RolePlayer     Role = "player"
)

// roleChain lists the tiers from the root down.
var roleChain = []Role{RolePowerhouse, RoleSuper, RoleMaster, RolePlayer}

// ParseRole converts a path or payload value into a Role.
func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.Valid()
}

// Valid reports whether r is one of the four tiers.
func (r Role) Valid() bool {
	return r.Tier() >= 0
}

// Tier returns the depth of the role in the hierarchy (powerhouse = 0),
// or -1 for an unknown role.
func (r Role) Tier() int {
	for i, role := range roleChain {
		if role == r {
			return i
		}
	}
	return -1
}

// ParentRole returns the tier directly above r.
func (r Role) ParentRole() (Role, bool) {
	t := r.Tier()
	if t <= 0 {
		return "", false
	}
	return roleChain[t-1], true
}

// ChildRole returns the tier directly below r.
func (r Role) ChildRole() (Role, bool) {
	t := r.Tier()
	if t < 0 || t == len(roleChain)-1 {
		return "", false
	}
	return roleChain[t+1], true
}

// CanParent reports whether an account of role r may be the direct parent
// of an account of role child.
func (r Role) CanParent(child Role) bool {
	c, ok := r.ChildRole()
	return ok && c == child
}

// Above reports whether r sits strictly higher in the hierarchy than other.
func (r Role) Above(other Role) bool {
	return r.Valid() && other.Valid() && r.Tier() < other.Tier()
}
