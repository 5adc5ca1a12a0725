package engine

type Role string

const (
	RoleNone Role = ""
	RoleA    Role = "a"
	RoleB    Role = "b"
)

// Roles in seat order.
var Roles = [2]Role{RoleA, RoleB}

func (r Role) Valid() bool {
	return r == RoleA || r == RoleB
}

func (r Role) Opponent() Role {
	switch r {
	case RoleA:
		return RoleB
	case RoleB:
		return RoleA
	default:
		return RoleNone
	}
}

// Index maps a role to its seat slot. Callers must check Valid first.
func (r Role) Index() int {
	if r == RoleB {
		return 1
	}
	return 0
}

func ParseRole(s string) (Role, bool) {
	switch s {
	case "a", "A":
		return RoleA, true
	case "b", "B":
		return RoleB, true
	default:
		return RoleNone, false
	}
}
