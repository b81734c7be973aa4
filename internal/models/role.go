package models

import "fmt"

// Role is the closed set of actor roles.
type Role int

const (
	RoleTeacher Role = iota + 1
	RoleAdministrator
)

// ParseRole maps a wire value to a Role.
func ParseRole(raw string) (Role, error) {
	switch raw {
	case "teacher", "TEACHER":
		return RoleTeacher, nil
	case "admin", "ADMIN", "administrator", "ADMINISTRATOR":
		return RoleAdministrator, nil
	default:
		return 0, fmt.Errorf("unknown role %q", raw)
	}
}

func (r Role) String() string {
	switch r {
	case RoleTeacher:
		return "teacher"
	case RoleAdministrator:
		return "admin"
	default:
		return "invalid"
	}
}

// MarshalText encodes the role for JSON and JWT claims.
func (r Role) MarshalText() ([]byte, error) {
	switch r {
	case RoleTeacher, RoleAdministrator:
		return []byte(r.String()), nil
	default:
		return nil, fmt.Errorf("invalid role %d", int(r))
	}
}

// UnmarshalText decodes the role, rejecting anything outside the closed set.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Actor is the authenticated caller of a core operation.
type Actor struct {
	ID   string
	Name string
	Code string
	Role Role
}
