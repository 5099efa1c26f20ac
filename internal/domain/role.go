package domain

import "fmt"

// Role is the closed set of privilege levels a user can hold.
type Role string

const (
	RoleUser      Role = "ROLE_USER"
	RoleAdmin     Role = "ROLE_ADMIN"
	RoleAnonymous Role = "ROLE_ANONYMOUS"
)

// ParseRole converts a raw claim value into a Role, rejecting unknown values.
func ParseRole(raw string) (Role, error) {
	switch Role(raw) {
	case RoleUser, RoleAdmin, RoleAnonymous:
		return Role(raw), nil
	}
	return "", fmt.Errorf("invalid role: %q", raw)
}

// IsValid reports whether the role is one of the known values.
func (r Role) IsValid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}
