package domain

import "strings"

// Role is the closed set of principals the service knows about.
type Role string

const (
	RoleTenant   Role = "tenant"
	RoleLandlord Role = "landlord"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

// Roles lists every valid role.
var Roles = []Role{RoleTenant, RoleLandlord, RoleManager, RoleAdmin}

// ParseRole resolves a role name case-insensitively.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Roles {
		if r == known {
			return r, nil
		}
	}
	return "", Validationf("unknown role %q", s)
}

// Identity is the authenticated caller of an operation.
type Identity struct {
	SubjectID string
	Role      Role
}

// SystemIdentity is used by scheduled jobs and the CLI.
func SystemIdentity() Identity {
	return Identity{SubjectID: "system", Role: RoleAdmin}
}

func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }
