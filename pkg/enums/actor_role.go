package enums

import "fmt"

// ActorRole maps to the user_role_enum enum in Postgres.
type ActorRole string

const (
	ActorRoleInstaller ActorRole = "installer"
	ActorRoleManager   ActorRole = "manager"
	ActorRoleAdmin     ActorRole = "admin"
	ActorRoleDeveloper ActorRole = "developer"
)

var validActorRoles = []ActorRole{
	ActorRoleInstaller,
	ActorRoleManager,
	ActorRoleAdmin,
	ActorRoleDeveloper,
}

// IsValid reports whether the value matches the canonical role enum.
func (r ActorRole) IsValid() bool {
	for _, candidate := range validActorRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsPrivileged reports whether the role may reverse events it did not create
// and suppress originals.
func (r ActorRole) IsPrivileged() bool {
	return r == ActorRoleAdmin || r == ActorRoleDeveloper
}

// ParseActorRole converts raw input into ActorRole.
func ParseActorRole(value string) (ActorRole, error) {
	for _, candidate := range validActorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid actor role %q", value)
}
