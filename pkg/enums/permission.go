package enums

import "fmt"

// Permission is the integer tier carried in the permissionId claim.
// Lower values are more privileged.
type Permission int

const (
	PermissionAdmin      Permission = 1
	PermissionSupervisor Permission = 2
	PermissionFieldUser  Permission = 3
)

var permissionNames = map[Permission]string{
	PermissionAdmin:      "admin",
	PermissionSupervisor: "supervisor",
	PermissionFieldUser:  "field_user",
}

func (p Permission) String() string {
	if name, ok := permissionNames[p]; ok {
		return name
	}
	return fmt.Sprintf("permission(%d)", int(p))
}

// IsValid reports whether the tier is known.
func (p Permission) IsValid() bool {
	_, ok := permissionNames[p]
	return ok
}

// AtLeast reports whether p grants everything required grants.
func (p Permission) AtLeast(required Permission) bool {
	return p.IsValid() && p <= required
}

// ParsePermission converts a raw claim into a Permission.
func ParsePermission(value int) (Permission, error) {
	p := Permission(value)
	if !p.IsValid() {
		return 0, fmt.Errorf("invalid permission %d", value)
	}
	return p, nil
}
