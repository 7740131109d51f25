package authority

import (
	"strings"
)

const (
	PermApprovalOverride = "approval:override"
	PermSystemAdmin      = "system:admin"
)

type Permissions []string

func (c Permissions) HasRole(role string) bool {
	for _, v := range c {
		if strings.EqualFold(v, role) {
			return true
		}
	}
	return false
}

// HasPermission treats the system admin role as holding every permission.
func (c Permissions) HasPermission(perm string) bool {
	if perm == "" {
		return true
	}
	return c.HasRole(perm) || c.HasRole(PermSystemAdmin)
}
