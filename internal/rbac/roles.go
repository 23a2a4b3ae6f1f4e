package rbac

import "strings"

// Role is one of the fixed role names a user can hold.
type Role string

const (
	RoleSuperAdmin     Role = "super_admin"
	RoleAdmin          Role = "admin"
	RoleManager        Role = "manager"
	RoleCSR            Role = "csr"
	RoleQCInspector    Role = "qc_inspector"
	RoleFinanceManager Role = "finance_manager"
	RoleHRManager      Role = "hr_manager"
	RoleWorker         Role = "worker"
	RoleClient         Role = "client"
)

// RoleInfo describes a role for listings.
type RoleInfo struct {
	Name        Role     `json:"name"`
	DisplayName string   `json:"display_name"`
	Description string   `json:"description"`
	Permissions []string `json:"permissions"`
}

type roleDefinition struct {
	displayName string
	description string
	patterns    []string
}

// roleTable is total: every Role constant has an explicit, non-empty entry.
// Patterns are "resource:action", "resource:*", or "*" for everything.
var roleTable = map[Role]roleDefinition{
	RoleSuperAdmin: {
		displayName: "Super Administrator",
		description: "Full platform access, including tenant administration",
		patterns:    []string{"*"},
	},
	RoleAdmin: {
		displayName: "Administrator",
		description: "Administrative access within a workspace",
		patterns: []string{
			"orders:*", "clients:*", "production:read", "production:update",
			"quality:*", "finance:*", "hr:*", "inventory:*", "reports:*",
			"users:*", "settings:*", "files:*",
		},
	},
	RoleManager: {
		displayName: "Manager",
		description: "Operational management",
		patterns: []string{
			"orders:*", "clients:read", "production:*", "quality:*",
			"finance:read", "finance:create", "hr:read", "inventory:*",
			"reports:read", "reports:create", "settings:read", "files:*",
		},
	},
	RoleCSR: {
		displayName: "Customer Service Representative",
		description: "Order intake and client management",
		patterns: []string{
			"orders:create", "orders:read", "orders:update",
			"clients:*", "reports:read", "files:create", "files:read",
		},
	},
	RoleQCInspector: {
		displayName: "Quality Inspector",
		description: "Quality control",
		patterns: []string{
			"orders:read", "production:read", "quality:*", "reports:read",
		},
	},
	RoleFinanceManager: {
		displayName: "Finance Manager",
		description: "Financial operations",
		patterns: []string{
			"orders:read", "clients:read", "finance:*", "reports:read", "reports:export",
		},
	},
	RoleHRManager: {
		displayName: "HR Manager",
		description: "Human resources and payroll",
		patterns: []string{
			"hr:*", "reports:read", "users:read",
		},
	},
	RoleWorker: {
		displayName: "Worker",
		description: "Production floor",
		patterns: []string{
			"production:read", "production:update",
		},
	},
	RoleClient: {
		displayName: "Client",
		description: "Client portal access to own orders",
		patterns: []string{
			"orders:read", "orders:create", "files:read",
		},
	},
}

// roleOrder fixes listing order from most to least privileged.
var roleOrder = []Role{
	RoleSuperAdmin, RoleAdmin, RoleManager, RoleCSR, RoleQCInspector,
	RoleFinanceManager, RoleHRManager, RoleWorker, RoleClient,
}

// ParseRole normalizes a role name ("HR Manager", "hr-manager", "HR_MANAGER")
// and reports whether it names a known role.
func ParseRole(name string) (Role, bool) {
	normalized := strings.ToLower(strings.TrimSpace(name))
	normalized = strings.NewReplacer(" ", "_", "-", "_").Replace(normalized)
	role := Role(normalized)
	if _, ok := roleTable[role]; !ok {
		return "", false
	}
	return role, true
}

// Valid reports whether r is one of the enumerated roles.
func (r Role) Valid() bool {
	_, ok := roleTable[r]
	return ok
}

// PermissionsFor returns the pattern list for a role, or nil when the role is
// unknown. No wildcard expansion happens here. The result is a copy.
func PermissionsFor(role string) []string {
	r, ok := ParseRole(role)
	if !ok {
		return nil
	}
	return append([]string(nil), roleTable[r].patterns...)
}

// Roles lists every role with its patterns.
func Roles() []RoleInfo {
	out := make([]RoleInfo, 0, len(roleOrder))
	for _, r := range roleOrder {
		def := roleTable[r]
		out = append(out, RoleInfo{
			Name:        r,
			DisplayName: def.displayName,
			Description: def.description,
			Permissions: append([]string(nil), def.patterns...),
		})
	}
	return out
}
