// Package rbac maps roles to permissions and answers allow/deny questions.
//
// Role and permission tables are fixed at build time. Changing what a role
// may do is a code change, there is no runtime mutation API.
package rbac

import "strings"

// Resource is an area of the ERP a permission applies to.
type Resource string

const (
	ResourceOrders     Resource = "orders"
	ResourceClients    Resource = "clients"
	ResourceProduction Resource = "production"
	ResourceQuality    Resource = "quality"
	ResourceFinance    Resource = "finance"
	ResourceHR         Resource = "hr"
	ResourceInventory  Resource = "inventory"
	ResourceReports    Resource = "reports"
	ResourceUsers      Resource = "users"
	ResourceSettings   Resource = "settings"
	ResourceFiles      Resource = "files"
	ResourceAdmin      Resource = "admin"
)

// Action is what is done to a resource.
type Action string

const (
	ActionCreate  Action = "create"
	ActionRead    Action = "read"
	ActionUpdate  Action = "update"
	ActionDelete  Action = "delete"
	ActionApprove Action = "approve"
	ActionExport  Action = "export"
	ActionManage  Action = "manage"
	ActionExecute Action = "execute"
)

const (
	patternSeparator = ":"
	wildcard         = "*"
)

var resources = []Resource{
	ResourceOrders, ResourceClients, ResourceProduction, ResourceQuality,
	ResourceFinance, ResourceHR, ResourceInventory, ResourceReports,
	ResourceUsers, ResourceSettings, ResourceFiles, ResourceAdmin,
}

var actions = []Action{
	ActionCreate, ActionRead, ActionUpdate, ActionDelete,
	ActionApprove, ActionExport, ActionManage, ActionExecute,
}

// Permission is a (resource, action) pair.
type Permission struct {
	Resource Resource `json:"resource"`
	Action   Action   `json:"action"`
}

// ID returns the "resource:action" form used in role tables.
func (p Permission) ID() string {
	return string(p.Resource) + patternSeparator + string(p.Action)
}

func (p Permission) String() string {
	return p.ID()
}

// Valid reports whether both halves belong to the closed enumerations.
func (p Permission) Valid() bool {
	return validResource(p.Resource) && validAction(p.Action)
}

func validResource(r Resource) bool {
	for _, known := range resources {
		if known == r {
			return true
		}
	}
	return false
}

func validAction(a Action) bool {
	for _, known := range actions {
		if known == a {
			return true
		}
	}
	return false
}

// LookupPermission converts raw strings into a Permission. Input is matched
// case-insensitively; anything outside the enumerations returns false.
func LookupPermission(resource, action string) (Permission, bool) {
	p := Permission{
		Resource: Resource(strings.ToLower(strings.TrimSpace(resource))),
		Action:   Action(strings.ToLower(strings.TrimSpace(action))),
	}
	if !p.Valid() {
		return Permission{}, false
	}
	return p, true
}

// Catalog returns every permission the system knows about.
func Catalog() []Permission {
	out := make([]Permission, 0, len(resources)*len(actions))
	for _, r := range resources {
		for _, a := range actions {
			out = append(out, Permission{Resource: r, Action: a})
		}
	}
	return out
}

// Resources returns the resource enumeration.
func Resources() []Resource {
	return append([]Resource(nil), resources...)
}

// Actions returns the action enumeration.
func Actions() []Action {
	return append([]Action(nil), actions...)
}
