package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrInvalidRole  = errors.New("invalid role")
	ErrUserNotFound = errors.New("user not found")
)

// RoleStore persists role assignments. Implementations must scope the update
// to the tenant and return ErrUserNotFound when no row matched.
type RoleStore interface {
	SetUserRole(ctx context.Context, tenantID, userID uuid.UUID, role Role) error
}

// Decision is the result of an authorization check.
type Decision struct {
	Allowed    bool   `json:"allowed"`
	Role       string `json:"role"`
	Permission string `json:"permission"`
	MatchedBy  string `json:"matched_by,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// Can reports whether role may perform action on resource. It never errors:
// unknown roles, resources or actions are denied.
func Can(role, resource, action string) bool {
	return Authorize(role, resource, action).Allowed
}

// Authorize is Can with the reasoning attached.
func Authorize(role, resource, action string) Decision {
	d := Decision{Role: role, Permission: resource + patternSeparator + action}

	perm, ok := LookupPermission(resource, action)
	if !ok {
		d.Reason = "unknown permission"
		return d
	}
	d.Permission = perm.ID()

	patterns := PermissionsFor(role)
	if len(patterns) == 0 {
		d.Reason = "unknown role"
		return d
	}

	if pattern, ok := match(patterns, perm); ok {
		d.Allowed = true
		d.MatchedBy = pattern
		return d
	}

	d.Reason = "role lacks permission"
	return d
}

// match finds the first pattern granting perm. Any match grants; there are
// no deny entries.
func match(patterns []string, perm Permission) (string, bool) {
	exact := perm.ID()
	resourceWildcard := string(perm.Resource) + patternSeparator + wildcard
	for _, p := range patterns {
		if p == exact || p == resourceWildcard || p == wildcard {
			return p, true
		}
	}
	return "", false
}

// Manager wraps the static tables with role assignment.
type Manager struct {
	store RoleStore
}

func NewManager(store RoleStore) *Manager {
	return &Manager{store: store}
}

func (m *Manager) Can(role string, resource Resource, action Action) bool {
	return Can(role, string(resource), string(action))
}

func (m *Manager) Authorize(role string, resource Resource, action Action) Decision {
	return Authorize(role, string(resource), string(action))
}

// AssignRole validates and stores a new role for a user of tenantID.
func (m *Manager) AssignRole(ctx context.Context, tenantID, userID uuid.UUID, role string) (Role, error) {
	r, ok := ParseRole(role)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if err := m.store.SetUserRole(ctx, tenantID, userID, r); err != nil {
		return "", err
	}
	return r, nil
}
