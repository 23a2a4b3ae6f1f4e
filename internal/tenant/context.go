// Package tenant decides which workspace a request belongs to and manages
// the workspace lifecycle.
package tenant

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/ash-erp/internal/database/models"
)

var (
	ErrNoTenantContext = errors.New("no tenant context")
	ErrTenantMismatch  = errors.New("tenant mismatch")
	ErrTenantNotFound  = errors.New("tenant not found")
	ErrTenantInactive  = errors.New("tenant is inactive")
)

// Context is the resolved tenant of a request. Handlers read it, they never
// build one themselves.
type Context struct {
	TenantID uuid.UUID       `json:"tenant_id"`
	Slug     string          `json:"slug"`
	Name     string          `json:"name"`
	PlanTier models.PlanTier `json:"plan_tier"`
	Timezone string          `json:"timezone,omitempty"`
}

func newContext(t *models.Tenant) *Context {
	return &Context{
		TenantID: t.ID,
		Slug:     t.Slug,
		Name:     t.Name,
		PlanTier: t.PlanTier,
		Timezone: t.Timezone,
	}
}

// Location returns the tenant's calendar location, UTC when unset or invalid.
func (c *Context) Location() *time.Location {
	return LoadLocation(c.Timezone)
}

// LoadLocation resolves an IANA name, falling back to UTC.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

type contextKey struct{}

func WithContext(ctx context.Context, tc *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, tc)
}

// FromContext returns the tenant stored by WithContext. A missing tenant is
// ErrNoTenantContext, never a zero value.
func FromContext(ctx context.Context) (*Context, error) {
	tc, ok := ctx.Value(contextKey{}).(*Context)
	if !ok || tc == nil || tc.TenantID == uuid.Nil {
		return nil, ErrNoTenantContext
	}
	return tc, nil
}
