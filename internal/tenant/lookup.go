package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/hugh/ash-erp/internal/database/models"
	"gorm.io/gorm"
)

// MaxLookupCacheTTL bounds how long a suspended tenant can keep resolving.
const MaxLookupCacheTTL = 60 * time.Second

// Lookup finds tenants. Implementations return ErrTenantNotFound for unknown
// tenants; any other error is a persistence failure.
type Lookup interface {
	ByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	BySlug(ctx context.Context, slug string) (*models.Tenant, error)
}

// GormLookup reads tenants straight from the database.
type GormLookup struct {
	db *gorm.DB
}

func NewGormLookup(db *gorm.DB) *GormLookup {
	return &GormLookup{db: db}
}

func (l *GormLookup) ByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	return l.first(ctx, "id = ?", id)
}

func (l *GormLookup) BySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	return l.first(ctx, "slug = ?", strings.ToLower(slug))
}

func (l *GormLookup) first(ctx context.Context, query string, arg interface{}) (*models.Tenant, error) {
	var t models.Tenant
	if err := l.db.WithContext(ctx).Where(query, arg).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("loading tenant: %w", err)
	}
	return &t, nil
}

// CachedLookup keeps recently resolved tenants in an expiring LRU. Only hits
// are cached so a freshly created tenant resolves immediately.
type CachedLookup struct {
	next  Lookup
	cache *expirable.LRU[string, models.Tenant]
}

func NewCachedLookup(next Lookup, size int, ttl time.Duration) *CachedLookup {
	if size <= 0 {
		size = 1024
	}
	if ttl <= 0 || ttl > MaxLookupCacheTTL {
		ttl = MaxLookupCacheTTL
	}
	return &CachedLookup{
		next:  next,
		cache: expirable.NewLRU[string, models.Tenant](size, nil, ttl),
	}
}

func (c *CachedLookup) ByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	if t, ok := c.cache.Get(idKey(id)); ok {
		return &t, nil
	}
	t, err := c.next.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	c.store(t)
	return t, nil
}

func (c *CachedLookup) BySlug(ctx context.Context, slug string) (*models.Tenant, error) {
	if t, ok := c.cache.Get(slugKey(slug)); ok {
		return &t, nil
	}
	t, err := c.next.BySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	c.store(t)
	return t, nil
}

// Invalidate drops both cache entries of a tenant.
func (c *CachedLookup) Invalidate(t *models.Tenant) {
	c.cache.Remove(idKey(t.ID))
	c.cache.Remove(slugKey(t.Slug))
}

func (c *CachedLookup) store(t *models.Tenant) {
	// Stored by value so callers cannot mutate the cached copy.
	c.cache.Add(idKey(t.ID), *t)
	c.cache.Add(slugKey(t.Slug), *t)
}

func idKey(id uuid.UUID) string {
	return "id:" + id.String()
}

func slugKey(slug string) string {
	return "slug:" + strings.ToLower(slug)
}

var (
	_ Lookup = (*GormLookup)(nil)
	_ Lookup = (*CachedLookup)(nil)
)
