package limits

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// MaxCacheTTL bounds staleness. A stale count under-counts usage, which lets
// requests through that should have been denied.
const MaxCacheTTL = 60 * time.Second

// CachedCounter is a read-through Redis cache in front of another Counter.
// Redis errors are logged and fall through to the wrapped counter.
type CachedCounter struct {
	next   Counter
	rdb    redis.Cmdable
	ttl    time.Duration
	now    func() time.Time
	logger *slog.Logger
}

func NewCachedCounter(next Counter, rdb redis.Cmdable, ttl time.Duration, logger *slog.Logger) *CachedCounter {
	if ttl <= 0 || ttl > MaxCacheTTL {
		ttl = MaxCacheTTL
	}
	return &CachedCounter{next: next, rdb: rdb, ttl: ttl, now: time.Now, logger: logger}
}

// TTL reports the effective cache lifetime.
func (c *CachedCounter) TTL() time.Duration {
	return c.ttl
}

func (c *CachedCounter) SeatsUsed(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	key := cacheKey(tenantID, "seats")
	if n, ok := c.getInt(ctx, key); ok {
		return n, nil
	}
	n, err := c.next.SeatsUsed(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	c.set(ctx, key, n)
	return n, nil
}

func (c *CachedCounter) StorageUsedBytes(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	key := cacheKey(tenantID, "storage")
	if n, ok := c.getInt(ctx, key); ok {
		return n, nil
	}
	n, err := c.next.StorageUsedBytes(ctx, tenantID)
	if err != nil {
		return 0, err
	}
	c.set(ctx, key, n)
	return n, nil
}

type cachedOrders struct {
	Period   string `json:"period"`
	Location string `json:"location"`
	Count    int64  `json:"count"`
}

// OrdersThisMonth caches the count together with the month it belongs to, so
// a value cached before a month boundary is never served after it.
func (c *CachedCounter) OrdersThisMonth(ctx context.Context, tenantID uuid.UUID, loc *time.Location) (int64, error) {
	if loc == nil {
		loc = time.UTC
	}
	key := cacheKey(tenantID, "orders")
	period := Period(c.now(), loc)

	raw, err := c.rdb.Get(ctx, key).Bytes()
	if err == nil {
		var cached cachedOrders
		if json.Unmarshal(raw, &cached) == nil && cached.Period == period && cached.Location == loc.String() {
			return cached.Count, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("usage cache read failed", "key", key, "error", err)
	}

	n, err := c.next.OrdersThisMonth(ctx, tenantID, loc)
	if err != nil {
		return 0, err
	}
	payload, _ := json.Marshal(cachedOrders{Period: period, Location: loc.String(), Count: n})
	c.set(ctx, key, payload)
	return n, nil
}

// Invalidate drops every cached count of a tenant. Call it after writes that
// change usage.
func (c *CachedCounter) Invalidate(ctx context.Context, tenantID uuid.UUID) {
	keys := []string{
		cacheKey(tenantID, "seats"),
		cacheKey(tenantID, "orders"),
		cacheKey(tenantID, "storage"),
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		c.logger.Warn("usage cache invalidation failed", "tenant_id", tenantID, "error", err)
	}
}

func (c *CachedCounter) getInt(ctx context.Context, key string) (int64, bool) {
	n, err := c.rdb.Get(ctx, key).Int64()
	if err == nil {
		return n, true
	}
	if !errors.Is(err, redis.Nil) {
		c.logger.Warn("usage cache read failed", "key", key, "error", err)
	}
	return 0, false
}

func (c *CachedCounter) set(ctx context.Context, key string, value interface{}) {
	if err := c.rdb.Set(ctx, key, value, c.ttl).Err(); err != nil {
		c.logger.Warn("usage cache write failed", "key", key, "error", err)
	}
}

func cacheKey(tenantID uuid.UUID, dimension string) string {
	return "limits:" + tenantID.String() + ":" + dimension
}

var _ Counter = (*CachedCounter)(nil)
