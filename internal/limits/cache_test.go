package limits

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCounter struct {
	seats, orders, storage int64
	err                    error
	calls                  int
}

func (s *stubCounter) SeatsUsed(context.Context, uuid.UUID) (int64, error) {
	s.calls++
	return s.seats, s.err
}

func (s *stubCounter) OrdersThisMonth(context.Context, uuid.UUID, *time.Location) (int64, error) {
	s.calls++
	return s.orders, s.err
}

func (s *stubCounter) StorageUsedBytes(context.Context, uuid.UUID) (int64, error) {
	s.calls++
	return s.storage, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newCached(t *testing.T, next Counter, ttl time.Duration) (*CachedCounter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { rdb.Close() })
	return NewCachedCounter(next, rdb, ttl, discardLogger()), mr
}

func TestCachedCounter_ReadThrough(t *testing.T) {
	stub := &stubCounter{seats: 4, orders: 12, storage: 2048}
	cached, mr := newCached(t, stub, 30*time.Second)
	ctx := context.Background()
	id := uuid.New()

	for i := 0; i < 3; i++ {
		seats, err := cached.SeatsUsed(ctx, id)
		require.NoError(t, err)
		assert.EqualValues(t, 4, seats)

		orders, err := cached.OrdersThisMonth(ctx, id, time.UTC)
		require.NoError(t, err)
		assert.EqualValues(t, 12, orders)

		storage, err := cached.StorageUsedBytes(ctx, id)
		require.NoError(t, err)
		assert.EqualValues(t, 2048, storage)
	}
	assert.Equal(t, 3, stub.calls, "only the first round reaches the database")
	assert.Equal(t, 30*time.Second, mr.TTL(cacheKey(id, "seats")))

	mr.FastForward(31 * time.Second)
	_, err := cached.SeatsUsed(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 4, stub.calls, "expired entries are re-read")
}

func TestCachedCounter_TTLIsClamped(t *testing.T) {
	cached, _ := newCached(t, &stubCounter{}, 10*time.Minute)
	assert.Equal(t, MaxCacheTTL, cached.TTL())

	cached, _ = newCached(t, &stubCounter{}, 0)
	assert.Equal(t, MaxCacheTTL, cached.TTL())
}

func TestCachedCounter_Invalidate(t *testing.T) {
	stub := &stubCounter{seats: 1}
	cached, _ := newCached(t, stub, time.Minute)
	ctx := context.Background()
	id := uuid.New()

	_, err := cached.SeatsUsed(ctx, id)
	require.NoError(t, err)

	stub.seats = 2
	cached.Invalidate(ctx, id)

	seats, err := cached.SeatsUsed(ctx, id)
	require.NoError(t, err)
	assert.EqualValues(t, 2, seats)
}

func TestCachedCounter_OrdersCacheIsPerMonth(t *testing.T) {
	stub := &stubCounter{orders: 99}
	cached, _ := newCached(t, stub, time.Minute)
	ctx := context.Background()
	id := uuid.New()

	cached.now = func() time.Time { return time.Date(2026, 10, 31, 23, 59, 50, 0, time.UTC) }
	_, err := cached.OrdersThisMonth(ctx, id, time.UTC)
	require.NoError(t, err)

	stub.orders = 0
	cached.now = func() time.Time { return time.Date(2026, 11, 1, 0, 0, 5, 0, time.UTC) }
	orders, err := cached.OrdersThisMonth(ctx, id, time.UTC)
	require.NoError(t, err)
	assert.Zero(t, orders, "October's count is not served in November")
}

func TestCachedCounter_RedisDownFallsThrough(t *testing.T) {
	stub := &stubCounter{seats: 5}
	cached, mr := newCached(t, stub, time.Minute)
	mr.Close()

	seats, err := cached.SeatsUsed(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.EqualValues(t, 5, seats, "a cache outage is never read as zero usage")
	assert.Equal(t, 1, stub.calls)
}

func TestCachedCounter_DatabaseErrorsAreNotCached(t *testing.T) {
	stub := &stubCounter{err: ErrPersistenceFailure}
	cached, mr := newCached(t, stub, time.Minute)
	id := uuid.New()

	_, err := cached.SeatsUsed(context.Background(), id)
	assert.ErrorIs(t, err, ErrPersistenceFailure)
	assert.False(t, mr.Exists(cacheKey(id, "seats")))
}
