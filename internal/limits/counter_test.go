package limits

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/hugh/ash-erp/internal/database/models"
	"github.com/hugh/ash-erp/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestDBCounter_TenantIsolation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)
	ctx := testutil.TestContext(t)

	a := testutil.CreateTestTenant(t, db, models.PlanFree)
	b := testutil.CreateTestTenant(t, db, models.PlanFree)

	testutil.CreateTestUsers(t, db, a.ID, 3, true)
	testutil.CreateTestUsers(t, db, a.ID, 2, false)
	testutil.CreateTestUsers(t, db, b.ID, 7, true)

	now := time.Now().UTC()
	testutil.CreateTestOrders(t, db, a.ID, 4, now.Add(-time.Second))
	testutil.CreateTestOrders(t, db, b.ID, 9, now.Add(-time.Second))

	testutil.CreateTestFile(t, db, a.ID, 1_000)
	testutil.CreateTestFile(t, db, a.ID, 2_500)
	testutil.CreateTestFile(t, db, b.ID, 1_000_000)

	counter := NewDBCounter(db)

	seats, err := counter.SeatsUsed(ctx, a.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, seats, "inactive users and other tenants are not counted")

	orders, err := counter.OrdersThisMonth(ctx, a.ID, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 4, orders)

	storage, err := counter.StorageUsedBytes(ctx, a.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3_500, storage)

	seats, err = counter.SeatsUsed(ctx, b.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 7, seats)

	empty := uuid.New()
	storage, err = counter.StorageUsedBytes(ctx, empty)
	require.NoError(t, err)
	assert.Zero(t, storage)
}

func TestDBCounter_SoftDeletedFilesFreeStorage(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)
	ctx := testutil.TestContext(t)

	ws := testutil.CreateTestTenant(t, db, models.PlanFree)
	keep := testutil.CreateTestFile(t, db, ws.ID, 100)
	gone := testutil.CreateTestFile(t, db, ws.ID, 900)
	require.NoError(t, db.Delete(gone).Error)

	storage, err := NewDBCounter(db).StorageUsedBytes(ctx, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, keep.SizeBytes, storage)
}

func TestDBCounter_MonthWindowUsesTenantCalendar(t *testing.T) {
	db := testutil.SetupTestDB(t)
	defer testutil.CleanupTestDB(t, db)
	ctx := testutil.TestContext(t)

	manila, err := time.LoadLocation("Asia/Manila")
	require.NoError(t, err)

	// 02:00 on Oct 1 in Manila is still Sep 30 in UTC.
	now := time.Date(2026, 10, 1, 2, 0, 0, 0, manila)
	ws := testutil.CreateTestTenant(t, db, models.PlanFree)

	testutil.CreateTestOrders(t, db, ws.ID, 1, time.Date(2026, 9, 30, 16, 30, 0, 0, time.UTC)) // Oct 1 00:30 Manila
	testutil.CreateTestOrders(t, db, ws.ID, 1, time.Date(2026, 9, 15, 8, 0, 0, 0, time.UTC))
	testutil.CreateTestOrders(t, db, ws.ID, 1, time.Date(2026, 9, 30, 18, 30, 0, 0, time.UTC)) // after now
	testutil.CreateTestOrders(t, db, ws.ID, 1, time.Date(2026, 8, 31, 23, 0, 0, 0, time.UTC))

	counter := NewDBCounter(db)
	counter.now = func() time.Time { return now }

	inManila, err := counter.OrdersThisMonth(ctx, ws.ID, manila)
	require.NoError(t, err)
	assert.EqualValues(t, 1, inManila)

	inUTC, err := counter.OrdersThisMonth(ctx, ws.ID, time.UTC)
	require.NoError(t, err)
	assert.EqualValues(t, 2, inUTC)
}

func TestMonthWindow(t *testing.T) {
	now := time.Date(2026, 3, 17, 10, 0, 0, 0, time.UTC)
	start, end := MonthWindow(now, nil)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), start)
	assert.Equal(t, now, end)
	assert.Equal(t, "2026-03", Period(now, nil))

	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	// 01:00 UTC on Mar 1 is still February in New York.
	assert.Equal(t, "2026-02", Period(time.Date(2026, 3, 1, 1, 0, 0, 0, time.UTC), ny))
}

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock
}

func TestDBCounter_PersistenceFailure(t *testing.T) {
	db, mock := newMockDB(t)
	counter := NewDBCounter(db)
	ctx := context.Background()
	down := errors.New("connection refused")

	mock.ExpectQuery(`SELECT count\(\*\) FROM "users"`).WillReturnError(down)
	_, err := counter.SeatsUsed(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrPersistenceFailure)
	assert.ErrorIs(t, err, down)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "orders"`).WillReturnError(down)
	_, err = counter.OrdersThisMonth(ctx, uuid.New(), nil)
	assert.ErrorIs(t, err, ErrPersistenceFailure)

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(size_bytes\), 0\) FROM "stored_files"`).WillReturnError(down)
	_, err = counter.StorageUsedBytes(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrPersistenceFailure)

	assert.NoError(t, mock.ExpectationsWereMet())
}
