package limits

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/ash-erp/internal/database/models"
	"github.com/hugh/ash-erp/internal/tenant"
	"github.com/hugh/ash-erp/internal/testutil"
	"github.com/hugh/ash-erp/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var testPlans = PlansFromConfig(map[string]config.PlanLimits{
	"free":       {MaxUsers: 5, MaxOrdersPerMonth: 100, MaxStorageGB: 1},
	"basic":      {MaxUsers: 0, MaxOrdersPerMonth: 0, MaxStorageGB: 0},
	"enterprise": {MaxUsers: Unlimited, MaxOrdersPerMonth: Unlimited, MaxStorageGB: Unlimited},
})

func newEnforcer(t *testing.T) (*Enforcer, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })
	return NewEnforcer(tenant.NewGormLookup(db), NewDBCounter(db), testPlans, 0.9, discardLogger()), db
}

func TestEnforcer_SeatLimitReached(t *testing.T) {
	e, db := newEnforcer(t)
	ctx := testutil.TestContext(t)

	ws := testutil.CreateTestTenant(t, db, models.PlanFree)
	testutil.CreateTestUsers(t, db, ws.ID, 5, true)

	d, err := e.AuthorizeOperation(ctx, ws.ID, OpCreateUser, 0)
	require.NoError(t, err)
	assert.False(t, d.Allowed())
	require.NotNil(t, d.Denial())
	assert.Equal(t, DimensionUsers, d.Denial().Dimension)
	assert.EqualValues(t, 5, d.Denial().Current)
	assert.EqualValues(t, 5, d.Denial().Max)

	err = e.Enforce(ctx, ws.ID, OpCreateUser, 0)
	var quotaErr *QuotaExceededError
	require.True(t, errors.As(err, &quotaErr))
	assert.Equal(t, DimensionUsers, quotaErr.Dimension)
}

func TestEnforcer_QuotaBoundary(t *testing.T) {
	e, db := newEnforcer(t)
	ctx := testutil.TestContext(t)

	ten := 10
	ws := testutil.CreateTestTenant(t, db, models.PlanFree)
	require.NoError(t, db.Model(ws).Update("max_users_override", ten).Error)

	testutil.CreateTestUsers(t, db, ws.ID, 8, true)

	t.Run("80 percent allows without warning", func(t *testing.T) {
		d, err := e.AuthorizeOperation(ctx, ws.ID, OpCreateUser, 0)
		require.NoError(t, err)
		assert.True(t, d.Allowed())
		assert.Nil(t, d.Denial())
		assert.Empty(t, d.Warning())

		report, err := e.CheckLimits(ctx, ws.ID)
		require.NoError(t, err)
		assert.Empty(t, report.Warnings)
		assert.False(t, report.NeedsUpgrade)
	})

	testutil.CreateTestUsers(t, db, ws.ID, 1, true)

	t.Run("current 9 of 10 allows and warns", func(t *testing.T) {
		d, err := e.AuthorizeOperation(ctx, ws.ID, OpCreateUser, 0)
		require.NoError(t, err)
		assert.True(t, d.Allowed())
		assert.Contains(t, d.Warning(), "User limit almost reached")

		report, err := e.CheckLimits(ctx, ws.ID)
		require.NoError(t, err)
		assert.Equal(t, 90.0, report.UsagePercentages.Users)
		require.Len(t, report.Warnings, 1)
		assert.Contains(t, report.Warnings[0], "User limit")
		assert.True(t, report.NeedsUpgrade)
	})

	testutil.CreateTestUsers(t, db, ws.ID, 1, true)

	t.Run("current 10 of 10 denies", func(t *testing.T) {
		d, err := e.AuthorizeOperation(ctx, ws.ID, OpCreateUser, 0)
		require.NoError(t, err)
		assert.False(t, d.Allowed())
		assert.EqualValues(t, 10, d.Denial().Current)
		assert.EqualValues(t, 10, d.Denial().Max)
	})
}

func TestEnforcer_OrdersNearLimit(t *testing.T) {
	e, db := newEnforcer(t)
	ctx := testutil.TestContext(t)

	ws := testutil.CreateTestTenant(t, db, models.PlanFree)
	testutil.CreateTestOrders(t, db, ws.ID, 91, time.Now().Add(-time.Second))

	report, err := e.CheckLimits(ctx, ws.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 91, report.Limits.Orders.CurrentMonth)
	assert.Equal(t, 100, report.Limits.Orders.Max)
	assert.EqualValues(t, 9, report.Limits.Orders.Available)
	assert.InDelta(t, 91.0, report.UsagePercentages.Orders, 0.05)
	require.Len(t, report.Warnings, 1)
	assert.Contains(t, report.Warnings[0], "Monthly order limit almost reached")
	assert.Equal(t, []Dimension{DimensionOrders}, report.Warned)
	assert.InDelta(t, 91.0, report.Percentage(DimensionOrders), 0.05)
	assert.True(t, report.NeedsUpgrade)

	d, err := e.AuthorizeOperation(ctx, ws.ID, OpCreateOrder, 0)
	require.NoError(t, err)
	assert.True(t, d.Allowed(), "warnings never deny")
}

func TestEnforcer_CheckLimitsIsIdempotent(t *testing.T) {
	e, db := newEnforcer(t)
	ctx := testutil.TestContext(t)

	ws := testutil.CreateTestTenant(t, db, models.PlanFree)
	testutil.CreateTestUsers(t, db, ws.ID, 2, true)
	testutil.CreateTestOrders(t, db, ws.ID, 7, time.Now().Add(-time.Second))
	testutil.CreateTestFile(t, db, ws.ID, 250_000_000)

	first, err := e.CheckLimits(ctx, ws.ID)
	require.NoError(t, err)
	second, err := e.CheckLimits(ctx, ws.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	assert.Equal(t, 0.25, first.Limits.Storage.UsedGB)
	assert.Equal(t, 0.75, first.Limits.Storage.AvailableGB)
	assert.Equal(t, 25.0, first.UsagePercentages.Storage)
	assert.Equal(t, 40.0, first.UsagePercentages.Users)
	assert.Equal(t, 7.0, first.UsagePercentages.Orders)
	assert.NotNil(t, first.Warnings)
}

func TestEnforcer_Upload(t *testing.T) {
	e, db := newEnforcer(t)
	ctx := testutil.TestContext(t)

	ws := testutil.CreateTestTenant(t, db, models.PlanFree)
	testutil.CreateTestFile(t, db, ws.ID, 600_000_000)

	d, err := e.AuthorizeOperation(ctx, ws.ID, OpUploadFile, 400_000_000)
	require.NoError(t, err)
	assert.True(t, d.Allowed(), "exactly filling the quota is allowed")

	d, err = e.AuthorizeOperation(ctx, ws.ID, OpUploadFile, 400_000_001)
	require.NoError(t, err)
	assert.False(t, d.Allowed())
	assert.Equal(t, DimensionStorage, d.Denial().Dimension)
	assert.EqualValues(t, 600_000_000, d.Denial().Current)
	assert.EqualValues(t, 1_000_000_000, d.Denial().Max)

	_, err = e.AuthorizeOperation(ctx, ws.ID, OpUploadFile, -1)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestEnforcer_UploadSizeDoesNotOverflow(t *testing.T) {
	e, db := newEnforcer(t)
	ctx := testutil.TestContext(t)

	ws := testutil.CreateTestTenant(t, db, models.PlanFree)
	testutil.CreateTestFile(t, db, ws.ID, 1)

	for _, size := range []int64{math.MaxInt64, math.MaxInt64 - 1, 1_000_000_000} {
		d, err := e.AuthorizeOperation(ctx, ws.ID, OpUploadFile, size)
		require.NoError(t, err)
		assert.False(t, d.Allowed(), "size %d", size)
		require.NotNil(t, d.Denial())
		assert.EqualValues(t, 1, d.Denial().Current)
	}

	d, err := e.AuthorizeOperation(ctx, ws.ID, OpUploadFile, 999_999_999)
	require.NoError(t, err)
	assert.True(t, d.Allowed())
}

func TestEnforcer_UnlimitedAndZeroPlans(t *testing.T) {
	e, db := newEnforcer(t)
	ctx := testutil.TestContext(t)

	big := testutil.CreateTestTenant(t, db, models.PlanEnterprise)
	testutil.CreateTestUsers(t, db, big.ID, 50, true)

	for _, op := range []Operation{OpCreateUser, OpCreateOrder} {
		d, err := e.AuthorizeOperation(ctx, big.ID, op, 0)
		require.NoError(t, err)
		assert.True(t, d.Allowed(), op)
		assert.Empty(t, d.Warning())
	}
	d, err := e.AuthorizeOperation(ctx, big.ID, OpUploadFile, 5_000_000_000_000)
	require.NoError(t, err)
	assert.True(t, d.Allowed())

	report, err := e.CheckLimits(ctx, big.ID)
	require.NoError(t, err)
	assert.Zero(t, report.UsagePercentages.Users)
	assert.EqualValues(t, Unlimited, report.Limits.Users.Available)
	assert.False(t, report.NeedsUpgrade)

	closed := testutil.CreateTestTenant(t, db, models.PlanBasic)
	d, err = e.AuthorizeOperation(ctx, closed.ID, OpCreateOrder, 0)
	require.NoError(t, err)
	assert.False(t, d.Allowed(), "a zero maximum allows nothing")

	report, err = e.CheckLimits(ctx, closed.ID)
	require.NoError(t, err)
	assert.Equal(t, 100.0, report.UsagePercentages.Orders)
	assert.True(t, report.NeedsUpgrade)
}

func TestEnforcer_Errors(t *testing.T) {
	e, db := newEnforcer(t)
	ctx := testutil.TestContext(t)

	_, err := e.CheckLimits(ctx, uuid.New())
	assert.ErrorIs(t, err, tenant.ErrTenantNotFound)

	ws := testutil.CreateTestTenant(t, db, models.PlanProfessional)
	_, err = e.CheckLimits(ctx, ws.ID)
	assert.ErrorIs(t, err, ErrUnknownPlan, "plans missing from the catalog fail closed")

	_, err = e.AuthorizeOperation(ctx, ws.ID, Operation("DELETE_EVERYTHING"), 0)
	assert.ErrorIs(t, err, ErrUnknownOperation)
}

type fixedLookup struct{ t *models.Tenant }

func (f fixedLookup) ByID(context.Context, uuid.UUID) (*models.Tenant, error) { return f.t, nil }
func (f fixedLookup) BySlug(context.Context, string) (*models.Tenant, error) { return f.t, nil }

func TestEnforcer_PersistenceFailureDenies(t *testing.T) {
	ws := &models.Tenant{Base: models.Base{ID: uuid.New()}, Slug: "acme", IsActive: true, PlanTier: models.PlanFree}
	e := NewEnforcer(fixedLookup{ws}, &stubCounter{err: ErrPersistenceFailure}, testPlans, 0.9, discardLogger())
	ctx := context.Background()

	d, err := e.AuthorizeOperation(ctx, ws.ID, OpCreateOrder, 0)
	assert.ErrorIs(t, err, ErrPersistenceFailure)
	assert.False(t, d.Allowed())

	assert.ErrorIs(t, e.Enforce(ctx, ws.ID, OpCreateOrder, 0), ErrPersistenceFailure)

	report, err := e.CheckLimits(ctx, ws.ID)
	assert.ErrorIs(t, err, ErrPersistenceFailure)
	assert.Nil(t, report)
}

func TestEnforcer_UsageChangedInvalidatesCache(t *testing.T) {
	stub := &stubCounter{seats: 4}
	cached, _ := newCached(t, stub, time.Minute)
	ws := &models.Tenant{Base: models.Base{ID: uuid.New()}, Slug: "acme", IsActive: true, PlanTier: models.PlanFree}
	e := NewEnforcer(fixedLookup{ws}, cached, testPlans, 0.9, discardLogger())
	ctx := context.Background()

	d, err := e.AuthorizeOperation(ctx, ws.ID, OpCreateUser, 0)
	require.NoError(t, err)
	require.True(t, d.Allowed())

	stub.seats = 5
	e.UsageChanged(ctx, ws.ID)

	d, err = e.AuthorizeOperation(ctx, ws.ID, OpCreateUser, 0)
	require.NoError(t, err)
	assert.False(t, d.Allowed())
}

func TestParseOperation(t *testing.T) {
	op, err := ParseOperation("create_order")
	require.NoError(t, err)
	assert.Equal(t, OpCreateOrder, op)

	_, err = ParseOperation("launch")
	assert.ErrorIs(t, err, ErrUnknownOperation)
}

func TestPlans_Overrides(t *testing.T) {
	users, orders, storage := 12, Unlimited, 2.5
	plan, err := testPlans.For(&models.Tenant{
		PlanTier:             models.PlanFree,
		MaxUsersOverride:     &users,
		MaxOrdersOverride:    &orders,
		MaxStorageGBOverride: &storage,
	})
	require.NoError(t, err)
	assert.Equal(t, 12, plan.MaxUsers)
	assert.Equal(t, Unlimited, plan.MaxOrdersPerMonth)
	assert.EqualValues(t, 2_500_000_000, plan.MaxStorageBytes())
}
