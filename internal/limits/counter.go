package limits

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/ash-erp/internal/database/models"
	"gorm.io/gorm"
)

// Counter reads live usage of one tenant.
type Counter interface {
	SeatsUsed(ctx context.Context, tenantID uuid.UUID) (int64, error)
	OrdersThisMonth(ctx context.Context, tenantID uuid.UUID, loc *time.Location) (int64, error)
	StorageUsedBytes(ctx context.Context, tenantID uuid.UUID) (int64, error)
}

// DBCounter counts straight from the database. Every query is filtered on
// tenant_id.
type DBCounter struct {
	db  *gorm.DB
	now func() time.Time
}

func NewDBCounter(db *gorm.DB) *DBCounter {
	return &DBCounter{db: db, now: time.Now}
}

func (c *DBCounter) SeatsUsed(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var n int64
	err := c.db.WithContext(ctx).
		Model(&models.User{}).
		Where("tenant_id = ? AND is_active = ?", tenantID, true).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("%w: counting seats: %w", ErrPersistenceFailure, err)
	}
	return n, nil
}

// OrdersThisMonth counts orders created in [start of month, now) on the
// tenant's calendar. A nil loc means UTC.
func (c *DBCounter) OrdersThisMonth(ctx context.Context, tenantID uuid.UUID, loc *time.Location) (int64, error) {
	start, now := MonthWindow(c.now(), loc)

	var n int64
	err := c.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("tenant_id = ? AND created_at >= ? AND created_at < ?", tenantID, start.UTC(), now.UTC()).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("%w: counting orders: %w", ErrPersistenceFailure, err)
	}
	return n, nil
}

func (c *DBCounter) StorageUsedBytes(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var total int64
	err := c.db.WithContext(ctx).
		Model(&models.StoredFile{}).
		Where("tenant_id = ?", tenantID).
		Select("COALESCE(SUM(size_bytes), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("%w: summing storage: %w", ErrPersistenceFailure, err)
	}
	return total, nil
}

// MonthWindow returns the first instant of now's month in loc, and now.
func MonthWindow(now time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)
	return start, now
}

// Period names the month containing now in loc, e.g. "2026-10".
func Period(now time.Time, loc *time.Location) string {
	start, _ := MonthWindow(now, loc)
	return start.Format("2006-01")
}

var _ Counter = (*DBCounter)(nil)
