package rbac

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hugh/ash-erp/internal/database/models"
	"gorm.io/gorm"
)

// GormRoleStore stores roles on the users table.
type GormRoleStore struct {
	db *gorm.DB
}

func NewGormRoleStore(db *gorm.DB) *GormRoleStore {
	return &GormRoleStore{db: db}
}

func (s *GormRoleStore) SetUserRole(ctx context.Context, tenantID, userID uuid.UUID, role Role) error {
	result := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND tenant_id = ?", userID, tenantID).
		Update("role", string(role))
	if result.Error != nil {
		return fmt.Errorf("updating role: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

var _ RoleStore = (*GormRoleStore)(nil)
