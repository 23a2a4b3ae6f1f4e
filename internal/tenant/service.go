package tenant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/ash-erp/internal/auth"
	"github.com/hugh/ash-erp/internal/database/models"
	"github.com/hugh/ash-erp/internal/rbac"
	"gorm.io/gorm"
)

var (
	ErrInvalidSlug          = errors.New("slug must be 3-63 lowercase letters, digits or hyphens")
	ErrSlugTaken            = errors.New("slug is already taken")
	ErrInvalidPlan          = errors.New("invalid plan tier")
	ErrInvalidTimezone      = errors.New("invalid timezone")
	ErrConfirmationMismatch = errors.New("confirmation does not match tenant slug")
	ErrAdminRequired        = errors.New("admin email and password are required")
)

var slugPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,61}[a-z0-9]$`)

// Invalidator is told when a tenant changed so cached copies can be dropped.
type Invalidator interface {
	Invalidate(t *models.Tenant)
}

type Service struct {
	db          *gorm.DB
	invalidator Invalidator
	logger      *slog.Logger
}

func NewService(db *gorm.DB, invalidator Invalidator, logger *slog.Logger) *Service {
	return &Service{db: db, invalidator: invalidator, logger: logger}
}

type CreateInput struct {
	Name          string
	Slug          string
	PlanTier      models.PlanTier
	Timezone      string
	AdminEmail    string
	AdminName     string
	AdminPassword string
}

// Create provisions a tenant together with its first admin user.
func (s *Service) Create(ctx context.Context, input CreateInput) (*models.Tenant, *models.User, error) {
	slug := strings.ToLower(strings.TrimSpace(input.Slug))
	if !slugPattern.MatchString(slug) || reservedSubdomains[slug] {
		return nil, nil, ErrInvalidSlug
	}
	if input.PlanTier == "" {
		input.PlanTier = models.PlanFree
	}
	if !input.PlanTier.Valid() {
		return nil, nil, ErrInvalidPlan
	}
	if err := validateTimezone(input.Timezone); err != nil {
		return nil, nil, err
	}
	if input.AdminEmail == "" || input.AdminPassword == "" {
		return nil, nil, ErrAdminRequired
	}

	hash, err := auth.HashPassword(input.AdminPassword)
	if err != nil {
		return nil, nil, err
	}

	t := models.Tenant{
		Name:     input.Name,
		Slug:     slug,
		IsActive: true,
		PlanTier: input.PlanTier,
		Timezone: input.Timezone,
	}
	var admin models.User

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Unscoped().Model(&models.Tenant{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrSlugTaken
		}
		if err := tx.Create(&t).Error; err != nil {
			return err
		}

		admin = models.User{
			TenantID:     t.ID,
			Email:        strings.ToLower(strings.TrimSpace(input.AdminEmail)),
			PasswordHash: hash,
			Name:         input.AdminName,
			Role:         string(rbac.RoleAdmin),
			IsActive:     true,
		}
		return tx.Create(&admin).Error
	})
	if err != nil {
		if errors.Is(err, ErrSlugTaken) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("creating tenant: %w", err)
	}

	s.logger.Info("tenant created", "tenant_id", t.ID, "slug", t.Slug, "plan", t.PlanTier)
	return &t, &admin, nil
}

func (s *Service) List(ctx context.Context) ([]models.Tenant, error) {
	var tenants []models.Tenant
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&tenants).Error; err != nil {
		return nil, fmt.Errorf("listing tenants: %w", err)
	}
	return tenants, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	var t models.Tenant
	if err := s.db.WithContext(ctx).First(&t, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("loading tenant: %w", err)
	}
	return &t, nil
}

// PlanChange moves a tenant to another tier. Nil overrides are cleared so the
// new plan's maxima apply.
type PlanChange struct {
	PlanTier             models.PlanTier
	MaxUsersOverride     *int
	MaxOrdersOverride    *int
	MaxStorageGBOverride *float64
}

func (s *Service) ChangePlan(ctx context.Context, id uuid.UUID, change PlanChange) (*models.Tenant, error) {
	if !change.PlanTier.Valid() {
		return nil, ErrInvalidPlan
	}
	return s.update(ctx, id, map[string]interface{}{
		"plan_tier":               change.PlanTier,
		"max_users_override":      change.MaxUsersOverride,
		"max_orders_override":     change.MaxOrdersOverride,
		"max_storage_gb_override": change.MaxStorageGBOverride,
	})
}

func (s *Service) Suspend(ctx context.Context, id uuid.UUID, reason string) (*models.Tenant, error) {
	if reason == "" {
		reason = "not specified"
	}
	t, err := s.update(ctx, id, map[string]interface{}{
		"is_active":        false,
		"suspended_reason": reason,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Warn("tenant suspended", "tenant_id", id, "reason", reason)
	return t, nil
}

func (s *Service) Activate(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	return s.update(ctx, id, map[string]interface{}{
		"is_active":        true,
		"suspended_reason": "",
	})
}

// Delete deactivates and soft-deletes a tenant. confirmation must equal the
// tenant's slug exactly.
func (s *Service) Delete(ctx context.Context, id uuid.UUID, confirmation string) error {
	t, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if confirmation != t.Slug {
		return ErrConfirmationMismatch
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(t).Updates(map[string]interface{}{
			"is_active":        false,
			"suspended_reason": "deleted",
		}).Error; err != nil {
			return err
		}
		if err := tx.Where("tenant_id = ?", id).Delete(&models.User{}).Error; err != nil {
			return err
		}
		return tx.Delete(t).Error
	})
	if err != nil {
		return fmt.Errorf("deleting tenant: %w", err)
	}

	s.invalidate(t)
	s.logger.Warn("tenant deleted", "tenant_id", id, "slug", t.Slug)
	return nil
}

// Stats is an administrative summary of one tenant.
type Stats struct {
	TotalUsers    int64     `json:"total_users"`
	ActiveUsers   int64     `json:"active_users"`
	TotalOrders   int64     `json:"total_orders"`
	ActiveOrders  int64     `json:"active_orders"`
	TotalFiles    int64     `json:"total_files"`
	StorageUsedGB float64   `json:"storage_used_gb"`
	CreatedAt     time.Time `json:"created_at"`
	DaysActive    int       `json:"days_active"`
}

func (s *Service) Stats(ctx context.Context, id uuid.UUID) (*Stats, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	stats := &Stats{
		CreatedAt:  t.CreatedAt,
		DaysActive: int(time.Since(t.CreatedAt).Hours() / 24),
	}
	var storageBytes int64

	queries := []struct {
		name string
		run  func() error
	}{
		{"users", func() error {
			return db.Model(&models.User{}).Where("tenant_id = ?", id).Count(&stats.TotalUsers).Error
		}},
		{"active users", func() error {
			return db.Model(&models.User{}).Where("tenant_id = ? AND is_active = ?", id, true).Count(&stats.ActiveUsers).Error
		}},
		{"orders", func() error {
			return db.Model(&models.Order{}).Where("tenant_id = ?", id).Count(&stats.TotalOrders).Error
		}},
		{"active orders", func() error {
			return db.Model(&models.Order{}).
				Where("tenant_id = ? AND status = ?", id, models.OrderStatusInProduction).
				Count(&stats.ActiveOrders).Error
		}},
		{"files", func() error {
			return db.Model(&models.StoredFile{}).Where("tenant_id = ?", id).Count(&stats.TotalFiles).Error
		}},
		{"storage", func() error {
			return db.Model(&models.StoredFile{}).
				Where("tenant_id = ?", id).
				Select("COALESCE(SUM(size_bytes), 0)").
				Scan(&storageBytes).Error
		}},
	}
	for _, q := range queries {
		if err := q.run(); err != nil {
			return nil, fmt.Errorf("counting %s: %w", q.name, err)
		}
	}

	stats.StorageUsedGB = float64(storageBytes) / 1e9
	return stats, nil
}

func (s *Service) update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) (*models.Tenant, error) {
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(t).Updates(fields).Error; err != nil {
		return nil, fmt.Errorf("updating tenant: %w", err)
	}
	s.invalidate(t)
	return s.Get(ctx, id)
}

func (s *Service) invalidate(t *models.Tenant) {
	if s.invalidator != nil {
		s.invalidator.Invalidate(t)
	}
}

func validateTimezone(name string) error {
	if name == "" {
		return nil
	}
	if _, err := time.LoadLocation(name); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidTimezone, name)
	}
	return nil
}
