package dto

import (
	"strings"
	"time"

	"github.com/hugh/ash-erp/internal/api/validation"
	"github.com/hugh/ash-erp/internal/database/models"
)

type CreateTenantRequest struct {
	Name          string `json:"name"`
	Slug          string `json:"slug"`
	PlanTier      string `json:"plan_tier"`
	Timezone      string `json:"timezone"`
	AdminEmail    string `json:"admin_email"`
	AdminName     string `json:"admin_name"`
	AdminPassword string `json:"admin_password"`
}

// Validate checks the fields the tenant service does not. Slug, plan and
// timezone are validated by the service.
func (r CreateTenantRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if strings.TrimSpace(r.Name) == "" {
		errors["name"] = "Name is required"
	}
	if r.Slug == "" {
		errors["slug"] = "Slug is required"
	}
	if r.AdminEmail == "" {
		errors["admin_email"] = "Admin email is required"
	} else if !validation.IsValidEmail(r.AdminEmail) {
		errors["admin_email"] = "Invalid email format"
	}
	if valid, msg := validation.IsValidPassword(r.AdminPassword); !valid {
		errors["admin_password"] = msg
	}

	return errors
}

type ChangePlanRequest struct {
	PlanTier             string   `json:"plan_tier"`
	MaxUsersOverride     *int     `json:"max_users_override"`
	MaxOrdersOverride    *int     `json:"max_orders_override"`
	MaxStorageGBOverride *float64 `json:"max_storage_gb_override"`
}

type SuspendRequest struct {
	Reason string `json:"reason"`
}

type DeleteTenantRequest struct {
	Confirmation string `json:"confirmation"`
}

type TenantDTO struct {
	ID                   string   `json:"id"`
	Name                 string   `json:"name"`
	Slug                 string   `json:"slug"`
	IsActive             bool     `json:"is_active"`
	PlanTier             string   `json:"plan_tier"`
	Timezone             string   `json:"timezone,omitempty"`
	MaxUsersOverride     *int     `json:"max_users_override,omitempty"`
	MaxOrdersOverride    *int     `json:"max_orders_override,omitempty"`
	MaxStorageGBOverride *float64 `json:"max_storage_gb_override,omitempty"`
	SuspendedReason      string   `json:"suspended_reason,omitempty"`
	CreatedAt            string   `json:"created_at"`
}

func NewTenantDTO(t *models.Tenant) TenantDTO {
	return TenantDTO{
		ID:                   t.ID.String(),
		Name:                 t.Name,
		Slug:                 t.Slug,
		IsActive:             t.IsActive,
		PlanTier:             string(t.PlanTier),
		Timezone:             t.Timezone,
		MaxUsersOverride:     t.MaxUsersOverride,
		MaxOrdersOverride:    t.MaxOrdersOverride,
		MaxStorageGBOverride: t.MaxStorageGBOverride,
		SuspendedReason:      t.SuspendedReason,
		CreatedAt:            t.CreatedAt.Format(time.RFC3339),
	}
}

type CreateTenantResponse struct {
	Tenant TenantDTO `json:"tenant"`
	Admin  UserDTO   `json:"admin"`
}
