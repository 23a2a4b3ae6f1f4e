package dto

import (
	"time"

	"github.com/hugh/ash-erp/internal/api/validation"
	"github.com/hugh/ash-erp/internal/database/models"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Email == "" {
		errors["email"] = "Email is required"
	} else if !validation.IsValidEmail(r.Email) {
		errors["email"] = "Invalid email format"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	}

	return errors
}

type AuthResponse struct {
	Token string  `json:"token"`
	User  UserDTO `json:"user"`
}

type UserDTO struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	IsActive   bool   `json:"is_active"`
	TenantID   string `json:"tenant_id"`
	TenantSlug string `json:"tenant_slug,omitempty"`
	CreatedAt  string `json:"created_at"`
}

func NewUserDTO(u *models.User) UserDTO {
	dto := UserDTO{
		ID:        u.ID.String(),
		Email:     u.Email,
		Name:      u.Name,
		Role:      u.Role,
		IsActive:  u.IsActive,
		TenantID:  u.TenantID.String(),
		CreatedAt: u.CreatedAt.Format(time.RFC3339),
	}
	if u.Tenant != nil {
		dto.TenantSlug = u.Tenant.Slug
	}
	return dto
}
