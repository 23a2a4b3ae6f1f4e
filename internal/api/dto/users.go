package dto

import (
	"strings"

	"github.com/hugh/ash-erp/internal/api/validation"
	"github.com/hugh/ash-erp/internal/rbac"
)

type CreateUserRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (r CreateUserRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Email == "" {
		errors["email"] = "Email is required"
	} else if !validation.IsValidEmail(r.Email) {
		errors["email"] = "Invalid email format"
	}
	if valid, msg := validation.IsValidPassword(r.Password); !valid {
		errors["password"] = msg
	}
	if strings.TrimSpace(r.Name) == "" {
		errors["name"] = "Name is required"
	} else if len(r.Name) > 100 {
		errors["name"] = "Name must be at most 100 characters"
	}
	if r.Role != "" {
		if _, ok := rbac.ParseRole(r.Role); !ok {
			errors["role"] = "Unknown role"
		}
	}

	return errors
}

type UpdateRoleRequest struct {
	Role string `json:"role"`
}

func (r UpdateRoleRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.Role == "" {
		errors["role"] = "Role is required"
	}
	return errors
}

type RolesResponse struct {
	Success bool            `json:"success"`
	Roles   []rbac.RoleInfo `json:"roles"`
}

type PermissionsResponse struct {
	Success bool              `json:"success"`
	Role    string            `json:"role"`
	Granted []string          `json:"granted"`
	Catalog []rbac.Permission `json:"catalog"`
}
