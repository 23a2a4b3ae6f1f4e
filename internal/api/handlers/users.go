package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/ash-erp/internal/api/dto"
	"github.com/hugh/ash-erp/internal/api/respond"
	"github.com/hugh/ash-erp/internal/api/validation"
	"github.com/hugh/ash-erp/internal/auth"
	"github.com/hugh/ash-erp/internal/database/models"
	"github.com/hugh/ash-erp/internal/gate"
	"github.com/hugh/ash-erp/internal/rbac"
	"gorm.io/gorm"
)

// RoleAssigner is satisfied by *rbac.Manager.
type RoleAssigner interface {
	AssignRole(ctx context.Context, tenantID, userID uuid.UUID, role string) (rbac.Role, error)
}

type UserHandler struct {
	db       *gorm.DB
	roles    RoleAssigner
	usage    UsageTracker
	notifier UsageNotifier
	rs       *respond.Responder
}

func NewUserHandler(db *gorm.DB, roles RoleAssigner, usage UsageTracker, notifier UsageNotifier, rs *respond.Responder) *UserHandler {
	return &UserHandler{db: db, roles: roles, usage: usage, notifier: notifier, rs: rs}
}

// List handles GET /users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	sc, err := requestScope(r)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	pagination := paginationFrom(r)

	query := h.db.WithContext(r.Context()).Model(&models.User{}).Where("tenant_id = ?", sc.tenant.TenantID)
	if active := r.URL.Query().Get("active"); active != "" {
		query = query.Where("is_active = ?", active == "true")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		h.rs.Error(w, r, err)
		return
	}

	var users []models.User
	if err := query.
		Order("created_at ASC").
		Offset(pagination.Offset()).
		Limit(pagination.PerPage).
		Find(&users).Error; err != nil {
		h.rs.Error(w, r, err)
		return
	}

	data := make([]dto.UserDTO, len(users))
	for i := range users {
		data[i] = dto.NewUserDTO(&users[i])
		data[i].TenantSlug = sc.tenant.Slug
	}

	respond.JSON(w, http.StatusOK, dto.PaginatedResponse{
		Data:       data,
		Total:      total,
		Page:       pagination.Page,
		PerPage:    pagination.PerPage,
		TotalPages: pagination.TotalPages(total),
	})
}

func userExists(w http.ResponseWriter) {
	respond.JSON(w, http.StatusConflict, dto.ErrorResponse{Error: "User already exists", Code: "conflict"})
}

// Create handles POST /users. The seat quota was checked by the gate.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	sc, err := requestScope(r)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	var req dto.CreateUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validate(w, req.Validate()) {
		return
	}

	role := rbac.RoleWorker
	if req.Role != "" {
		role, _ = rbac.ParseRole(req.Role)
	}
	if err := canGrant(sc.principal, role); err != nil {
		h.rs.Error(w, r, err)
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	var existing int64
	if err := h.db.WithContext(r.Context()).Model(&models.User{}).
		Where("tenant_id = ? AND email = ?", sc.tenant.TenantID, email).
		Count(&existing).Error; err != nil {
		h.rs.Error(w, r, err)
		return
	}
	if existing > 0 {
		userExists(w)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	user := models.User{
		TenantID:     sc.tenant.TenantID,
		Email:        email,
		PasswordHash: hash,
		Name:         validation.SanitizeString(strings.TrimSpace(req.Name)),
		Role:         string(role),
		IsActive:     true,
	}
	if err := h.db.WithContext(r.Context()).Create(&user).Error; err != nil {
		// a concurrent create or a soft-deleted row still holds the email
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			userExists(w)
			return
		}
		h.rs.Error(w, r, err)
		return
	}

	usageChanged(r.Context(), h.usage, h.notifier, sc.tenant.TenantID, "user created")

	resp := dto.NewUserDTO(&user)
	resp.TenantSlug = sc.tenant.Slug
	respond.JSON(w, http.StatusCreated, resp)
}

// UpdateRole handles PUT /users/{id}/role
func (h *UserHandler) UpdateRole(w http.ResponseWriter, r *http.Request) {
	sc, err := requestScope(r)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	userID, ok := idParam(w, r, "user")
	if !ok {
		return
	}

	var req dto.UpdateRoleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validate(w, req.Validate()) {
		return
	}

	if role, ok := rbac.ParseRole(req.Role); ok {
		if err := canGrant(sc.principal, role); err != nil {
			h.rs.Error(w, r, err)
			return
		}
	}
	if userID == sc.principal.UserID {
		respond.BadRequest(w, "You cannot change your own role", nil)
		return
	}

	role, err := h.roles.AssignRole(r.Context(), sc.tenant.TenantID, userID, req.Role)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"user_id": userID.String(),
		"role":    role,
	})
}

// Deactivate handles DELETE /users/{id}. Users are never hard-deleted; an
// inactive user frees its seat.
func (h *UserHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	sc, err := requestScope(r)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	userID, ok := idParam(w, r, "user")
	if !ok {
		return
	}
	if userID == sc.principal.UserID {
		respond.BadRequest(w, "You cannot deactivate yourself", nil)
		return
	}

	result := h.db.WithContext(r.Context()).
		Model(&models.User{}).
		Where("id = ? AND tenant_id = ?", userID, sc.tenant.TenantID).
		Update("is_active", false)
	if result.Error != nil {
		h.rs.Error(w, r, result.Error)
		return
	}
	if result.RowsAffected == 0 {
		h.rs.Error(w, r, auth.ErrUserNotFound)
		return
	}

	usageChanged(r.Context(), h.usage, h.notifier, sc.tenant.TenantID, "user deactivated")
	respond.JSON(w, http.StatusOK, dto.SuccessResponse{Success: true, Message: "User deactivated"})
}

// canGrant keeps the platform role out of reach of workspace admins.
func canGrant(p *auth.Principal, role rbac.Role) error {
	if role == rbac.RoleSuperAdmin && p.Role != string(rbac.RoleSuperAdmin) {
		return fmt.Errorf("%w: only a super admin can grant %s", gate.ErrPermissionDenied, role)
	}
	return nil
}
