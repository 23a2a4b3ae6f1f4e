package handlers

import (
	"net/http"
	"strings"

	"github.com/hugh/ash-erp/internal/api/dto"
	"github.com/hugh/ash-erp/internal/api/respond"
	"github.com/hugh/ash-erp/internal/api/validation"
	"github.com/hugh/ash-erp/internal/database/models"
	"github.com/hugh/ash-erp/internal/tenant"
)

// TenantHandler is the platform administration surface. Every route is
// guarded by admin:manage, which only super admins hold.
type TenantHandler struct {
	tenants *tenant.Service
	limits  LimitsService
	rs      *respond.Responder
}

func NewTenantHandler(tenants *tenant.Service, limits LimitsService, rs *respond.Responder) *TenantHandler {
	return &TenantHandler{tenants: tenants, limits: limits, rs: rs}
}

// List handles GET /admin/tenants
func (h *TenantHandler) List(w http.ResponseWriter, r *http.Request) {
	tenants, err := h.tenants.List(r.Context())
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	data := make([]dto.TenantDTO, len(tenants))
	for i := range tenants {
		data[i] = dto.NewTenantDTO(&tenants[i])
	}
	respond.JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    data,
		"total":   len(data),
	})
}

// Create handles POST /admin/tenants
func (h *TenantHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateTenantRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validate(w, req.Validate()) {
		return
	}

	t, admin, err := h.tenants.Create(r.Context(), tenant.CreateInput{
		Name:          validation.SanitizeString(strings.TrimSpace(req.Name)),
		Slug:          req.Slug,
		PlanTier:      models.PlanTier(strings.ToLower(req.PlanTier)),
		Timezone:      req.Timezone,
		AdminEmail:    strings.ToLower(strings.TrimSpace(req.AdminEmail)),
		AdminName:     validation.SanitizeString(strings.TrimSpace(req.AdminName)),
		AdminPassword: req.AdminPassword,
	})
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	adminDTO := dto.NewUserDTO(admin)
	adminDTO.TenantSlug = t.Slug
	respond.JSON(w, http.StatusCreated, dto.CreateTenantResponse{
		Tenant: dto.NewTenantDTO(t),
		Admin:  adminDTO,
	})
}

// Get handles GET /admin/tenants/{id}
func (h *TenantHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "tenant")
	if !ok {
		return
	}
	t, err := h.tenants.Get(r.Context(), id)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, dto.NewTenantDTO(t))
}

// ChangePlan handles PUT /admin/tenants/{id}/plan
func (h *TenantHandler) ChangePlan(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "tenant")
	if !ok {
		return
	}
	var req dto.ChangePlanRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	t, err := h.tenants.ChangePlan(r.Context(), id, tenant.PlanChange{
		PlanTier:             models.PlanTier(strings.ToLower(req.PlanTier)),
		MaxUsersOverride:     req.MaxUsersOverride,
		MaxOrdersOverride:    req.MaxOrdersOverride,
		MaxStorageGBOverride: req.MaxStorageGBOverride,
	})
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, dto.NewTenantDTO(t))
}

// Suspend handles POST /admin/tenants/{id}/suspend
func (h *TenantHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "tenant")
	if !ok {
		return
	}
	var req dto.SuspendRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}

	t, err := h.tenants.Suspend(r.Context(), id, strings.TrimSpace(req.Reason))
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, dto.NewTenantDTO(t))
}

// Activate handles POST /admin/tenants/{id}/activate
func (h *TenantHandler) Activate(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "tenant")
	if !ok {
		return
	}
	t, err := h.tenants.Activate(r.Context(), id)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, dto.NewTenantDTO(t))
}

// Delete handles DELETE /admin/tenants/{id}. The body must repeat the
// tenant's slug.
func (h *TenantHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "tenant")
	if !ok {
		return
	}
	var req dto.DeleteTenantRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.tenants.Delete(r.Context(), id, req.Confirmation); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, dto.SuccessResponse{Success: true, Message: "Tenant deleted"})
}

// Stats handles GET /admin/tenants/{id}/stats
func (h *TenantHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "tenant")
	if !ok {
		return
	}
	stats, err := h.tenants.Stats(r.Context(), id)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"stats":   stats,
	})
}

// Limits handles GET /admin/tenants/{id}/limits: the same report a tenant
// sees for itself, for any tenant.
func (h *TenantHandler) Limits(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r, "tenant")
	if !ok {
		return
	}
	report, err := h.limits.CheckLimits(r.Context(), id)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, dto.LimitsResponse{Success: true, Report: report})
}
