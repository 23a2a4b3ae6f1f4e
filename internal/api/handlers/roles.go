package handlers

import (
	"net/http"

	"github.com/hugh/ash-erp/internal/api/dto"
	"github.com/hugh/ash-erp/internal/api/respond"
	"github.com/hugh/ash-erp/internal/rbac"
)

type RoleHandler struct {
	rs *respond.Responder
}

func NewRoleHandler(rs *respond.Responder) *RoleHandler {
	return &RoleHandler{rs: rs}
}

// List handles GET /roles
func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, dto.RolesResponse{Success: true, Roles: rbac.Roles()})
}

// Permissions handles GET /permissions: the full catalog plus what the
// caller's own role grants.
func (h *RoleHandler) Permissions(w http.ResponseWriter, r *http.Request) {
	sc, err := requestScope(r)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	granted := rbac.PermissionsFor(sc.principal.Role)
	if granted == nil {
		granted = []string{}
	}
	respond.JSON(w, http.StatusOK, dto.PermissionsResponse{
		Success: true,
		Role:    sc.principal.Role,
		Granted: granted,
		Catalog: rbac.Catalog(),
	})
}
