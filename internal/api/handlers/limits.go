package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/hugh/ash-erp/internal/api/dto"
	"github.com/hugh/ash-erp/internal/api/respond"
	"github.com/hugh/ash-erp/internal/limits"
)

// LimitsService is the part of *limits.Enforcer the HTTP layer reads.
type LimitsService interface {
	CheckLimits(ctx context.Context, tenantID uuid.UUID) (*limits.Report, error)
	AuthorizeOperation(ctx context.Context, tenantID uuid.UUID, op limits.Operation, sizeBytes int64) (limits.Decision, error)
}

type LimitsHandler struct {
	limits LimitsService
	rs     *respond.Responder
}

func NewLimitsHandler(limits LimitsService, rs *respond.Responder) *LimitsHandler {
	return &LimitsHandler{limits: limits, rs: rs}
}

// Get handles GET /tenant/limits
func (h *LimitsHandler) Get(w http.ResponseWriter, r *http.Request) {
	sc, err := requestScope(r)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	report, err := h.limits.CheckLimits(r.Context(), sc.tenant.TenantID)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, dto.LimitsResponse{Success: true, Report: report})
}

// Check handles POST /tenant/limits/check. It answers whether an operation
// would be allowed right now without performing it; a denial is a normal
// 200 response with allowed=false.
func (h *LimitsHandler) Check(w http.ResponseWriter, r *http.Request) {
	sc, err := requestScope(r)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	var req dto.LimitCheckRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !validate(w, req.Validate()) {
		return
	}
	op, _ := limits.ParseOperation(req.Operation)

	decision, err := h.limits.AuthorizeOperation(r.Context(), sc.tenant.TenantID, op, req.SizeBytes)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	respond.JSON(w, http.StatusOK, dto.NewLimitCheckResponse(decision))
}
