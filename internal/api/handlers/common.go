package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hugh/ash-erp/internal/api/dto"
	"github.com/hugh/ash-erp/internal/api/respond"
	"github.com/hugh/ash-erp/internal/auth"
	"github.com/hugh/ash-erp/internal/gate"
	"github.com/hugh/ash-erp/internal/tenant"
)

const maxJSONBody = 1 << 20

// UsageTracker is told after a quota-bounded write so cached usage is
// dropped. Satisfied by *limits.Enforcer.
type UsageTracker interface {
	UsageChanged(ctx context.Context, tenantID uuid.UUID)
}

// UsageNotifier schedules an asynchronous usage check. Satisfied by
// *tasks.UsageNotifier.
type UsageNotifier interface {
	Notify(ctx context.Context, tenantID uuid.UUID, reason string)
}

// usageChanged runs after every write that moves a quota dimension.
func usageChanged(ctx context.Context, usage UsageTracker, notifier UsageNotifier, tenantID uuid.UUID, reason string) {
	if usage != nil {
		usage.UsageChanged(ctx, tenantID)
	}
	if notifier != nil {
		notifier.Notify(ctx, tenantID, reason)
	}
}

// scope is the tenant and caller of a guarded request.
type scope struct {
	tenant    *tenant.Context
	principal *auth.Principal
}

// requestScope reads what Auth and Guard stored. Handlers behind Guard
// always have both; a missing value is reported, never defaulted.
func requestScope(r *http.Request) (scope, error) {
	principal := auth.PrincipalFrom(r.Context())
	if principal == nil {
		return scope{}, gate.ErrUnauthenticated
	}
	tc, err := tenant.FromContext(r.Context())
	if err != nil {
		return scope{}, err
	}
	return scope{tenant: tc, principal: principal}, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		respond.BadRequest(w, "Invalid request body", nil)
		return false
	}
	return true
}

func validate(w http.ResponseWriter, errors map[string]string) bool {
	if len(errors) > 0 {
		respond.BadRequest(w, "Validation failed", errors)
		return false
	}
	return true
}

func paginationFrom(r *http.Request) dto.PaginationParams {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	p := dto.PaginationParams{Page: page, PerPage: perPage}
	p.Normalize()
	return p
}

func idParam(w http.ResponseWriter, r *http.Request, what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respond.BadRequest(w, "Invalid "+what+" ID", nil)
		return uuid.Nil, false
	}
	return id, true
}
