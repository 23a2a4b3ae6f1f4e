// Package respond writes JSON bodies and turns domain errors into HTTP
// statuses. Handlers and middleware both go through it so every error has
// the same shape.
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hugh/ash-erp/internal/api/dto"
	"github.com/hugh/ash-erp/internal/auth"
	"github.com/hugh/ash-erp/internal/gate"
	"github.com/hugh/ash-erp/internal/limits"
	"github.com/hugh/ash-erp/internal/rbac"
	"github.com/hugh/ash-erp/internal/storage"
	"github.com/hugh/ash-erp/internal/tenant"
)

func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// BadRequest writes a 400 with optional per-field details.
func BadRequest(w http.ResponseWriter, message string, details map[string]string) {
	JSON(w, http.StatusBadRequest, dto.ErrorResponse{
		Error:   message,
		Code:    "bad_request",
		Details: details,
	})
}

// HTTPError is an error that already knows its status, for failures that
// belong to the HTTP layer itself (oversized bodies, missing form parts).
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return e.Message
}

func NewError(status int, message string) *HTTPError {
	return &HTTPError{Status: status, Message: message}
}

type Responder struct {
	logger      *slog.Logger
	development bool
}

// New returns a Responder. In development, 500 bodies carry the error text.
func New(logger *slog.Logger, development bool) *Responder {
	return &Responder{logger: logger, development: development}
}

// Error writes err with the status Status picks for it.
func (rs *Responder) Error(w http.ResponseWriter, r *http.Request, err error) {
	authenticated := auth.PrincipalFrom(r.Context()) != nil
	status := Status(err, authenticated)

	body := dto.ErrorResponse{
		Error: publicMessage(err, status),
		Code:  code(err, status),
	}

	var quota *limits.QuotaExceededError
	if errors.As(err, &quota) {
		current, max := quota.Current, quota.Max
		body.Dimension = string(quota.Dimension)
		body.Current = &current
		body.Max = &max
		if quota.Message != "" {
			body.Error = quota.Message
		}
	}

	if status >= http.StatusInternalServerError {
		rs.logger.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"error", err,
		)
		if rs.development {
			body.Detail = err.Error()
		}
	}

	JSON(w, status, body)
}

// Status maps an error to its HTTP status. A missing tenant is the caller's
// fault before authentication (400) and an authentication problem after it
// (401).
func Status(err error, authenticated bool) int {
	var (
		quota   *limits.QuotaExceededError
		httpErr *HTTPError
	)
	switch {
	case errors.As(err, &httpErr):
		return httpErr.Status
	case errors.Is(err, gate.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, tenant.ErrNoTenantContext):
		if authenticated {
			return http.StatusUnauthorized
		}
		return http.StatusBadRequest
	case errors.Is(err, tenant.ErrTenantMismatch),
		errors.Is(err, tenant.ErrTenantInactive),
		errors.Is(err, gate.ErrPermissionDenied),
		errors.Is(err, limits.ErrQuotaDenied),
		errors.As(err, &quota):
		return http.StatusForbidden
	case errors.Is(err, tenant.ErrTenantNotFound),
		errors.Is(err, auth.ErrUserNotFound),
		errors.Is(err, rbac.ErrUserNotFound),
		errors.Is(err, storage.ErrObjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, rbac.ErrInvalidRole),
		errors.Is(err, limits.ErrUnknownOperation),
		errors.Is(err, limits.ErrInvalidSize),
		errors.Is(err, tenant.ErrInvalidSlug),
		errors.Is(err, tenant.ErrInvalidPlan),
		errors.Is(err, tenant.ErrInvalidTimezone),
		errors.Is(err, tenant.ErrConfirmationMismatch),
		errors.Is(err, tenant.ErrAdminRequired):
		return http.StatusBadRequest
	case errors.Is(err, tenant.ErrSlugTaken):
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func code(err error, status int) string {
	var quota *limits.QuotaExceededError
	switch {
	case errors.As(err, &quota), errors.Is(err, limits.ErrQuotaDenied):
		return "quota_exceeded"
	case errors.Is(err, tenant.ErrTenantMismatch):
		return "tenant_mismatch"
	case errors.Is(err, tenant.ErrTenantInactive):
		return "tenant_inactive"
	case errors.Is(err, tenant.ErrNoTenantContext):
		return "no_tenant_context"
	case errors.Is(err, gate.ErrPermissionDenied):
		return "permission_denied"
	}
	switch status {
	case http.StatusUnauthorized:
		return "unauthenticated"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusConflict:
		return "conflict"
	case http.StatusRequestEntityTooLarge:
		return "too_large"
	}
	return "internal_error"
}

// publicMessage hides internal errors. Mismatch details name other tenants,
// so only the sentinel text is returned.
func publicMessage(err error, status int) string {
	switch {
	case status >= http.StatusInternalServerError:
		return "Internal server error"
	case errors.Is(err, tenant.ErrTenantMismatch):
		return tenant.ErrTenantMismatch.Error()
	case errors.Is(err, gate.ErrPermissionDenied):
		return gate.ErrPermissionDenied.Error()
	}

	var rejection *gate.Rejection
	if errors.As(err, &rejection) {
		return rejection.Err.Error()
	}
	return err.Error()
}
