package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/hugh/ash-erp/internal/api/respond"
	"github.com/hugh/ash-erp/internal/auth"
	"github.com/hugh/ash-erp/internal/gate"
	"github.com/hugh/ash-erp/internal/limits"
	"github.com/hugh/ash-erp/internal/rbac"
	"github.com/hugh/ash-erp/internal/tenant"
)

// HeaderQuotaWarning carries the warning of an admitted operation that is
// close to its plan limit.
const HeaderQuotaWarning = "X-Quota-Warning"

// Rule is what a route needs before its handler may run.
type Rule struct {
	Resource  rbac.Resource
	Action    rbac.Action
	Operation limits.Operation
	// UploadSize reports the bytes an UPLOAD_FILE request will add. It may
	// read the body, so it only runs once the request is authorized.
	UploadSize func(r *http.Request) (int64, error)
}

// Admitter is satisfied by *gate.Gate.
type Admitter interface {
	Admit(ctx context.Context, req gate.Request) (*gate.Admission, error)
}

type admissionKey struct{}

// Guard runs the admission gate for rule and only calls next when every
// stage passed. The resolved tenant is stored with tenant.WithContext. Must
// run after Auth.
func Guard(g Admitter, rule Rule, rs *respond.Responder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := auth.PrincipalFrom(r.Context())
			principalTenant := uuid.Nil
			if principal != nil {
				principalTenant = principal.TenantID
			}

			req := gate.Request{
				Tenant:    tenant.RequestFromHTTP(r, principalTenant),
				Principal: principal,
				Resource:  rule.Resource,
				Action:    rule.Action,
				Operation: rule.Operation,
			}
			if rule.Operation == limits.OpUploadFile && rule.UploadSize != nil {
				req.UploadSize = func() (int64, error) { return rule.UploadSize(r) }
				// net/http only cleans up the form of the request it created,
				// not of the copies made by earlier middleware.
				defer func() {
					if r.MultipartForm != nil {
						_ = r.MultipartForm.RemoveAll()
					}
				}()
			}

			adm, err := g.Admit(r.Context(), req)
			if err != nil {
				rs.Error(w, r, err)
				return
			}

			if warning := adm.Warning(); warning != "" {
				w.Header().Set(HeaderQuotaWarning, warning)
			}

			ctx := tenant.WithContext(r.Context(), adm.Tenant)
			ctx = context.WithValue(ctx, admissionKey{}, adm)
			sw := &responseWriter{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(sw, r.WithContext(ctx))

			if sw.status < http.StatusBadRequest {
				adm.Executed()
			}
		})
	}
}

// AdmissionFrom returns the admission Guard stored, or nil.
func AdmissionFrom(ctx context.Context) *gate.Admission {
	adm, _ := ctx.Value(admissionKey{}).(*gate.Admission)
	return adm
}
