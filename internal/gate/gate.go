// Package gate runs the per-request admission sequence for tenant-scoped
// operations: resolve the tenant, check the role, check the quota. Each
// stage only runs once the previous one has passed.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hugh/ash-erp/internal/auth"
	"github.com/hugh/ash-erp/internal/limits"
	"github.com/hugh/ash-erp/internal/rbac"
	"github.com/hugh/ash-erp/internal/tenant"
)

// Stage is a point in the admission sequence. A rejection carries the stage
// that was last reached.
type Stage int

const (
	Unauthenticated Stage = iota
	TenantResolved
	Authorized
	QuotaChecked
	Executed
)

func (s Stage) String() string {
	switch s {
	case Unauthenticated:
		return "unauthenticated"
	case TenantResolved:
		return "tenant_resolved"
	case Authorized:
		return "authorized"
	case QuotaChecked:
		return "quota_checked"
	case Executed:
		return "executed"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

var (
	ErrUnauthenticated  = errors.New("authentication required")
	ErrPermissionDenied = errors.New("permission denied")
)

// Rejection is returned by Admit when a stage fails.
type Rejection struct {
	Stage Stage
	Err   error
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("rejected at %s: %v", r.Stage, r.Err)
}

func (r *Rejection) Unwrap() error {
	return r.Err
}

// Request describes the operation a caller wants to perform.
type Request struct {
	Tenant     tenant.Request
	Principal  *auth.Principal
	Resource   rbac.Resource
	Action     rbac.Action
	Operation  limits.Operation // empty when the operation is not quota-bounded
	// UploadSize is called once the request is authorized and before the
	// quota stage. Nil means zero bytes.
	UploadSize func() (int64, error)
}

// Admission is a request that passed every stage.
type Admission struct {
	Tenant    *tenant.Context
	Principal *auth.Principal
	Decision  rbac.Decision
	Quota     *limits.Decision
	stage     Stage
}

func (a *Admission) Stage() Stage {
	return a.stage
}

// Executed marks the terminal success stage once the handler has done its
// work.
func (a *Admission) Executed() {
	a.stage = Executed
}

// Warning is the quota warning of the admitted operation, if any.
func (a *Admission) Warning() string {
	if a.Quota == nil {
		return ""
	}
	return a.Quota.Warning()
}

// Resolver resolves the tenant of a request.
type Resolver interface {
	Resolve(ctx context.Context, req tenant.Request) (*tenant.Context, error)
}

// QuotaAuthorizer decides quota-bounded operations.
type QuotaAuthorizer interface {
	AuthorizeOperation(ctx context.Context, tenantID uuid.UUID, op limits.Operation, sizeBytes int64) (limits.Decision, error)
}

// Recorder observes admission outcomes.
type Recorder interface {
	Admitted(resource rbac.Resource, action rbac.Action)
	Rejected(stage Stage, reason string)
}

type Gate struct {
	resolver Resolver
	quota    QuotaAuthorizer
	recorder Recorder
	logger   *slog.Logger
}

func New(resolver Resolver, quota QuotaAuthorizer, recorder Recorder, logger *slog.Logger) *Gate {
	return &Gate{resolver: resolver, quota: quota, recorder: recorder, logger: logger}
}

// Admit runs the stages in order and stops at the first failure. A tenant
// mismatch is logged as a security event.
func (g *Gate) Admit(ctx context.Context, req Request) (*Admission, error) {
	adm := &Admission{Principal: req.Principal, stage: Unauthenticated}
	if req.Principal == nil {
		return nil, g.reject(adm.stage, ErrUnauthenticated)
	}
	req.Tenant.PrincipalTenantID = req.Principal.TenantID

	tc, err := g.resolver.Resolve(ctx, req.Tenant)
	if err != nil {
		if errors.Is(err, tenant.ErrTenantMismatch) {
			g.securityEvent(req, err)
		}
		return nil, g.reject(adm.stage, err)
	}
	adm.Tenant = tc
	adm.stage = TenantResolved

	adm.Decision = rbac.Authorize(req.Principal.Role, string(req.Resource), string(req.Action))
	if !adm.Decision.Allowed {
		g.logger.Info("permission denied",
			"tenant_id", tc.TenantID,
			"user_id", req.Principal.UserID,
			"role", req.Principal.Role,
			"permission", adm.Decision.Permission,
			"reason", adm.Decision.Reason,
		)
		return nil, g.reject(adm.stage, fmt.Errorf("%w: %s on %s", ErrPermissionDenied, req.Principal.Role, adm.Decision.Permission))
	}
	adm.stage = Authorized

	if req.Operation != "" {
		var size int64
		if req.UploadSize != nil {
			if size, err = req.UploadSize(); err != nil {
				return nil, g.reject(adm.stage, err)
			}
		}
		d, err := g.quota.AuthorizeOperation(ctx, tc.TenantID, req.Operation, size)
		if err != nil {
			return nil, g.reject(adm.stage, err)
		}
		if !d.Allowed() {
			if denial := d.Denial(); denial != nil {
				return nil, g.reject(adm.stage, denial)
			}
			return nil, g.reject(adm.stage, limits.ErrQuotaDenied)
		}
		adm.Quota = &d
	}
	adm.stage = QuotaChecked

	if g.recorder != nil {
		g.recorder.Admitted(req.Resource, req.Action)
	}
	return adm, nil
}

func (g *Gate) reject(stage Stage, err error) error {
	if g.recorder != nil {
		g.recorder.Rejected(stage, reason(err))
	}
	return &Rejection{Stage: stage, Err: err}
}

func (g *Gate) securityEvent(req Request, err error) {
	g.logger.Warn("security event",
		"event", "tenant_mismatch",
		"user_id", req.Principal.UserID,
		"principal_tenant_id", req.Principal.TenantID,
		"header", req.Tenant.Header,
		"path_token", req.Tenant.PathToken,
		"host", req.Tenant.Host,
		"error", err,
	)
}

// reason maps an error to a low-cardinality label.
func reason(err error) string {
	var quota *limits.QuotaExceededError
	switch {
	case errors.As(err, &quota):
		return "quota_" + string(quota.Dimension)
	case errors.Is(err, tenant.ErrTenantMismatch):
		return "tenant_mismatch"
	case errors.Is(err, tenant.ErrNoTenantContext):
		return "no_tenant"
	case errors.Is(err, tenant.ErrTenantNotFound):
		return "tenant_not_found"
	case errors.Is(err, tenant.ErrTenantInactive):
		return "tenant_inactive"
	case errors.Is(err, ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	}
	return "error"
}
