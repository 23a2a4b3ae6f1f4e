package limits

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/ash-erp/internal/database/models"
	"github.com/hugh/ash-erp/internal/tenant"
)

// DefaultWarningThreshold is the utilization at which a dimension warns.
const DefaultWarningThreshold = 0.9

var ErrInvalidSize = errors.New("upload size must not be negative")

// Operation is a quota-bounded mutation.
type Operation string

const (
	OpCreateUser  Operation = "CREATE_USER"
	OpCreateOrder Operation = "CREATE_ORDER"
	OpUploadFile  Operation = "UPLOAD_FILE"
)

// ParseOperation accepts the operation name in any case.
func ParseOperation(s string) (Operation, error) {
	op := Operation(strings.ToUpper(strings.TrimSpace(s)))
	switch op {
	case OpCreateUser, OpCreateOrder, OpUploadFile:
		return op, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOperation, s)
}

func (o Operation) Dimension() Dimension {
	switch o {
	case OpCreateUser:
		return DimensionUsers
	case OpCreateOrder:
		return DimensionOrders
	case OpUploadFile:
		return DimensionStorage
	}
	return ""
}

// Decision is the outcome of AuthorizeOperation. The zero value denies.
type Decision struct {
	op      Operation
	allowed bool
	denial  *QuotaExceededError
	warning string
}

func (d Decision) Operation() Operation { return d.op }

func (d Decision) Allowed() bool { return d.allowed }

// Denial is non-nil exactly when a quota denied the operation.
func (d Decision) Denial() *QuotaExceededError { return d.denial }

// Warning is set when the operation is allowed but its dimension is at or
// over the warning threshold.
func (d Decision) Warning() string { return d.warning }

type UsersLimit struct {
	Current   int64 `json:"current"`
	Max       int   `json:"max"`
	Available int64 `json:"available"`
}

type OrdersLimit struct {
	CurrentMonth int64 `json:"current_month"`
	Max          int   `json:"max"`
	Available    int64 `json:"available"`
}

type StorageLimit struct {
	UsedGB      float64 `json:"used_gb"`
	MaxGB       float64 `json:"max_gb"`
	AvailableGB float64 `json:"available_gb"`
	UsedBytes   int64   `json:"used_bytes"`
}

type Limits struct {
	Users   UsersLimit   `json:"users"`
	Orders  OrdersLimit  `json:"orders"`
	Storage StorageLimit `json:"storage"`
}

type UsagePercentages struct {
	Users   float64 `json:"users"`
	Orders  float64 `json:"orders"`
	Storage float64 `json:"storage"`
}

// Report is the usage of a tenant against its plan.
type Report struct {
	TenantID         uuid.UUID        `json:"tenant_id"`
	PlanTier         models.PlanTier  `json:"plan_tier"`
	Period           string           `json:"period"`
	Limits           Limits           `json:"limits"`
	UsagePercentages UsagePercentages `json:"usage_percentages"`
	Warnings         []string         `json:"warnings"`
	NeedsUpgrade     bool             `json:"needs_upgrade"`

	// Warned lists the dimensions behind Warnings, in the same order.
	Warned []Dimension `json:"-"`
}

// Percentage returns the utilization of one dimension.
func (r *Report) Percentage(dim Dimension) float64 {
	switch dim {
	case DimensionUsers:
		return r.UsagePercentages.Users
	case DimensionOrders:
		return r.UsagePercentages.Orders
	case DimensionStorage:
		return r.UsagePercentages.Storage
	}
	return 0
}

// invalidator is implemented by counters that cache.
type invalidator interface {
	Invalidate(ctx context.Context, tenantID uuid.UUID)
}

type Enforcer struct {
	tenants   tenant.Lookup
	counter   Counter
	plans     Plans
	threshold float64
	now       func() time.Time
	logger    *slog.Logger
}

func NewEnforcer(tenants tenant.Lookup, counter Counter, plans Plans, threshold float64, logger *slog.Logger) *Enforcer {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultWarningThreshold
	}
	return &Enforcer{
		tenants:   tenants,
		counter:   counter,
		plans:     plans,
		threshold: threshold,
		now:       time.Now,
		logger:    logger,
	}
}

// CheckLimits reads all three dimensions. Warnings never deny anything.
func (e *Enforcer) CheckLimits(ctx context.Context, tenantID uuid.UUID) (*Report, error) {
	t, plan, err := e.load(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	loc := tenant.LoadLocation(t.Timezone)

	seats, err := e.counter.SeatsUsed(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	orders, err := e.counter.OrdersThisMonth(ctx, tenantID, loc)
	if err != nil {
		return nil, err
	}
	storage, err := e.counter.StorageUsedBytes(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	maxBytes := plan.MaxStorageBytes()
	report := &Report{
		TenantID: tenantID,
		PlanTier: t.PlanTier,
		Period:   Period(e.now(), loc),
		Limits: Limits{
			Users: UsersLimit{
				Current:   seats,
				Max:       plan.MaxUsers,
				Available: available(seats, int64(plan.MaxUsers)),
			},
			Orders: OrdersLimit{
				CurrentMonth: orders,
				Max:          plan.MaxOrdersPerMonth,
				Available:    available(orders, int64(plan.MaxOrdersPerMonth)),
			},
			Storage: StorageLimit{
				UsedGB:      round(float64(storage)/1e9, 3),
				MaxGB:       plan.MaxStorageGB,
				AvailableGB: availableGB(storage, maxBytes),
				UsedBytes:   storage,
			},
		},
		UsagePercentages: UsagePercentages{
			Users:   percent(seats, int64(plan.MaxUsers)),
			Orders:  percent(orders, int64(plan.MaxOrdersPerMonth)),
			Storage: percent(storage, maxBytes),
		},
		Warnings: []string{},
	}

	usage := []struct {
		dim            Dimension
		current, limit int64
	}{
		{DimensionUsers, seats, int64(plan.MaxUsers)},
		{DimensionOrders, orders, int64(plan.MaxOrdersPerMonth)},
		{DimensionStorage, storage, maxBytes},
	}
	for _, u := range usage {
		if w := e.warning(u.dim, u.current, u.limit); w != "" {
			report.Warnings = append(report.Warnings, w)
			report.Warned = append(report.Warned, u.dim)
		}
	}
	report.NeedsUpgrade = len(report.Warnings) > 0

	return report, nil
}

// AuthorizeOperation decides whether one more op fits the tenant's plan.
// sizeBytes only matters for uploads. On error the returned Decision denies.
func (e *Enforcer) AuthorizeOperation(ctx context.Context, tenantID uuid.UUID, op Operation, sizeBytes int64) (Decision, error) {
	if op.Dimension() == "" {
		return Decision{}, fmt.Errorf("%w: %q", ErrUnknownOperation, op)
	}
	if op == OpUploadFile && sizeBytes < 0 {
		return Decision{}, ErrInvalidSize
	}

	t, plan, err := e.load(ctx, tenantID)
	if err != nil {
		return Decision{}, err
	}

	var (
		current, limit, requested int64
		message                   string
	)
	switch op {
	case OpCreateUser:
		current, err = e.counter.SeatsUsed(ctx, tenantID)
		limit, requested = int64(plan.MaxUsers), 1
		message = fmt.Sprintf("User limit reached (%d/%d)", current, limit)
	case OpCreateOrder:
		current, err = e.counter.OrdersThisMonth(ctx, tenantID, tenant.LoadLocation(t.Timezone))
		limit, requested = int64(plan.MaxOrdersPerMonth), 1
		message = fmt.Sprintf("Monthly order limit reached (%d/%d)", current, limit)
	case OpUploadFile:
		current, err = e.counter.StorageUsedBytes(ctx, tenantID)
		limit, requested = plan.MaxStorageBytes(), sizeBytes
		message = fmt.Sprintf("Storage quota exceeded (%.2fGB/%.2fGB used)", float64(current)/1e9, plan.MaxStorageGB)
	}
	if err != nil {
		return Decision{}, err
	}

	d := Decision{op: op}
	// current is never negative, so limit-current cannot overflow
	if !unlimited(limit) && requested > limit-current {
		d.denial = &QuotaExceededError{
			Dimension: op.Dimension(),
			Current:   current,
			Max:       limit,
			Message:   message,
		}
		e.logger.Info("quota denied",
			"tenant_id", tenantID,
			"operation", op,
			"current", current,
			"max", limit,
		)
		return d, nil
	}

	d.allowed = true
	d.warning = e.warning(op.Dimension(), current, limit)
	return d, nil
}

// Enforce is AuthorizeOperation for callers that only need an error: a
// denial comes back as *QuotaExceededError.
func (e *Enforcer) Enforce(ctx context.Context, tenantID uuid.UUID, op Operation, sizeBytes int64) error {
	d, err := e.AuthorizeOperation(ctx, tenantID, op, sizeBytes)
	if err != nil {
		return err
	}
	if !d.Allowed() {
		return d.Denial()
	}
	return nil
}

// UsageChanged drops cached usage after a write.
func (e *Enforcer) UsageChanged(ctx context.Context, tenantID uuid.UUID) {
	if inv, ok := e.counter.(invalidator); ok {
		inv.Invalidate(ctx, tenantID)
	}
}

func (e *Enforcer) load(ctx context.Context, tenantID uuid.UUID) (*models.Tenant, Plan, error) {
	t, err := e.tenants.ByID(ctx, tenantID)
	if err != nil {
		if errors.Is(err, tenant.ErrTenantNotFound) {
			return nil, Plan{}, err
		}
		return nil, Plan{}, fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}
	plan, err := e.plans.For(t)
	if err != nil {
		return nil, Plan{}, err
	}
	return t, plan, nil
}

func (e *Enforcer) warning(dim Dimension, current, limit int64) string {
	if unlimited(limit) {
		return ""
	}
	if limit > 0 && float64(current)/float64(limit) < e.threshold {
		return ""
	}
	switch dim {
	case DimensionUsers:
		return fmt.Sprintf("User limit almost reached (%d/%d)", current, limit)
	case DimensionOrders:
		return fmt.Sprintf("Monthly order limit almost reached (%d/%d)", current, limit)
	default:
		return fmt.Sprintf("Storage almost full (%.2fGB/%.2fGB)", float64(current)/1e9, float64(limit)/1e9)
	}
}

func unlimited(limit int64) bool {
	return limit < 0
}

// percent is 0 for unlimited dimensions and 100 for a zero maximum.
func percent(current, limit int64) float64 {
	switch {
	case unlimited(limit):
		return 0
	case limit == 0:
		return 100
	}
	return round(float64(current)/float64(limit)*100, 1)
}

func available(current, limit int64) int64 {
	if unlimited(limit) {
		return Unlimited
	}
	if current >= limit {
		return 0
	}
	return limit - current
}

func availableGB(usedBytes, maxBytes int64) float64 {
	if unlimited(maxBytes) {
		return Unlimited
	}
	return round(float64(available(usedBytes, maxBytes))/1e9, 3)
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
