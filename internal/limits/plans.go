package limits

import (
	"fmt"

	"github.com/hugh/ash-erp/internal/database/models"
	"github.com/hugh/ash-erp/pkg/config"
)

// Unlimited disables a maximum.
const Unlimited = -1

// Plan holds the maxima a tenant is held to.
type Plan struct {
	MaxUsers          int
	MaxOrdersPerMonth int
	MaxStorageGB      float64
}

// Plans is the catalog of plan tiers.
type Plans map[models.PlanTier]Plan

func PlansFromConfig(cfg map[string]config.PlanLimits) Plans {
	plans := make(Plans, len(cfg))
	for tier, l := range cfg {
		plans[models.PlanTier(tier)] = Plan{
			MaxUsers:          l.MaxUsers,
			MaxOrdersPerMonth: l.MaxOrdersPerMonth,
			MaxStorageGB:      l.MaxStorageGB,
		}
	}
	return plans
}

// For returns the effective plan of t, with the tenant's overrides applied.
func (p Plans) For(t *models.Tenant) (Plan, error) {
	plan, ok := p[t.PlanTier]
	if !ok {
		return Plan{}, fmt.Errorf("%w: %q", ErrUnknownPlan, t.PlanTier)
	}
	if t.MaxUsersOverride != nil {
		plan.MaxUsers = *t.MaxUsersOverride
	}
	if t.MaxOrdersOverride != nil {
		plan.MaxOrdersPerMonth = *t.MaxOrdersOverride
	}
	if t.MaxStorageGBOverride != nil {
		plan.MaxStorageGB = *t.MaxStorageGBOverride
	}
	return plan, nil
}

// MaxStorageBytes converts the storage maximum using decimal gigabytes.
func (p Plan) MaxStorageBytes() int64 {
	if p.MaxStorageGB < 0 {
		return Unlimited
	}
	return int64(p.MaxStorageGB * 1e9)
}
