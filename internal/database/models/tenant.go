package models

type PlanTier string

const (
	PlanFree         PlanTier = "free"
	PlanBasic        PlanTier = "basic"
	PlanProfessional PlanTier = "professional"
	PlanEnterprise   PlanTier = "enterprise"
)

func (p PlanTier) Valid() bool {
	switch p {
	case PlanFree, PlanBasic, PlanProfessional, PlanEnterprise:
		return true
	}
	return false
}

// Tenant is a customer workspace. Every business row carries its ID.
type Tenant struct {
	Base
	Name     string   `gorm:"not null" json:"name"`
	Slug     string   `gorm:"uniqueIndex;not null" json:"slug"`
	IsActive bool     `gorm:"default:true;index" json:"is_active"`
	PlanTier PlanTier `gorm:"not null;default:'free'" json:"plan_tier"`
	Timezone string   `json:"timezone,omitempty"` // IANA name, empty means UTC

	// Per-tenant overrides of the plan maxima; nil falls back to the plan
	MaxUsersOverride     *int     `json:"max_users_override,omitempty"`
	MaxOrdersOverride    *int     `json:"max_orders_override,omitempty"`
	MaxStorageGBOverride *float64 `json:"max_storage_gb_override,omitempty"`

	SuspendedReason string `json:"suspended_reason,omitempty"`

	// Relationships
	Users []User `gorm:"foreignKey:TenantID" json:"-"`
}

func (Tenant) TableName() string {
	return "tenants"
}
