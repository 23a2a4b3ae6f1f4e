package models

import "github.com/google/uuid"

// UsageAlert records that a tenant crossed the warning threshold on one
// dimension during a period (YYYY-MM).
type UsageAlert struct {
	Base
	TenantID   uuid.UUID `gorm:"type:uuid;index;not null" json:"tenant_id"`
	Dimension  string    `gorm:"not null" json:"dimension"`
	Period     string    `gorm:"not null" json:"period"`
	Percentage float64   `json:"percentage"`
	Message    string    `json:"message"`

	// Deduplication hash of tenant, dimension and period
	Hash string `gorm:"uniqueIndex" json:"-"`
}

func (UsageAlert) TableName() string {
	return "usage_alerts"
}
