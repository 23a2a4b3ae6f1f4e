package models

import "github.com/google/uuid"

type User struct {
	Base
	TenantID     uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_users_tenant_email" json:"tenant_id"`
	Email        string    `gorm:"not null;uniqueIndex:idx_users_tenant_email" json:"email"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Name         string    `json:"name"`
	Role         string    `gorm:"not null;default:'worker'" json:"role"`
	IsActive     bool      `gorm:"default:true;index" json:"is_active"`

	// Relationships
	Tenant *Tenant `gorm:"foreignKey:TenantID" json:"tenant,omitempty"`
}

func (User) TableName() string {
	return "users"
}
