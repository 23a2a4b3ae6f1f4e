package models

import "github.com/google/uuid"

type OrderStatus string

const (
	OrderStatusIntake       OrderStatus = "INTAKE"
	OrderStatusInProduction OrderStatus = "IN_PRODUCTION"
	OrderStatusCompleted    OrderStatus = "COMPLETED"
	OrderStatusCancelled    OrderStatus = "CANCELLED"
)

type Order struct {
	Base
	TenantID   uuid.UUID   `gorm:"type:uuid;index;not null" json:"tenant_id"`
	Number     string      `gorm:"not null" json:"number"`
	ClientName string      `json:"client_name"`
	Status     OrderStatus `gorm:"not null;default:'INTAKE'" json:"status"`
	Quantity   int         `json:"quantity"`
	CreatedBy  uuid.UUID   `gorm:"type:uuid" json:"created_by"`
}

func (Order) TableName() string {
	return "orders"
}
