package dto

import (
	"strings"
	"time"

	"github.com/hugh/ash-erp/internal/api/validation"
	"github.com/hugh/ash-erp/internal/database/models"
)

type CreateOrderRequest struct {
	Number     string `json:"number"`
	ClientName string `json:"client_name"`
	Quantity   int    `json:"quantity"`
}

func (r CreateOrderRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Number != "" && !validation.IsValidOrderNumber(r.Number) {
		errors["number"] = "Order number may only contain letters, digits, dashes and slashes"
	}
	if strings.TrimSpace(r.ClientName) == "" {
		errors["client_name"] = "Client name is required"
	} else if len(r.ClientName) > 200 {
		errors["client_name"] = "Client name must be at most 200 characters"
	}
	if r.Quantity < 1 {
		errors["quantity"] = "Quantity must be at least 1"
	}

	return errors
}

type OrderDTO struct {
	ID         string `json:"id"`
	Number     string `json:"number"`
	ClientName string `json:"client_name"`
	Status     string `json:"status"`
	Quantity   int    `json:"quantity"`
	CreatedBy  string `json:"created_by"`
	CreatedAt  string `json:"created_at"`
}

func NewOrderDTO(o *models.Order) OrderDTO {
	return OrderDTO{
		ID:         o.ID.String(),
		Number:     o.Number,
		ClientName: o.ClientName,
		Status:     string(o.Status),
		Quantity:   o.Quantity,
		CreatedBy:  o.CreatedBy.String(),
		CreatedAt:  o.CreatedAt.Format(time.RFC3339),
	}
}
