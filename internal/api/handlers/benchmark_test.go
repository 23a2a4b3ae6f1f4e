package handlers_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/ash-erp/internal/api/dto"
	"github.com/hugh/ash-erp/internal/api/respond"
	"github.com/hugh/ash-erp/internal/database/models"
	"github.com/hugh/ash-erp/internal/limits"
	"github.com/hugh/ash-erp/internal/tenant"
)

func benchOrder() *models.Order {
	o := &models.Order{
		TenantID:   uuid.New(),
		Number:     "ORD-2024/0042",
		ClientName: "Northwind Embroidery",
		Status:     models.OrderStatusIntake,
		Quantity:   250,
		CreatedBy:  uuid.New(),
	}
	o.ID = uuid.New()
	o.CreatedAt = time.Now()
	return o
}

func BenchmarkJSONSerialization(b *testing.B) {
	b.Run("ErrorResponse", func(b *testing.B) {
		resp := dto.ErrorResponse{
			Error: "Validation failed",
			Details: map[string]string{
				"client_name": "Client name is required",
				"quantity":    "Quantity must be at least 1",
			},
		}
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_, _ = json.Marshal(resp)
		}
	})

	b.Run("QuotaErrorResponse", func(b *testing.B) {
		current, max := int64(10), int64(10)
		resp := dto.ErrorResponse{
			Error:     "Monthly order limit reached (10/10)",
			Code:      "quota_exceeded",
			Dimension: "orders",
			Current:   &current,
			Max:       &max,
		}
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_, _ = json.Marshal(resp)
		}
	})

	b.Run("PaginatedOrdersResponse", func(b *testing.B) {
		orders := make([]dto.OrderDTO, 50)
		for i := range orders {
			orders[i] = dto.NewOrderDTO(benchOrder())
		}
		resp := dto.PaginatedResponse{Data: orders, Total: 500, Page: 1, PerPage: 50, TotalPages: 10}
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_, _ = json.Marshal(resp)
		}
	})
}

func BenchmarkRequestParsing(b *testing.B) {
	b.Run("LoginRequest", func(b *testing.B) {
		body := []byte(`{"email":"owner@northwind.test","password":"Str0ng!Passw0rd"}`)
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			var req dto.LoginRequest
			_ = json.NewDecoder(bytes.NewReader(body)).Decode(&req)
		}
	})

	b.Run("CreateOrderRequest", func(b *testing.B) {
		body := []byte(`{"number":"ORD-1","client_name":"Acme","quantity":12}`)
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			var req dto.CreateOrderRequest
			_ = json.Unmarshal(body, &req)
		}
	})
}

func BenchmarkRequestValidation(b *testing.B) {
	b.Run("CreateOrderValid", func(b *testing.B) {
		req := dto.CreateOrderRequest{Number: "ORD-1", ClientName: "Acme", Quantity: 12}
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_ = req.Validate()
		}
	})

	b.Run("CreateUserInvalid", func(b *testing.B) {
		req := dto.CreateUserRequest{Email: "not-an-email", Password: "short"}
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_ = req.Validate()
		}
	})

	b.Run("CreateTenantValid", func(b *testing.B) {
		req := dto.CreateTenantRequest{
			Name:          "Northwind Embroidery",
			Slug:          "northwind",
			PlanTier:      "basic",
			AdminEmail:    "owner@northwind.test",
			AdminPassword: "Str0ng!Passw0rd",
		}
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_ = req.Validate()
		}
	})
}

func BenchmarkPaginationParams(b *testing.B) {
	b.Run("Normalize", func(b *testing.B) {
		b.ReportAllocs()
		for i := 0; i < b.N; i++ {
			p := dto.PaginationParams{Page: 0, PerPage: 0}
			p.Normalize()
		}
	})

	b.Run("TotalPages", func(b *testing.B) {
		p := dto.PaginationParams{Page: 5, PerPage: 20}
		p.Normalize()
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_ = p.TotalPages(1234)
		}
	})
}

func BenchmarkModelConversion(b *testing.B) {
	b.Run("OrderToDTO", func(b *testing.B) {
		o := benchOrder()
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_ = dto.NewOrderDTO(o)
		}
	})

	b.Run("TenantToDTO", func(b *testing.B) {
		t := &models.Tenant{Name: "Northwind", Slug: "northwind", PlanTier: models.PlanBasic, Timezone: "UTC", IsActive: true}
		t.ID = uuid.New()
		b.ReportAllocs()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			_ = dto.NewTenantDTO(t)
		}
	})
}

func BenchmarkErrorStatus(b *testing.B) {
	errs := []error{
		fmt.Errorf("resolve: %w", tenant.ErrTenantMismatch),
		&limits.QuotaExceededError{Dimension: limits.DimensionOrders, Current: 10, Max: 10},
		tenant.ErrNoTenantContext,
		fmt.Errorf("saving order: %w", errConnReset),
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = respond.Status(errs[i%len(errs)], true)
	}
}

var errConnReset = errors.New("connection reset")

func BenchmarkWriteJSON(b *testing.B) {
	orders := make([]dto.OrderDTO, 100)
	for i := range orders {
		orders[i] = dto.NewOrderDTO(benchOrder())
	}
	resp := dto.PaginatedResponse{Data: orders, Total: 100, Page: 1, PerPage: 100, TotalPages: 1}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		w := httptest.NewRecorder()
		respond.JSON(w, http.StatusOK, resp)
	}
}

func BenchmarkParallelRequestParsing(b *testing.B) {
	body := `{"email":"owner@northwind.test","password":"Str0ng!Passw0rd"}`
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			var req dto.LoginRequest
			_ = json.NewDecoder(strings.NewReader(body)).Decode(&req)
		}
	})
}
