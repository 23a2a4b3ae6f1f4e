package handlers_test

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/hugh/ash-erp/internal/api/dto"
	"github.com/hugh/ash-erp/internal/api/middleware"
	"github.com/hugh/ash-erp/internal/database/models"
	"github.com/hugh/ash-erp/internal/rbac"
	"github.com/hugh/ash-erp/internal/tenant"
	"github.com/hugh/ash-erp/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderHandler_Create(t *testing.T) {
	s := setupAPI(t)

	t.Run("assigns a number", func(t *testing.T) {
		body := map[string]interface{}{"client_name": "  Acme Corp ", "quantity": 12}
		rr := s.do(t, "POST", "/api/v1/orders", body, s.Token)

		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		var order dto.OrderDTO
		testutil.ParseJSONResponse(t, rr, &order)
		assert.True(t, strings.HasPrefix(order.Number, "ORD-"), order.Number)
		assert.Equal(t, "Acme Corp", order.ClientName)
		assert.Equal(t, string(models.OrderStatusIntake), order.Status)
		assert.Equal(t, s.User.ID.String(), order.CreatedBy)
		assert.Contains(t, s.notifier.Reasons(), "order created")
	})

	t.Run("keeps a given number", func(t *testing.T) {
		body := map[string]interface{}{"number": "PO-2024/17", "client_name": "Acme", "quantity": 1}
		rr := s.do(t, "POST", "/api/v1/orders", body, s.Token)

		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		var order dto.OrderDTO
		testutil.ParseJSONResponse(t, rr, &order)
		assert.Equal(t, "PO-2024/17", order.Number)
	})

	t.Run("validation", func(t *testing.T) {
		body := map[string]interface{}{"number": "bad number!", "client_name": "", "quantity": 0}
		rr := s.do(t, "POST", "/api/v1/orders", body, s.Token)

		require.Equal(t, http.StatusBadRequest, rr.Code)
		var resp dto.ErrorResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Contains(t, resp.Details, "number")
		assert.Contains(t, resp.Details, "client_name")
		assert.Contains(t, resp.Details, "quantity")
	})

	t.Run("worker may not create orders", func(t *testing.T) {
		_, token := s.userToken(t, rbac.RoleWorker)
		body := map[string]interface{}{"client_name": "Acme", "quantity": 1}
		rr := s.do(t, "POST", "/api/v1/orders", body, token)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}

func TestOrderHandler_MonthlyLimit(t *testing.T) {
	s := setupAPI(t)
	body := map[string]interface{}{"client_name": "Acme", "quantity": 1}

	// Last month's orders do not count
	testutil.CreateTestOrders(t, s.DB, s.Tenant.ID, 10, time.Now().AddDate(0, -2, 0))
	testutil.CreateTestOrders(t, s.DB, s.Tenant.ID, 8, time.Now())

	t.Run("allowed below the threshold", func(t *testing.T) {
		rr := s.do(t, "POST", "/api/v1/orders", body, s.Token)

		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		assert.Empty(t, rr.Header().Get(middleware.HeaderQuotaWarning))
	})

	t.Run("allowed with a warning near the limit", func(t *testing.T) {
		rr := s.do(t, "POST", "/api/v1/orders", body, s.Token)

		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		assert.Equal(t, "Monthly order limit almost reached (9/10)", rr.Header().Get(middleware.HeaderQuotaWarning))
	})

	t.Run("denied at the limit", func(t *testing.T) {
		rr := s.do(t, "POST", "/api/v1/orders", body, s.Token)

		require.Equal(t, http.StatusForbidden, rr.Code)
		var resp dto.ErrorResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, "quota_exceeded", resp.Code)
		assert.Equal(t, "orders", resp.Dimension)
		assert.Equal(t, "Monthly order limit reached (10/10)", resp.Error)

		var count int64
		s.DB.Model(&models.Order{}).Where("tenant_id = ?", s.Tenant.ID).Count(&count)
		assert.Equal(t, int64(20), count)
	})
}

func TestOrderHandler_List(t *testing.T) {
	s := setupAPI(t)
	testutil.CreateTestOrders(t, s.DB, s.Tenant.ID, 3, time.Now())
	var started models.Order
	require.NoError(t, s.DB.Where("tenant_id = ?", s.Tenant.ID).First(&started).Error)
	require.NoError(t, s.DB.Model(&started).Update("status", models.OrderStatusInProduction).Error)

	other := testutil.CreateTestTenant(t, s.DB, models.PlanFree)
	testutil.CreateTestOrders(t, s.DB, other.ID, 5, time.Now())

	t.Run("only the caller's tenant", func(t *testing.T) {
		rr := s.do(t, "GET", "/api/v1/orders", nil, s.Token)

		require.Equal(t, http.StatusOK, rr.Code)
		var resp dto.PaginatedResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, int64(3), resp.Total)
	})

	t.Run("status filter", func(t *testing.T) {
		rr := s.do(t, "GET", "/api/v1/orders?status=in_production", nil, s.Token)

		require.Equal(t, http.StatusOK, rr.Code)
		var resp dto.PaginatedResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, int64(1), resp.Total)
	})

	t.Run("header naming another tenant", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/orders", nil, s.Token)
		req.Header.Set(tenant.HeaderTenant, other.Slug)
		rr := s.serve(req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
		var resp dto.ErrorResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, "tenant_mismatch", resp.Code)
		assert.NotContains(t, rr.Body.String(), other.Slug)
	})

	t.Run("path naming another tenant", func(t *testing.T) {
		rr := s.do(t, "GET", "/t/"+other.Slug+"/api/v1/orders", nil, s.Token)
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("path naming the caller's tenant", func(t *testing.T) {
		rr := s.do(t, "GET", "/t/"+s.Tenant.Slug+"/api/v1/orders", nil, s.Token)
		assert.Equal(t, http.StatusOK, rr.Code)
	})
}
