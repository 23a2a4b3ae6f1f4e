package handlers_test

import (
	"net/http"
	"testing"

	"github.com/hugh/ash-erp/internal/api/dto"
	"github.com/hugh/ash-erp/internal/database/models"
	"github.com/hugh/ash-erp/internal/rbac"
	"github.com/hugh/ash-erp/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUserBody(email, role string) map[string]string {
	return map[string]string{
		"email":    email,
		"name":     "New Hire",
		"password": "Str0ng!Passw0rd",
		"role":     role,
	}
}

func TestUserHandler_Create(t *testing.T) {
	s := setupAPI(t)

	t.Run("creates a worker by default", func(t *testing.T) {
		rr := s.do(t, "POST", "/api/v1/users", newUserBody("Hire@Example.com", ""), s.Token)

		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		var user dto.UserDTO
		testutil.ParseJSONResponse(t, rr, &user)
		assert.Equal(t, "hire@example.com", user.Email)
		assert.Equal(t, "worker", user.Role)
		assert.Equal(t, s.Tenant.ID.String(), user.TenantID)
		assert.Equal(t, s.Tenant.Slug, user.TenantSlug)
		assert.Contains(t, s.notifier.Reasons(), "user created")
	})

	t.Run("normalizes the role name", func(t *testing.T) {
		rr := s.do(t, "POST", "/api/v1/users", newUserBody("hr@example.com", "HR Manager"), s.Token)

		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		var user dto.UserDTO
		testutil.ParseJSONResponse(t, rr, &user)
		assert.Equal(t, "hr_manager", user.Role)
	})

	t.Run("duplicate email", func(t *testing.T) {
		rr := s.do(t, "POST", "/api/v1/users", newUserBody("hire@example.com", ""), s.Token)
		assert.Equal(t, http.StatusConflict, rr.Code)
	})

	t.Run("email held by a deleted user", func(t *testing.T) {
		gone := testutil.CreateTestUser(t, s.DB, s.Tenant, "worker")
		require.NoError(t, s.DB.Delete(gone).Error)

		rr := s.do(t, "POST", "/api/v1/users", newUserBody(gone.Email, ""), s.Token)

		require.Equal(t, http.StatusConflict, rr.Code, rr.Body.String())
		var resp dto.ErrorResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, "conflict", resp.Code)
	})

	t.Run("weak password", func(t *testing.T) {
		body := newUserBody("weak@example.com", "")
		body["password"] = "password"
		rr := s.do(t, "POST", "/api/v1/users", body, s.Token)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		var resp dto.ErrorResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Contains(t, resp.Details, "password")
	})

	t.Run("unknown role", func(t *testing.T) {
		rr := s.do(t, "POST", "/api/v1/users", newUserBody("x@example.com", "janitor"), s.Token)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("admin cannot grant super admin", func(t *testing.T) {
		rr := s.do(t, "POST", "/api/v1/users", newUserBody("root@example.com", "super_admin"), s.Token)

		assert.Equal(t, http.StatusForbidden, rr.Code)
		var resp dto.ErrorResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, "permission_denied", resp.Code)
	})

	t.Run("worker may not create users", func(t *testing.T) {
		_, token := s.userToken(t, rbac.RoleWorker)
		rr := s.do(t, "POST", "/api/v1/users", newUserBody("nope@example.com", ""), token)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}

func TestUserHandler_CreateRespectsSeatLimit(t *testing.T) {
	s := setupAPI(t)
	// The admin holds one of the five free seats
	testutil.CreateTestUsers(t, s.DB, s.Tenant.ID, 4, true)

	rr := s.do(t, "POST", "/api/v1/users", newUserBody("sixth@example.com", ""), s.Token)

	require.Equal(t, http.StatusForbidden, rr.Code, rr.Body.String())
	var resp dto.ErrorResponse
	testutil.ParseJSONResponse(t, rr, &resp)
	assert.Equal(t, "quota_exceeded", resp.Code)
	assert.Equal(t, "users", resp.Dimension)
	require.NotNil(t, resp.Current)
	require.NotNil(t, resp.Max)
	assert.Equal(t, int64(5), *resp.Current)
	assert.Equal(t, int64(5), *resp.Max)

	var count int64
	s.DB.Model(&models.User{}).Where("email = ?", "sixth@example.com").Count(&count)
	assert.Zero(t, count)

	t.Run("inactive users free their seat", func(t *testing.T) {
		var worker models.User
		require.NoError(t, s.DB.Where("tenant_id = ? AND role = ?", s.Tenant.ID, "worker").First(&worker).Error)
		require.NoError(t, s.DB.Model(&worker).Update("is_active", false).Error)

		rr := s.do(t, "POST", "/api/v1/users", newUserBody("sixth@example.com", ""), s.Token)
		assert.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	})
}

func TestUserHandler_List(t *testing.T) {
	s := setupAPI(t)
	testutil.CreateTestUsers(t, s.DB, s.Tenant.ID, 2, true)
	testutil.CreateTestUsers(t, s.DB, s.Tenant.ID, 1, false)

	other := testutil.CreateTestTenant(t, s.DB, models.PlanFree)
	testutil.CreateTestUsers(t, s.DB, other.ID, 3, true)

	t.Run("only the caller's tenant", func(t *testing.T) {
		rr := s.do(t, "GET", "/api/v1/users", nil, s.Token)

		require.Equal(t, http.StatusOK, rr.Code)
		var resp dto.PaginatedResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, int64(4), resp.Total)
	})

	t.Run("active filter", func(t *testing.T) {
		rr := s.do(t, "GET", "/api/v1/users?active=false", nil, s.Token)

		require.Equal(t, http.StatusOK, rr.Code)
		var resp dto.PaginatedResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, int64(1), resp.Total)
	})

	t.Run("pagination", func(t *testing.T) {
		rr := s.do(t, "GET", "/api/v1/users?page=2&per_page=3", nil, s.Token)

		require.Equal(t, http.StatusOK, rr.Code)
		var resp dto.PaginatedResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, 2, resp.Page)
		assert.Equal(t, 2, resp.TotalPages)
		assert.Len(t, resp.Data, 1)
	})
}

func TestUserHandler_UpdateRole(t *testing.T) {
	s := setupAPI(t)
	worker, _ := s.userToken(t, rbac.RoleWorker)

	t.Run("promotes a user", func(t *testing.T) {
		rr := s.do(t, "PUT", "/api/v1/users/"+worker.ID.String()+"/role", map[string]string{"role": "manager"}, s.Token)

		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var stored models.User
		require.NoError(t, s.DB.First(&stored, "id = ?", worker.ID).Error)
		assert.Equal(t, "manager", stored.Role)
	})

	t.Run("unknown role", func(t *testing.T) {
		rr := s.do(t, "PUT", "/api/v1/users/"+worker.ID.String()+"/role", map[string]string{"role": "janitor"}, s.Token)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("own role", func(t *testing.T) {
		rr := s.do(t, "PUT", "/api/v1/users/"+s.User.ID.String()+"/role", map[string]string{"role": "worker"}, s.Token)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("user of another tenant", func(t *testing.T) {
		other := testutil.CreateTestTenant(t, s.DB, models.PlanFree)
		stranger := testutil.CreateTestUser(t, s.DB, other, "worker")

		rr := s.do(t, "PUT", "/api/v1/users/"+stranger.ID.String()+"/role", map[string]string{"role": "manager"}, s.Token)
		assert.Equal(t, http.StatusNotFound, rr.Code)

		var stored models.User
		require.NoError(t, s.DB.First(&stored, "id = ?", stranger.ID).Error)
		assert.Equal(t, "worker", stored.Role)
	})

	t.Run("invalid id", func(t *testing.T) {
		rr := s.do(t, "PUT", "/api/v1/users/not-a-uuid/role", map[string]string{"role": "manager"}, s.Token)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestUserHandler_Deactivate(t *testing.T) {
	s := setupAPI(t)
	worker, _ := s.userToken(t, rbac.RoleWorker)

	t.Run("deactivates", func(t *testing.T) {
		rr := s.do(t, "DELETE", "/api/v1/users/"+worker.ID.String(), nil, s.Token)

		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var stored models.User
		require.NoError(t, s.DB.First(&stored, "id = ?", worker.ID).Error)
		assert.False(t, stored.IsActive)
		assert.Contains(t, s.notifier.Reasons(), "user deactivated")
	})

	t.Run("self", func(t *testing.T) {
		rr := s.do(t, "DELETE", "/api/v1/users/"+s.User.ID.String(), nil, s.Token)
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("user of another tenant", func(t *testing.T) {
		other := testutil.CreateTestTenant(t, s.DB, models.PlanFree)
		stranger := testutil.CreateTestUser(t, s.DB, other, "worker")

		rr := s.do(t, "DELETE", "/api/v1/users/"+stranger.ID.String(), nil, s.Token)
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})
}
