package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/ash-erp/internal/auth"
	"github.com/hugh/ash-erp/internal/database"
	"github.com/hugh/ash-erp/internal/database/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB creates an in-memory SQLite database for testing
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	// A single connection keeps every query on the same in-memory database
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// CleanupTestDB closes the test database connection
func CleanupTestDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	if err != nil {
		t.Logf("warning: failed to get sql.DB: %v", err)
		return
	}
	sqlDB.Close()
}

// CreateTestTenant creates an active tenant on the given plan
func CreateTestTenant(t *testing.T, db *gorm.DB, plan models.PlanTier) *models.Tenant {
	t.Helper()

	tenant := &models.Tenant{
		Base: models.Base{
			ID: uuid.New(),
		},
		Name:     "Test Workspace",
		Slug:     "ws-" + uuid.New().String()[:8],
		IsActive: true,
		PlanTier: plan,
	}

	if err := db.Create(tenant).Error; err != nil {
		t.Fatalf("failed to create test tenant: %v", err)
	}

	return tenant
}

// CreateTestUser creates an active user with the given role
func CreateTestUser(t *testing.T, db *gorm.DB, tenant *models.Tenant, role string) *models.User {
	t.Helper()

	hash, err := auth.HashPassword("testpassword123")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Base: models.Base{
			ID: uuid.New(),
		},
		TenantID:     tenant.ID,
		Email:        "test-" + uuid.New().String()[:8] + "@example.com",
		PasswordHash: hash,
		Name:         "Test User",
		Role:         role,
		IsActive:     true,
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	user.Tenant = tenant
	return user
}

// CreateTestUsers bulk-creates n users without paying the bcrypt cost
func CreateTestUsers(t *testing.T, db *gorm.DB, tenantID uuid.UUID, n int, active bool) {
	t.Helper()

	for i := 0; i < n; i++ {
		user := &models.User{
			TenantID:     tenantID,
			Email:        "bulk-" + uuid.New().String()[:8] + "@example.com",
			PasswordHash: "x",
			Role:         "worker",
			IsActive:     true,
		}
		if err := db.Create(user).Error; err != nil {
			t.Fatalf("failed to create test user: %v", err)
		}
		// gorm skips false for fields with a default tag on create
		if !active {
			if err := db.Model(user).Update("is_active", false).Error; err != nil {
				t.Fatalf("failed to deactivate test user: %v", err)
			}
		}
	}
}

// CreateTestOrders creates n orders for the tenant stamped at createdAt (UTC)
func CreateTestOrders(t *testing.T, db *gorm.DB, tenantID uuid.UUID, n int, createdAt time.Time) {
	t.Helper()

	for i := 0; i < n; i++ {
		order := &models.Order{
			Base: models.Base{
				CreatedAt: createdAt.UTC(),
			},
			TenantID:   tenantID,
			Number:     "ORD-" + uuid.New().String()[:8],
			ClientName: "Test Client",
			Status:     models.OrderStatusIntake,
			Quantity:   1,
		}
		if err := db.Create(order).Error; err != nil {
			t.Fatalf("failed to create test order: %v", err)
		}
	}
}

// CreateTestFile records a stored file of the given size
func CreateTestFile(t *testing.T, db *gorm.DB, tenantID uuid.UUID, sizeBytes int64) *models.StoredFile {
	t.Helper()

	file := &models.StoredFile{
		TenantID:   tenantID,
		Name:       "file-" + uuid.New().String()[:8] + ".pdf",
		SizeBytes:  sizeBytes,
		StorageKey: "tenants/" + tenantID.String() + "/" + uuid.New().String(),
	}
	if err := db.Create(file).Error; err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	return file
}

// CreateTestJWTService creates a JWT service for testing
func CreateTestJWTService() *auth.JWTService {
	return auth.NewJWTService("test-secret-key-for-testing", 24*time.Hour)
}

// GenerateTestToken generates a valid JWT token for the given user
func GenerateTestToken(t *testing.T, jwtService *auth.JWTService, user *models.User) string {
	t.Helper()

	token, err := jwtService.GenerateToken(user.ID, user.TenantID, user.Email, user.Role)
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}

	return token
}

// AuthenticatedRequest creates an HTTP request with authentication
func AuthenticatedRequest(t *testing.T, method, path string, body interface{}, token string) *http.Request {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

// UnauthenticatedRequest creates an HTTP request without authentication
func UnauthenticatedRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	return AuthenticatedRequest(t, method, path, body, "")
}

// ParseJSONResponse parses the response body into the given struct
func ParseJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response body: %v. Body: %s", err, rr.Body.String())
	}
}

// TestContext creates a context with a timeout for tests
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestSetup holds all the common test dependencies
type TestSetup struct {
	DB         *gorm.DB
	JWTService *auth.JWTService
	Tenant     *models.Tenant
	User       *models.User
	Token      string
}

// NewTestContext creates a DB, a free-plan tenant, an admin of that tenant
// and their token.
func NewTestContext(t *testing.T) *TestSetup {
	t.Helper()

	db := SetupTestDB(t)
	jwtService := CreateTestJWTService()
	tenant := CreateTestTenant(t, db, models.PlanFree)
	user := CreateTestUser(t, db, tenant, "admin")
	token := GenerateTestToken(t, jwtService, user)

	return &TestSetup{
		DB:         db,
		JWTService: jwtService,
		Tenant:     tenant,
		User:       user,
		Token:      token,
	}
}

// Cleanup closes the test database
func (ts *TestSetup) Cleanup() {
	if ts.DB != nil {
		sqlDB, err := ts.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}
