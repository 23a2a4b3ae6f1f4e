package handlers_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/hugh/ash-erp/internal/api"
	"github.com/hugh/ash-erp/internal/auth"
	"github.com/hugh/ash-erp/internal/database/models"
	"github.com/hugh/ash-erp/internal/gate"
	"github.com/hugh/ash-erp/internal/limits"
	"github.com/hugh/ash-erp/internal/rbac"
	"github.com/hugh/ash-erp/internal/storage"
	"github.com/hugh/ash-erp/internal/tenant"
	"github.com/hugh/ash-erp/internal/testutil"
	"github.com/stretchr/testify/require"
)

// Free plan: 5 seats, 10 orders a month, 10 kB of storage.
var testPlans = limits.Plans{
	models.PlanFree:         {MaxUsers: 5, MaxOrdersPerMonth: 10, MaxStorageGB: 0.00001},
	models.PlanBasic:        {MaxUsers: 10, MaxOrdersPerMonth: 100, MaxStorageGB: 1},
	models.PlanProfessional: {MaxUsers: 50, MaxOrdersPerMonth: 1000, MaxStorageGB: 10},
	models.PlanEnterprise:   {MaxUsers: limits.Unlimited, MaxOrdersPerMonth: limits.Unlimited, MaxStorageGB: limits.Unlimited},
}

const testMaxUpload = 1 << 20

type recordingNotifier struct {
	mu      sync.Mutex
	reasons []string
}

func (n *recordingNotifier) Notify(_ context.Context, _ uuid.UUID, reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reasons = append(n.reasons, reason)
}

func (n *recordingNotifier) Reasons() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.reasons...)
}

type apiSetup struct {
	*testutil.TestSetup
	router   *api.Router
	store    *storage.MemoryStore
	notifier *recordingNotifier
}

// setupAPI builds the full router over an in-memory database with one
// free-plan tenant and an admin of it. opts adjust the router config.
func setupAPI(t *testing.T, opts ...func(*api.RouterConfig)) *apiSetup {
	t.Helper()
	tc := testutil.NewTestContext(t)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	lookup := tenant.NewGormLookup(tc.DB)
	resolver, err := tenant.NewResolver(lookup, tenant.Options{BaseDomain: "ash.test"})
	require.NoError(t, err)

	enforcer := limits.NewEnforcer(lookup, limits.NewDBCounter(tc.DB), testPlans, 0.9, logger)
	store := storage.NewMemoryStore()
	notifier := &recordingNotifier{}

	cfg := api.RouterConfig{
		DB:             tc.DB,
		Logger:         logger,
		Tokens:         tc.JWTService,
		AuthService:    auth.NewService(tc.DB, tc.JWTService),
		Resolver:       resolver,
		Gate:           gate.New(resolver, enforcer, nil, logger),
		Limits:         enforcer,
		RoleManager:    rbac.NewManager(rbac.NewGormRoleStore(tc.DB)),
		TenantService:  tenant.NewService(tc.DB, nil, logger),
		Store:          store,
		Notifier:       notifier,
		MaxUploadBytes: testMaxUpload,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	router := api.NewRouter(cfg)

	t.Cleanup(func() {
		router.Close()
		tc.Cleanup()
	})

	return &apiSetup{TestSetup: tc, router: router, store: store, notifier: notifier}
}

func (s *apiSetup) serve(req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

// do sends an authenticated JSON request.
func (s *apiSetup) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	return s.serve(testutil.AuthenticatedRequest(t, method, path, body, token))
}

// userToken creates a user of the setup tenant with role and returns it
// with a token.
func (s *apiSetup) userToken(t *testing.T, role rbac.Role) (*models.User, string) {
	t.Helper()
	user := testutil.CreateTestUser(t, s.DB, s.Tenant, string(role))
	return user, testutil.GenerateTestToken(t, s.JWTService, user)
}
