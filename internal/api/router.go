package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hugh/ash-erp/internal/api/handlers"
	"github.com/hugh/ash-erp/internal/api/middleware"
	"github.com/hugh/ash-erp/internal/api/respond"
	"github.com/hugh/ash-erp/internal/auth"
	"github.com/hugh/ash-erp/internal/limits"
	"github.com/hugh/ash-erp/internal/observability"
	"github.com/hugh/ash-erp/internal/rbac"
	"github.com/hugh/ash-erp/internal/storage"
	"github.com/hugh/ash-erp/internal/tenant"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Router struct {
	chi.Router
	limiters []*middleware.RateLimiter
}

type RouterConfig struct {
	DB            *gorm.DB
	Redis         redis.UniversalClient // optional
	Logger        *slog.Logger
	Tokens        auth.TokenService
	AuthService   auth.Authenticator
	Resolver      *tenant.Resolver
	Gate          middleware.Admitter
	Limits        *limits.Enforcer
	RoleManager   *rbac.Manager
	TenantService *tenant.Service
	Store         storage.ObjectStore
	Notifier      handlers.UsageNotifier // optional
	Metrics       *observability.Metrics // optional

	AllowedOrigins []string // CORS allowed origins
	RateLimitReqs  int      // Rate limit requests per window
	RateLimitSecs  int      // Rate limit window in seconds
	Production     bool
	MaxUploadBytes int64
	EncryptFiles   bool
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()
	router := &Router{Router: r}

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(middleware.Recovery(cfg.Logger))
	r.Use(middleware.Logging(cfg.Logger))
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Instrument)
	}

	// CORS - restrict to configured origins, or allow localhost in development
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept", "Authorization", "Content-Type",
			middleware.HeaderCSRFToken, middleware.HeaderAuthToken,
			tenant.HeaderTenant, tenant.HeaderWorkspaceID,
		},
		ExposedHeaders: []string{
			"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset",
			"X-Request-Id", middleware.HeaderQuotaWarning,
		},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	rs := respond.New(cfg.Logger, !cfg.Production)

	var storePinger handlers.Pinger
	if cfg.Store != nil {
		storePinger = cfg.Store
	}

	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis, storePinger)
	authHandler := handlers.NewAuthHandler(cfg.AuthService, cfg.Resolver, rs, cfg.Production)
	limitsHandler := handlers.NewLimitsHandler(cfg.Limits, rs)
	roleHandler := handlers.NewRoleHandler(rs)
	userHandler := handlers.NewUserHandler(cfg.DB, cfg.RoleManager, cfg.Limits, cfg.Notifier, rs)
	orderHandler := handlers.NewOrderHandler(cfg.DB, cfg.Limits, cfg.Notifier, rs)
	fileHandler := handlers.NewFileHandler(cfg.DB, cfg.Store, cfg.Limits, cfg.Notifier, rs, cfg.Logger, handlers.FileHandlerConfig{
		MaxUploadBytes: cfg.MaxUploadBytes,
		Encrypted:      cfg.EncryptFiles,
	})
	tenantHandler := handlers.NewTenantHandler(cfg.TenantService, cfg.Limits, rs)

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)
	if cfg.Metrics != nil {
		r.Handle("/metrics", cfg.Metrics.Handler())
	}

	var anonLimiter, userLimiter *middleware.RateLimiter
	if cfg.RateLimitReqs > 0 {
		anonLimiter = middleware.NewRateLimiter(cfg.RateLimitReqs, cfg.RateLimitSecs)
		userLimiter = middleware.NewRateLimiter(cfg.RateLimitReqs, cfg.RateLimitSecs)
		router.limiters = append(router.limiters, anonLimiter, userLimiter)
	}

	guard := func(rule middleware.Rule) func(http.Handler) http.Handler {
		return middleware.Guard(cfg.Gate, rule, rs)
	}

	api := func(r chi.Router) {
		// Public auth endpoints
		r.Group(func(r chi.Router) {
			if anonLimiter != nil {
				r.Use(middleware.RateLimit(anonLimiter))
			}
			r.Post("/auth/login", authHandler.Login)
			r.Post("/auth/logout", authHandler.Logout)
		})

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.Tokens))
			r.Use(middleware.CSRF)
			if userLimiter != nil {
				r.Use(middleware.RateLimitByPrincipal(userLimiter))
			}

			r.Get("/me", authHandler.Me)

			r.With(guard(middleware.Rule{Resource: rbac.ResourceSettings, Action: rbac.ActionRead})).
				Get("/tenant/limits", limitsHandler.Get)
			r.With(guard(middleware.Rule{Resource: rbac.ResourceSettings, Action: rbac.ActionRead})).
				Post("/tenant/limits/check", limitsHandler.Check)

			r.With(guard(middleware.Rule{Resource: rbac.ResourceUsers, Action: rbac.ActionRead})).
				Get("/roles", roleHandler.List)
			r.With(guard(middleware.Rule{Resource: rbac.ResourceUsers, Action: rbac.ActionRead})).
				Get("/permissions", roleHandler.Permissions)

			r.Route("/users", func(r chi.Router) {
				r.With(guard(middleware.Rule{Resource: rbac.ResourceUsers, Action: rbac.ActionRead})).
					Get("/", userHandler.List)
				r.With(guard(middleware.Rule{Resource: rbac.ResourceUsers, Action: rbac.ActionCreate, Operation: limits.OpCreateUser})).
					Post("/", userHandler.Create)
				r.With(guard(middleware.Rule{Resource: rbac.ResourceUsers, Action: rbac.ActionUpdate})).
					Put("/{id}/role", userHandler.UpdateRole)
				r.With(guard(middleware.Rule{Resource: rbac.ResourceUsers, Action: rbac.ActionDelete})).
					Delete("/{id}", userHandler.Deactivate)
			})

			r.Route("/orders", func(r chi.Router) {
				r.With(guard(middleware.Rule{Resource: rbac.ResourceOrders, Action: rbac.ActionRead})).
					Get("/", orderHandler.List)
				r.With(guard(middleware.Rule{Resource: rbac.ResourceOrders, Action: rbac.ActionCreate, Operation: limits.OpCreateOrder})).
					Post("/", orderHandler.Create)
			})

			r.Route("/files", func(r chi.Router) {
				r.With(guard(middleware.Rule{Resource: rbac.ResourceFiles, Action: rbac.ActionRead})).
					Get("/", fileHandler.List)
				r.With(guard(middleware.Rule{
					Resource:   rbac.ResourceFiles,
					Action:     rbac.ActionCreate,
					Operation:  limits.OpUploadFile,
					UploadSize: fileHandler.UploadSize,
				})).Post("/", fileHandler.Upload)
				r.With(guard(middleware.Rule{Resource: rbac.ResourceFiles, Action: rbac.ActionRead})).
					Get("/{id}/content", fileHandler.Download)
				r.With(guard(middleware.Rule{Resource: rbac.ResourceFiles, Action: rbac.ActionDelete})).
					Delete("/{id}", fileHandler.Delete)
			})

			// Platform administration
			r.Route("/admin/tenants", func(r chi.Router) {
				r.Use(guard(middleware.Rule{Resource: rbac.ResourceAdmin, Action: rbac.ActionManage}))
				r.Get("/", tenantHandler.List)
				r.Post("/", tenantHandler.Create)
				r.Get("/{id}", tenantHandler.Get)
				r.Delete("/{id}", tenantHandler.Delete)
				r.Put("/{id}/plan", tenantHandler.ChangePlan)
				r.Post("/{id}/suspend", tenantHandler.Suspend)
				r.Post("/{id}/activate", tenantHandler.Activate)
				r.Get("/{id}/stats", tenantHandler.Stats)
				r.Get("/{id}/limits", tenantHandler.Limits)
			})
		})
	}

	r.Route("/api/v1", api)
	r.Route("/t/{"+tenant.PathParam+"}/api/v1", api)

	return router
}

// Close stops the rate limiter cleanup goroutines.
func (r *Router) Close() {
	for _, rl := range r.limiters {
		rl.Stop()
	}
}
