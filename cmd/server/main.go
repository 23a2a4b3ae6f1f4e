package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/hibiken/asynq"
	"github.com/hugh/ash-erp/internal/api"
	"github.com/hugh/ash-erp/internal/api/handlers"
	"github.com/hugh/ash-erp/internal/auth"
	"github.com/hugh/ash-erp/internal/database"
	"github.com/hugh/ash-erp/internal/gate"
	"github.com/hugh/ash-erp/internal/limits"
	"github.com/hugh/ash-erp/internal/observability"
	"github.com/hugh/ash-erp/internal/rbac"
	"github.com/hugh/ash-erp/internal/storage"
	"github.com/hugh/ash-erp/internal/tasks"
	"github.com/hugh/ash-erp/internal/tenant"
	"github.com/hugh/ash-erp/pkg/config"
	"github.com/hugh/ash-erp/pkg/crypto"
	"github.com/hugh/ash-erp/pkg/queue"
	"github.com/hugh/ash-erp/pkg/util"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := util.NewLogger(cfg.Server.Env)
	slog.SetDefault(logger)

	logger.Info("starting ash-erp server",
		"env", cfg.Server.Env,
		"addr", cfg.Server.Addr(),
	)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	// Production schemas are managed by SQL migrations.
	if cfg.Server.IsDevelopment() {
		if err := database.AutoMigrate(db); err != nil {
			logger.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
	}

	// Redis is optional: without it usage counts are uncached, rate limits
	// are per-process and usage checks are not queued.
	var redisClient redis.UniversalClient
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Warn("failed to connect to Redis", "error", err)
		rdb.Close()
	} else {
		redisClient = rdb
	}

	lookup := tenant.NewCachedLookup(tenant.NewGormLookup(db), cfg.Tenancy.LookupCacheSize, cfg.Tenancy.LookupCacheTTL())
	resolver, err := tenant.NewResolver(lookup, tenant.Options{
		BaseDomain:      cfg.Tenancy.BaseDomain,
		DevFallbackSlug: cfg.Tenancy.DevFallbackSlug,
		Production:      cfg.Server.IsProduction(),
	})
	if err != nil {
		logger.Error("invalid tenancy configuration", "error", err)
		os.Exit(1)
	}

	var counter limits.Counter = limits.NewDBCounter(db)
	if redisClient != nil {
		counter = limits.NewCachedCounter(counter, redisClient, cfg.Limits.CacheTTL(), logger)
	}
	enforcer := limits.NewEnforcer(lookup, counter, limits.PlansFromConfig(cfg.Limits.Plans), cfg.Limits.WarningThreshold, logger)

	metrics := observability.New()
	admissions := gate.New(resolver, enforcer, metrics, logger)

	var encryptor *crypto.Encryptor
	if cfg.Storage.Encrypt {
		encryptor, err = crypto.NewEncryptor(cfg.Encryption.Key)
		if err != nil {
			logger.Error("failed to create encryptor", "error", err)
			os.Exit(1)
		}
		if cfg.Encryption.Key == "" {
			logger.Warn("ENCRYPTION_KEY not set, using generated key - stored files will be unreadable after restart")
		}
	}

	store, err := storage.New(context.Background(), &cfg.Storage, encryptor)
	if err != nil {
		logger.Error("failed to open object storage", "backend", cfg.Storage.Backend, "error", err)
		os.Exit(1)
	}

	var (
		asynqClient *asynq.Client
		notifier    handlers.UsageNotifier
	)
	if redisClient != nil {
		asynqClient = queue.NewClient(&cfg.Redis)
		notifier = tasks.NewUsageNotifier(asynqClient, logger)
	}

	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Expiry())

	router := api.NewRouter(api.RouterConfig{
		DB:             db,
		Redis:          redisClient,
		Logger:         logger,
		Tokens:         jwtService,
		AuthService:    auth.NewService(db, jwtService),
		Resolver:       resolver,
		Gate:           admissions,
		Limits:         enforcer,
		RoleManager:    rbac.NewManager(rbac.NewGormRoleStore(db)),
		TenantService:  tenant.NewService(db, lookup, logger),
		Store:          store,
		Notifier:       notifier,
		Metrics:        metrics,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimitReqs:  cfg.RateLimit.Requests,
		RateLimitSecs:  cfg.RateLimit.WindowSeconds,
		Production:     cfg.Server.IsProduction(),
		MaxUploadBytes: int64(cfg.Storage.MaxUploadMB) << 20,
		EncryptFiles:   cfg.Storage.Encrypt,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", cfg.Server.Addr())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	router.Close()

	if asynqClient != nil {
		asynqClient.Close()
	}
	if redisClient != nil {
		redisClient.Close()
	}

	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("server stopped")
}
