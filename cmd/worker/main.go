package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/hibiken/asynq"
	"github.com/hugh/ash-erp/internal/database"
	"github.com/hugh/ash-erp/internal/limits"
	"github.com/hugh/ash-erp/internal/tasks"
	"github.com/hugh/ash-erp/internal/tenant"
	"github.com/hugh/ash-erp/pkg/config"
	"github.com/hugh/ash-erp/pkg/queue"
	"github.com/hugh/ash-erp/pkg/util"
	"github.com/joho/godotenv"
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

	logger.Info("starting ash-erp worker", "concurrency", cfg.Worker.Concurrency)

	// asynq evaluates cron entries in UTC
	sweep, err := util.ParseSchedule(cfg.Worker.UsageSweepCron, time.UTC)
	if err != nil {
		logger.Error("invalid usage sweep schedule", "error", err)
		os.Exit(1)
	}

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	// The worker reads counts straight from the database so alerts never
	// act on a cached figure.
	lookup := tenant.NewGormLookup(db)
	enforcer := limits.NewEnforcer(lookup, limits.NewDBCounter(db), limits.PlansFromConfig(cfg.Limits.Plans), cfg.Limits.WarningThreshold, logger)

	client := queue.NewClient(&cfg.Redis)
	defer client.Close()

	handler := tasks.NewHandler(db, enforcer, client, logger)
	mux := asynq.NewServeMux()
	handler.RegisterHandlers(mux)

	scheduler := queue.NewScheduler(&cfg.Redis)
	entryID, err := scheduler.Register(sweep.String(), tasks.NewUsageSweepTask(),
		asynq.Queue(tasks.QueueLow),
		asynq.MaxRetry(1),
	)
	if err != nil {
		logger.Error("failed to register usage sweep", "error", err)
		os.Exit(1)
	}
	logger.Info("usage sweep scheduled", "cron", sweep.String(), "entry_id", entryID, "next_run", sweep.Next(time.Now()))

	if err := scheduler.Start(); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}

	srv := queue.NewServer(&cfg.Redis, cfg.Worker.Concurrency)
	if err := srv.Start(mux); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	logger.Info("worker started, waiting for tasks...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down worker...")
	scheduler.Shutdown()
	srv.Shutdown()

	sqlDB, _ := db.DB()
	sqlDB.Close()

	logger.Info("worker stopped")
}
