//go:build ignore

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	_ "time/tzdata"

	"github.com/hugh/ash-erp/internal/database"
	"github.com/hugh/ash-erp/internal/database/models"
	"github.com/hugh/ash-erp/internal/rbac"
	"github.com/hugh/ash-erp/internal/tenant"
	"github.com/hugh/ash-erp/pkg/config"
	"github.com/hugh/ash-erp/pkg/util"
	"github.com/joho/godotenv"
)

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Server.Env)

	db, err := database.Connect(&cfg.Database, logger)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	ctx := context.Background()
	tenants := tenant.NewService(db, nil, logger)

	// The platform tenant holds the super admin who manages every other tenant.
	platform, admin, err := tenants.Create(ctx, tenant.CreateInput{
		Name:          "Ash Platform",
		Slug:          getenv("PLATFORM_SLUG", "platform"),
		PlanTier:      models.PlanEnterprise,
		Timezone:      "UTC",
		AdminEmail:    getenv("ADMIN_EMAIL", "admin@example.com"),
		AdminName:     getenv("ADMIN_NAME", "Admin"),
		AdminPassword: getenv("ADMIN_PASSWORD", "Admin123!pass"),
	})
	if errors.Is(err, tenant.ErrSlugTaken) {
		fmt.Println("Platform tenant already exists, nothing to do")
		return
	}
	if err != nil {
		log.Fatalf("failed to create platform tenant: %v", err)
	}

	if err := db.Model(admin).Update("role", string(rbac.RoleSuperAdmin)).Error; err != nil {
		log.Fatalf("failed to promote admin: %v", err)
	}

	demo, demoAdmin, err := tenants.Create(ctx, tenant.CreateInput{
		Name:          "Demo Shop",
		Slug:          "demo",
		PlanTier:      models.PlanFree,
		Timezone:      getenv("DEMO_TIMEZONE", "America/New_York"),
		AdminEmail:    "owner@demo.example.com",
		AdminName:     "Demo Owner",
		AdminPassword: getenv("ADMIN_PASSWORD", "Admin123!pass"),
	})
	if err != nil {
		log.Fatalf("failed to create demo tenant: %v", err)
	}

	fmt.Printf("Platform tenant: %s (%s)\n", platform.Slug, platform.ID)
	fmt.Printf("Super admin:     %s\n", admin.Email)
	fmt.Printf("Demo tenant:     %s (%s)\n", demo.Slug, demo.ID)
	fmt.Printf("Demo admin:      %s\n", demoAdmin.Email)
}
