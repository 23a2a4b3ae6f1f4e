package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/hugh/ash-erp/internal/api/respond"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Pinger is a dependency the health check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db      *gorm.DB
	redis   redis.UniversalClient
	storage Pinger
}

func NewHealthHandler(db *gorm.DB, redis redis.UniversalClient, storage Pinger) *HealthHandler {
	return &HealthHandler{db: db, redis: redis, storage: storage}
}

type HealthResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	services := make(map[string]string)
	status := "healthy"

	check := func(name string, err error) {
		if err != nil {
			services[name] = "unhealthy"
			status = "unhealthy"
			return
		}
		services[name] = "healthy"
	}

	// Check database
	sqlDB, err := h.db.DB()
	if err == nil {
		err = sqlDB.PingContext(ctx)
	}
	check("database", err)

	if h.redis != nil {
		check("redis", h.redis.Ping(ctx).Err())
	}
	if h.storage != nil {
		check("storage", h.storage.Ping(ctx))
	}

	statusCode := http.StatusOK
	if status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	respond.JSON(w, statusCode, HealthResponse{
		Status:   status,
		Services: services,
	})
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
