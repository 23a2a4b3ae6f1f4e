package tasks

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/hugh/ash-erp/internal/database/models"
	"github.com/hugh/ash-erp/internal/limits"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LimitsChecker reports a tenant's usage against its plan.
type LimitsChecker interface {
	CheckLimits(ctx context.Context, tenantID uuid.UUID) (*limits.Report, error)
}

type Handler struct {
	db       *gorm.DB
	checker  LimitsChecker
	enqueuer Enqueuer
	logger   *slog.Logger
}

// NewHandler builds the task handler. With a nil enqueuer the sweep checks
// tenants inline instead of fanning out.
func NewHandler(db *gorm.DB, checker LimitsChecker, enqueuer Enqueuer, logger *slog.Logger) *Handler {
	return &Handler{
		db:       db,
		checker:  checker,
		enqueuer: enqueuer,
		logger:   logger,
	}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeUsageSweep, h.HandleUsageSweep)
	mux.HandleFunc(TypeUsageCheck, h.HandleUsageCheck)
}

func (h *Handler) HandleUsageSweep(ctx context.Context, t *asynq.Task) error {
	var ids []uuid.UUID
	if err := h.db.WithContext(ctx).
		Model(&models.Tenant{}).
		Where("is_active = ?", true).
		Pluck("id", &ids).Error; err != nil {
		return fmt.Errorf("listing active tenants: %w", err)
	}

	h.logger.Info("usage sweep started", "tenants", len(ids))

	var failed int
	for _, id := range ids {
		payload := UsageCheckPayload{TenantID: id, Reason: "sweep"}
		if h.enqueuer == nil {
			if _, err := h.checkTenant(ctx, payload); err != nil {
				h.logger.Error("usage check failed", "tenant_id", id, "error", err)
				failed++
			}
			continue
		}
		task, err := NewUsageCheckTask(payload)
		if err != nil {
			return err
		}
		if _, err := h.enqueuer.EnqueueContext(ctx, task, asynq.Queue(QueueLow)); err != nil {
			h.logger.Error("failed to enqueue usage check", "tenant_id", id, "error", err)
			failed++
		}
	}

	h.logger.Info("usage sweep finished", "tenants", len(ids), "failed", failed)
	return nil
}

func (h *Handler) HandleUsageCheck(ctx context.Context, t *asynq.Task) error {
	var payload UsageCheckPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if payload.TenantID == uuid.Nil {
		return fmt.Errorf("usage check without tenant: %w", asynq.SkipRetry)
	}

	_, err := h.checkTenant(ctx, payload)
	return err
}

// checkTenant records an alert for every dimension at or over the warning
// threshold. It returns how many alerts were new this period.
func (h *Handler) checkTenant(ctx context.Context, payload UsageCheckPayload) (int, error) {
	report, err := h.checker.CheckLimits(ctx, payload.TenantID)
	if err != nil {
		return 0, fmt.Errorf("checking limits: %w", err)
	}

	created := 0
	for i, dim := range report.Warned {
		alert := models.UsageAlert{
			TenantID:   payload.TenantID,
			Dimension:  string(dim),
			Period:     report.Period,
			Percentage: report.Percentage(dim),
			Message:    report.Warnings[i],
			Hash:       alertHash(payload.TenantID, dim, report.Period),
		}
		result := h.db.WithContext(ctx).
			Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "hash"}}, DoNothing: true}).
			Create(&alert)
		if result.Error != nil {
			return created, fmt.Errorf("saving usage alert: %w", result.Error)
		}
		if result.RowsAffected > 0 {
			created++
			h.logger.Warn("tenant usage near plan limit",
				"tenant_id", payload.TenantID,
				"dimension", dim,
				"percentage", alert.Percentage,
				"period", report.Period,
				"reason", payload.Reason,
			)
		}
	}
	return created, nil
}

// alertHash makes one alert per tenant, dimension and month.
func alertHash(tenantID uuid.UUID, dim limits.Dimension, period string) string {
	data := fmt.Sprintf("%s:usage:%s:%s", tenantID.String(), dim, period)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
