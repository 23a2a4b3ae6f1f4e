package tasks

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Enqueuer is the part of *asynq.Client the service uses.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// usageCheckWindow collapses bursts of writes into one check per tenant.
const usageCheckWindow = time.Minute

// UsageNotifier schedules a usage check after a quota-bounded write.
type UsageNotifier struct {
	client Enqueuer
	logger *slog.Logger
}

func NewUsageNotifier(client Enqueuer, logger *slog.Logger) *UsageNotifier {
	return &UsageNotifier{client: client, logger: logger}
}

// Notify never fails the caller: the write already happened.
func (n *UsageNotifier) Notify(ctx context.Context, tenantID uuid.UUID, reason string) {
	if n == nil || n.client == nil {
		return
	}
	task, err := NewUsageCheckTask(UsageCheckPayload{TenantID: tenantID, Reason: reason})
	if err != nil {
		n.logger.Error("failed to build usage check", "tenant_id", tenantID, "error", err)
		return
	}
	_, err = n.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueDefault),
		asynq.Unique(usageCheckWindow),
		asynq.MaxRetry(3),
	)
	if err != nil && !errors.Is(err, asynq.ErrDuplicateTask) {
		n.logger.Error("failed to enqueue usage check", "tenant_id", tenantID, "error", err)
	}
}
