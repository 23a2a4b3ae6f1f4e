package tasks

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task type names
const (
	TypeUsageCheck = "usage:check"
	TypeUsageSweep = "usage:sweep"
)

const (
	QueueDefault = "default"
	QueueLow     = "low"
)

// UsageCheckPayload asks for one tenant's usage to be evaluated
type UsageCheckPayload struct {
	TenantID uuid.UUID `json:"tenant_id"`
	Reason   string    `json:"reason,omitempty"` // "sweep", "order created", "file uploaded", ...
}

func NewUsageCheckTask(payload UsageCheckPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeUsageCheck, data), nil
}

// UsageSweepPayload is empty - the sweep checks every active tenant
type UsageSweepPayload struct{}

func NewUsageSweepTask() *asynq.Task {
	return asynq.NewTask(TypeUsageSweep, nil)
}
