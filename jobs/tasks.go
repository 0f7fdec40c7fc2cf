package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskAuditRetention is the task type for the audit-log retention sweep.
	TaskAuditRetention = "audit:retention"
	// TaskGrantIntegrity is the task type for the orphaned-grant scan.
	TaskGrantIntegrity = "authz:grant_integrity"
)

// AuditRetentionPayload configures a retention sweep run.
type AuditRetentionPayload struct {
	RetainDays int `json:"retain_days"`
}

// NewAuditRetentionTask constructs an Asynq task for the retention sweep.
func NewAuditRetentionTask(payload AuditRetentionPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRetention, data), nil
}

// GrantIntegrityPayload configures an orphaned-grant scan run.
type GrantIntegrityPayload struct{}

// NewGrantIntegrityTask constructs an Asynq task for the integrity scan.
func NewGrantIntegrityTask() (*asynq.Task, error) {
	data, err := json.Marshal(GrantIntegrityPayload{})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskGrantIntegrity, data), nil
}
