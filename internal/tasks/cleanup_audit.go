package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"
)

// DefaultAuditRetentionDays applies when a task carries no retention.
const DefaultAuditRetentionDays = 30

// AuditEventCleaner deletes audit events recorded before olderThan.
type AuditEventCleaner interface {
	DeleteOldEvents(olderThan time.Time) (int64, error)
}

// CleanupAuditEventsTask removes audit events older than RetentionDays.
type CleanupAuditEventsTask struct {
	RetentionDays int `json:"retention_days"`
}

func (t CleanupAuditEventsTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "cleanup_audit_events",
		MaxAttempts: 3,
		Backoff:     5 * time.Minute,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration: 24 * time.Hour,
			Data:     &backlite.RetainData{OnlyFailed: true},
		},
	}
}

func CleanupAuditEventsProcessor(cleaner AuditEventCleaner, now func() time.Time) backlite.QueueProcessor[CleanupAuditEventsTask] {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context, task CleanupAuditEventsTask) error {
		if cleaner == nil {
			return fmt.Errorf("audit event cleaner not configured")
		}
		days := task.RetentionDays
		if days <= 0 {
			days = DefaultAuditRetentionDays
		}

		deleted, err := cleaner.DeleteOldEvents(now().AddDate(0, 0, -days))
		if err != nil {
			return fmt.Errorf("cleanup audit events: %w", err)
		}
		log.Printf("[TASK] Cleaned up %d audit events older than %d days", deleted, days)
		return nil
	}
}

func NewCleanupAuditEventsQueue(cleaner AuditEventCleaner, now func() time.Time) backlite.Queue {
	return backlite.NewQueue(CleanupAuditEventsProcessor(cleaner, now))
}
