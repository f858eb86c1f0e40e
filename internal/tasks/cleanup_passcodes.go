package tasks

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"
)

// PasscodeCleaner deletes passcodes that expired before cutoff.
type PasscodeCleaner interface {
	DeleteExpired(cutoff time.Time) (int64, error)
}

// CleanupPasscodesTask removes expired passcodes. A used code keeps granting
// a password reset for one TTL after use, so rows are only removed once
// they expired more than Grace ago.
type CleanupPasscodesTask struct {
	Grace time.Duration `json:"grace"`
}

func (t CleanupPasscodesTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "cleanup_passcodes",
		MaxAttempts: 3,
		Backoff:     5 * time.Minute,
		Timeout:     time.Minute,
		Retention: &backlite.Retention{
			Duration: 24 * time.Hour,
			Data:     &backlite.RetainData{OnlyFailed: true},
		},
	}
}

func CleanupPasscodesProcessor(cleaner PasscodeCleaner, now func() time.Time) backlite.QueueProcessor[CleanupPasscodesTask] {
	if now == nil {
		now = time.Now
	}
	return func(ctx context.Context, task CleanupPasscodesTask) error {
		if cleaner == nil {
			return fmt.Errorf("passcode cleaner not configured")
		}
		grace := task.Grace
		if grace < 0 {
			grace = 0
		}

		deleted, err := cleaner.DeleteExpired(now().Add(-grace))
		if err != nil {
			return fmt.Errorf("cleanup passcodes: %w", err)
		}
		if deleted > 0 {
			log.Printf("[TASK] Cleaned up %d expired passcodes", deleted)
		}
		return nil
	}
}

func NewCleanupPasscodesQueue(cleaner PasscodeCleaner, now func() time.Time) backlite.Queue {
	return backlite.NewQueue(CleanupPasscodesProcessor(cleaner, now))
}
