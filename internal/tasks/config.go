package tasks

import (
	"time"

	"github.com/mrlokans/libris/internal/config"
)

// Config holds the queue settings.
type Config struct {
	Workers           int           // Concurrent workers (default: 2)
	MaxRetries        int           // Attempts for retryable queues (default: 3)
	RetryDelay        time.Duration // Backoff between attempts (default: 1m)
	TaskTimeout       time.Duration // Per-task execution limit (default: 5m)
	ReleaseAfter      time.Duration // Stuck tasks go back to the queue after this (default: 15m)
	CleanupInterval   time.Duration // How often finished tasks are purged (default: 1h)
	RetentionDuration time.Duration // How long finished tasks are kept (default: 24h)
}

func DefaultConfig() Config {
	return Config{
		Workers:           2,
		MaxRetries:        3,
		RetryDelay:        1 * time.Minute,
		TaskTimeout:       5 * time.Minute,
		ReleaseAfter:      15 * time.Minute,
		CleanupInterval:   1 * time.Hour,
		RetentionDuration: 24 * time.Hour,
	}
}

// ConfigFrom converts the process settings, falling back to defaults for
// anything unset.
func ConfigFrom(t config.Tasks) Config {
	return Config{
		Workers:           t.Workers,
		MaxRetries:        t.MaxRetries,
		RetryDelay:        t.RetryDelay,
		TaskTimeout:       t.TaskTimeout,
		ReleaseAfter:      t.ReleaseAfter,
		CleanupInterval:   t.CleanupInterval,
		RetentionDuration: t.RetentionDuration,
	}.withDefaults()
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Workers <= 0 {
		c.Workers = d.Workers
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = d.RetryDelay
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = d.TaskTimeout
	}
	if c.ReleaseAfter <= 0 {
		c.ReleaseAfter = d.ReleaseAfter
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = d.CleanupInterval
	}
	if c.RetentionDuration <= 0 {
		c.RetentionDuration = d.RetentionDuration
	}
	return c
}
