// Package scheduler runs the data service's periodic maintenance on a cron
// schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

var ErrAlreadyRunning = errors.New("maintenance is already running")

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSchedule checks a five-field cron expression or a descriptor such
// as "@hourly".
func ValidateSchedule(schedule string) error {
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", schedule, err)
	}
	return nil
}

// Job is one maintenance pass.
type Job func(ctx context.Context) error

// Maintenance runs a Job on a schedule. Passes never overlap; a tick that
// fires while the previous pass is still running is skipped.
type Maintenance struct {
	schedule string
	job      Job

	cron    *cron.Cron
	entryID cron.EntryID

	mu        sync.RWMutex
	isRunning bool
	isBusy    bool
	ctx       context.Context
}

func NewMaintenance(schedule string, job Job) *Maintenance {
	return &Maintenance{
		schedule: schedule,
		job:      job,
		cron:     cron.New(cron.WithParser(parser)),
	}
}

// Start schedules the job. The scheduler stops when ctx is cancelled.
func (m *Maintenance) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.isRunning {
		return nil
	}
	if err := ValidateSchedule(m.schedule); err != nil {
		return err
	}

	entryID, err := m.cron.AddFunc(m.schedule, func() {
		if err := m.RunNow(m.context()); err != nil && !errors.Is(err, ErrAlreadyRunning) {
			log.Printf("[MAINTENANCE] Pass failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule maintenance: %w", err)
	}
	m.entryID = entryID
	m.ctx = ctx

	m.cron.Start()
	m.isRunning = true
	log.Printf("[MAINTENANCE] Started with schedule '%s'", m.schedule)

	go func() {
		<-ctx.Done()
		m.Stop()
	}()
	return nil
}

// Stop waits for a running pass and stops the schedule.
func (m *Maintenance) Stop() {
	m.mu.Lock()
	if !m.isRunning {
		m.mu.Unlock()
		return
	}
	m.isRunning = false
	m.mu.Unlock()

	<-m.cron.Stop().Done()
	m.cron.Remove(m.entryID)
	log.Printf("[MAINTENANCE] Stopped")
}

// RunNow runs one pass synchronously.
func (m *Maintenance) RunNow(ctx context.Context) error {
	m.mu.Lock()
	if m.isBusy {
		m.mu.Unlock()
		return ErrAlreadyRunning
	}
	m.isBusy = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.isBusy = false
		m.mu.Unlock()
	}()

	start := time.Now()
	if err := m.job(ctx); err != nil {
		return err
	}
	log.Printf("[MAINTENANCE] Pass completed in %v", time.Since(start).Round(time.Millisecond))
	return nil
}

func (m *Maintenance) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.isRunning
}

// NextRun returns when the next pass is due, or nil when stopped.
func (m *Maintenance) NextRun() *time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.isRunning {
		return nil
	}
	next := m.cron.Entry(m.entryID).Next
	return &next
}

func (m *Maintenance) context() context.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.ctx == nil {
		return context.Background()
	}
	return m.ctx
}
