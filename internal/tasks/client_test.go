package tasks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/libris/internal/config"
	"github.com/mrlokans/libris/internal/delivery"
	"github.com/mrlokans/libris/internal/entities"
)

func newTestClient(t *testing.T) (*Client, string) {
	t.Helper()
	tmpDir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Workers = 1

	client, err := NewClient(filepath.Join(tmpDir, "test.db"), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client, tmpDir
}

func startClient(t *testing.T, client *Client) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	client.Start(ctx)
	t.Cleanup(func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer stopCancel()
		client.Stop(stopCtx)
		cancel()
	})
}

func TestNewClient(t *testing.T) {
	_, tmpDir := newTestClient(t)

	_, err := os.Stat(filepath.Join(tmpDir, "test-tasks.db"))
	assert.NoError(t, err, "tasks database should be created")
}

func TestQueuePath(t *testing.T) {
	assert.Equal(t, "data/libris-tasks.db", QueuePath("data/libris.db"))
	assert.Equal(t, "libris-tasks", QueuePath("libris"))
}

func TestClientStartStop(t *testing.T) {
	client, _ := newTestClient(t)

	assert.True(t, client.Stop(context.Background()), "stopping an idle client is a no-op")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	client.Start(ctx)
	time.Sleep(50 * time.Millisecond)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	assert.True(t, client.Stop(stopCtx))
}

func TestPasscodeDispatcher(t *testing.T) {
	client, _ := newTestClient(t)
	outbox := &delivery.Outbox{}
	client.Register(NewDeliverPasscodeQueue(outbox))
	startClient(t, client)

	dispatcher := NewPasscodeDispatcher(client)
	err := dispatcher.DispatchPasscode(context.Background(), "jane@example.com", "123456", entities.PasscodeVerification)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, ok := outbox.Last("jane@example.com", entities.PasscodeVerification)
		return ok
	}, 5*time.Second, 20*time.Millisecond)

	msg, _ := outbox.Last("jane@example.com", entities.PasscodeVerification)
	assert.Equal(t, "123456", msg.Code)
}

type failingSender struct{}

func (failingSender) Send(context.Context, delivery.Message) error {
	return errors.New("smtp down")
}

func TestDeliverPasscodeProcessor(t *testing.T) {
	ctx := context.Background()
	task := DeliverPasscodeTask{Email: "jane@example.com", Code: "654321", Purpose: entities.PasscodeReset}

	outbox := &delivery.Outbox{}
	require.NoError(t, DeliverPasscodeProcessor(outbox)(ctx, task))
	msg, ok := outbox.Last("jane@example.com", entities.PasscodeReset)
	require.True(t, ok)
	assert.Equal(t, "654321", msg.Code)

	err := DeliverPasscodeProcessor(failingSender{})(ctx, task)
	assert.ErrorContains(t, err, "smtp down")

	assert.Error(t, DeliverPasscodeProcessor(nil)(ctx, task))
}

func TestDeliverPasscodeTaskConfig(t *testing.T) {
	cfg := DeliverPasscodeTask{}.Config()

	assert.Equal(t, "deliver_passcode", cfg.Name)
	assert.Equal(t, 3, cfg.MaxAttempts)
	require.NotNil(t, cfg.Retention)
	assert.Nil(t, cfg.Retention.Data, "codes are not kept after delivery")
}

type fakeCleaner struct {
	cutoff  time.Time
	deleted int64
	err     error
}

func (f *fakeCleaner) DeleteExpired(cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.deleted, f.err
}

func (f *fakeCleaner) DeleteOldEvents(olderThan time.Time) (int64, error) {
	f.cutoff = olderThan
	return f.deleted, f.err
}

func TestCleanupPasscodesProcessor(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	ctx := context.Background()

	cleaner := &fakeCleaner{deleted: 4}
	require.NoError(t, CleanupPasscodesProcessor(cleaner, clock)(ctx, CleanupPasscodesTask{Grace: 10 * time.Minute}))
	assert.Equal(t, now.Add(-10*time.Minute), cleaner.cutoff)

	require.NoError(t, CleanupPasscodesProcessor(cleaner, clock)(ctx, CleanupPasscodesTask{Grace: -time.Minute}))
	assert.Equal(t, now, cleaner.cutoff)

	cleaner.err = errors.New("database is locked")
	assert.ErrorContains(t, CleanupPasscodesProcessor(cleaner, clock)(ctx, CleanupPasscodesTask{}), "database is locked")

	assert.Error(t, CleanupPasscodesProcessor(nil, clock)(ctx, CleanupPasscodesTask{}))
}

func TestCleanupAuditEventsProcessor(t *testing.T) {
	now := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	ctx := context.Background()
	cleaner := &fakeCleaner{}

	require.NoError(t, CleanupAuditEventsProcessor(cleaner, clock)(ctx, CleanupAuditEventsTask{RetentionDays: 7}))
	assert.Equal(t, time.Date(2025, 3, 24, 0, 0, 0, 0, time.UTC), cleaner.cutoff)

	require.NoError(t, CleanupAuditEventsProcessor(cleaner, clock)(ctx, CleanupAuditEventsTask{}))
	assert.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), cleaner.cutoff)
}

func TestCleanupTaskConfigs(t *testing.T) {
	tests := []struct {
		task backlite.Task
		name string
	}{
		{CleanupPasscodesTask{}, "cleanup_passcodes"},
		{CleanupAuditEventsTask{}, "cleanup_audit_events"},
	}
	for _, tt := range tests {
		cfg := tt.task.Config()
		assert.Equal(t, tt.name, cfg.Name)
		assert.Equal(t, 3, cfg.MaxAttempts)
		assert.NotNil(t, cfg.Retention)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, time.Minute, cfg.RetryDelay)
	assert.Equal(t, 5*time.Minute, cfg.TaskTimeout)
	assert.Equal(t, 15*time.Minute, cfg.ReleaseAfter)
	assert.Equal(t, time.Hour, cfg.CleanupInterval)
	assert.Equal(t, 24*time.Hour, cfg.RetentionDuration)
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(config.Tasks{Workers: 4, RetryDelay: 30 * time.Second})

	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 30*time.Second, cfg.RetryDelay)
	assert.Equal(t, 3, cfg.MaxRetries, "unset values fall back to defaults")
	assert.Equal(t, 24*time.Hour, cfg.RetentionDuration)
}
