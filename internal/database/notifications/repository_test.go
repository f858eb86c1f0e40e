package notifications

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/libris/internal/database"
	"github.com/mrlokans/libris/internal/entities"
)

func setupTestRepo(t *testing.T) *Repository {
	t.Helper()
	return NewRepository(database.NewTestDatabase(t).DB)
}

func TestRepository_ListForUser_NewestFirst(t *testing.T) {
	repo := setupTestRepo(t)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Create(&entities.Notification{UserID: "u1", Type: entities.NotificationDueDate, Title: "old", CreatedAt: base}))
	require.NoError(t, repo.Create(&entities.Notification{UserID: "u1", Type: entities.NotificationNewBook, Title: "new", CreatedAt: base.Add(time.Hour), Metadata: map[string]any{"book_id": "b1"}}))
	require.NoError(t, repo.Create(&entities.Notification{UserID: "u2", Type: entities.NotificationSystemAlert, Title: "other"}))

	rows, err := repo.ListForUser("u1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "new", rows[0].Title)
	assert.Equal(t, "b1", rows[0].Metadata["book_id"])
	assert.Equal(t, "old", rows[1].Title)
}

func TestRepository_MarkRead(t *testing.T) {
	repo := setupTestRepo(t)

	n := &entities.Notification{UserID: "u1", Type: entities.NotificationSystemAlert, Title: "hello"}
	require.NoError(t, repo.Create(n))

	unread, err := repo.CountUnread("u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), unread)

	rows, err := repo.MarkRead(n.ID, "u2")
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows, "other users cannot mark it")

	rows, err = repo.MarkRead(n.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	unread, err = repo.CountUnread("u1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), unread)
}
