// Package notifications provides database operations for per-user
// notifications.
package notifications

import (
	"gorm.io/gorm"

	"github.com/mrlokans/libris/internal/entities"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListForUser returns a user's notifications, newest first.
func (r *Repository) ListForUser(userID string) ([]entities.Notification, error) {
	var rows []entities.Notification
	err := r.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *Repository) Create(n *entities.Notification) error {
	return r.db.Create(n).Error
}

// MarkRead flags a notification of the given user as read. Zero rows means
// the notification does not exist or belongs to someone else.
func (r *Repository) MarkRead(id, userID string) (int64, error) {
	result := r.db.Model(&entities.Notification{}).
		Where("id = ? AND user_id = ?", id, userID).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}

// CountUnread returns how many notifications a user has not read yet.
func (r *Repository) CountUnread(userID string) (int64, error) {
	var count int64
	err := r.db.Model(&entities.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

func (r *Repository) DeleteForUser(userID string) (int64, error) {
	result := r.db.Where("user_id = ?", userID).Delete(&entities.Notification{})
	return result.RowsAffected, result.Error
}
