// Package audit provides database operations for the audit trail.
package audit

import (
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/libris/internal/entities"
)

const defaultPageSize = 50

// Filter narrows an audit query. Zero fields match everything.
type Filter struct {
	UserID    string
	EventType entities.AuditEventType
	Limit     int
	Offset    int
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// LogEvent saves an audit event to the database.
func (r *Repository) LogEvent(event *entities.AuditEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	return r.db.Create(event).Error
}

// ListEvents returns one page of events matching the filter, most recent
// first, together with the total number of matches.
func (r *Repository) ListEvents(f Filter) ([]entities.AuditEvent, int64, error) {
	var events []entities.AuditEvent
	var total int64

	query := r.db.Model(&entities.AuditEvent{})
	if f.UserID != "" {
		query = query.Where("user_id = ?", f.UserID)
	}
	if f.EventType != "" {
		query = query.Where("event_type = ?", f.EventType)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&events).Error
	return events, total, err
}

// CountFailures returns how many failed events of a type an action
// produced since the given time.
func (r *Repository) CountFailures(eventType entities.AuditEventType, action string, since time.Time) (int64, error) {
	var count int64
	err := r.db.Model(&entities.AuditEvent{}).
		Where("event_type = ? AND action = ? AND status = ? AND created_at > ?", eventType, action, entities.AuditStatusFailed, since).
		Count(&count).Error
	return count, err
}

// DeleteOldEvents removes audit events older than the specified time.
// Returns the number of deleted events.
func (r *Repository) DeleteOldEvents(olderThan time.Time) (int64, error) {
	result := r.db.Where("created_at < ?", olderThan).Delete(&entities.AuditEvent{})
	return result.RowsAffected, result.Error
}
