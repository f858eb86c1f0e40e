package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationType string

const (
	NotificationNewBook         NotificationType = "new_book"
	NotificationExchangeRequest NotificationType = "exchange_request"
	NotificationDueDate         NotificationType = "due_date"
	NotificationPurchaseConfirm NotificationType = "purchase_confirm"
	NotificationSystemAlert     NotificationType = "system_alert"
)

type Notification struct {
	ID        string           `gorm:"primaryKey;size:36" json:"id"`
	UserID    string           `gorm:"size:36;index" json:"user_id"`
	Type      NotificationType `gorm:"size:32" json:"type"`
	Title     string           `gorm:"size:256" json:"title"`
	Message   string           `gorm:"type:text" json:"message"`
	IsRead    bool             `gorm:"default:false" json:"is_read"`
	Metadata  map[string]any   `gorm:"serializer:json" json:"metadata,omitempty"`
	CreatedAt time.Time        `gorm:"index" json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func (Notification) TableName() string {
	return "notifications"
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	return nil
}
