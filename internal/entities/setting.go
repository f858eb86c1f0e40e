package entities

import (
	"time"
)

type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"uniqueIndex;size:100" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Setting) TableName() string {
	return "settings"
}

// Known setting keys
const (
	// Whether new accounts may sign up
	SettingKeyRegistrationOpen = "registration_open"

	// Maintenance bookkeeping
	SettingKeyMaintenanceLastAt      = "maintenance_last_at"
	SettingKeyMaintenanceLastStatus  = "maintenance_last_status"
	SettingKeyMaintenanceLastMessage = "maintenance_last_message"
)
