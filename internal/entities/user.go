package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

// User is the public profile row of an identity.
type User struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	Name       string    `gorm:"size:200" json:"name"`
	Email      string    `gorm:"uniqueIndex;size:255" json:"email"`
	Role       UserRole  `gorm:"size:16;default:'user'" json:"role"`
	Avatar     *string   `gorm:"size:2048" json:"avatar,omitempty"`
	JoinedDate time.Time `json:"joined_date"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// Account holds the credentials the identity provider checks. Its ID is
// shared with the profile row in users.
type Account struct {
	ID               string     `gorm:"primaryKey;size:36" json:"id"`
	Email            string     `gorm:"uniqueIndex;size:255" json:"email"`
	PasswordHash     string     `gorm:"size:255" json:"-"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at,omitempty"`
	FailedLoginCount int        `gorm:"default:0" json:"-"`
	LockedUntil      *time.Time `json:"-"`
	LastLoginAt      *time.Time `json:"last_login_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (Account) TableName() string {
	return "accounts"
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

// EmailConfirmed reports whether the account's email has been verified.
func (a *Account) EmailConfirmed() bool {
	return a.EmailConfirmedAt != nil
}
