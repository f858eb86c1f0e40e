package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PasscodePurpose string

const (
	PasscodeVerification PasscodePurpose = "verification"
	PasscodeReset        PasscodePurpose = "reset"
)

func (p PasscodePurpose) Valid() bool {
	return p == PasscodeVerification || p == PasscodeReset
}

// Passcode is a one-time code issued for an email and purpose. At most one
// row exists per (email, purpose); a new send overwrites it.
type Passcode struct {
	ID         string          `gorm:"primaryKey;size:36" json:"id"`
	Email      string          `gorm:"size:255;uniqueIndex:idx_passcode_email_type" json:"email"`
	Code       string          `gorm:"size:64;index" json:"-"` // SHA-256 of the code
	Type       PasscodePurpose `gorm:"size:16;uniqueIndex:idx_passcode_email_type" json:"type"`
	ExpiresAt  time.Time       `gorm:"index" json:"expires_at"`
	Used       bool            `gorm:"default:false" json:"used"`
	UsedAt     *time.Time      `json:"used_at,omitempty"`
	RedeemedAt *time.Time      `json:"redeemed_at,omitempty"` // Set once a consumed code authorized a credential change
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (Passcode) TableName() string {
	return "otp_codes"
}

func (p *Passcode) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// Live reports whether the passcode can still be consumed at now.
func (p *Passcode) Live(now time.Time) bool {
	return !p.Used && !p.ExpiresAt.Before(now)
}
