package remote

import (
	"time"

	"github.com/mrlokans/libris/internal/entities"
)

// Session is an authenticated session with the data service.
type Session struct {
	AccessToken    string    `json:"access_token"`
	UserID         string    `json:"user_id"`
	Email          string    `json:"email"`
	EmailConfirmed bool      `json:"email_confirmed"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return s == nil || (!s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt))
}

type AuthEventKind string

const (
	SignedIn       AuthEventKind = "SIGNED_IN"
	SignedOut      AuthEventKind = "SIGNED_OUT"
	TokenRefreshed AuthEventKind = "TOKEN_REFRESHED"
)

// AuthEvent notifies subscribers of a session change. Session is nil for
// SignedOut.
type AuthEvent struct {
	Kind    AuthEventKind
	Session *Session
}

// PasscodeRecord is a stored passcode as returned by a lookup. The code
// itself never travels back.
type PasscodeRecord struct {
	ID        string                   `json:"id"`
	Email     string                   `json:"email"`
	Type      entities.PasscodePurpose `json:"type"`
	ExpiresAt time.Time                `json:"expires_at"`
	Used      bool                     `json:"used"`
}

// PasscodeUpsert carries a freshly generated passcode to the service.
type PasscodeUpsert struct {
	Email     string                   `json:"email"`
	Code      string                   `json:"code"`
	Type      entities.PasscodePurpose `json:"type"`
	ExpiresAt time.Time                `json:"expires_at"`
}
