package identity

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"

	"github.com/mrlokans/libris/internal/config"
)

// Session data keys
const (
	SessionKeyUserID  = "user_id"
	SessionKeyEmail   = "email"
	SessionKeyLoginAt = "login_at"
)

var ErrSessionNotFound = errors.New("session not found or expired")

// SessionData is what a session token resolves to.
type SessionData struct {
	Token     string
	UserID    string
	Email     string
	LoginAt   time.Time
	ExpiresAt time.Time
}

// SessionManager issues and resolves opaque bearer tokens. It drives scs
// directly with contexts instead of cookies: the token scs generates on
// commit is handed to the client, which presents it as a bearer token.
type SessionManager struct {
	sm    *scs.SessionManager
	store *sqlite3store.SQLite3Store
}

// NewSessionManager creates a session manager over the sessions table. The
// sqlDB parameter should be the underlying *sql.DB from GORM.
func NewSessionManager(sqlDB *sql.DB, cfg config.Auth) (*SessionManager, error) {
	_, err := sqlDB.Exec(`CREATE TABLE IF NOT EXISTS sessions (
		token TEXT PRIMARY KEY,
		data BLOB NOT NULL,
		expiry REAL NOT NULL
	);
	CREATE INDEX IF NOT EXISTS sessions_expiry_idx ON sessions(expiry);`)
	if err != nil {
		return nil, err
	}

	lifetime := cfg.SessionLifetime
	if lifetime <= 0 {
		lifetime = 7 * 24 * time.Hour
	}

	store := sqlite3store.NewWithCleanupInterval(sqlDB, 10*time.Minute)

	sm := scs.New()
	sm.Store = store
	sm.Lifetime = lifetime

	return &SessionManager{sm: sm, store: store}, nil
}

// Issue starts a new session for an account and returns its token.
func (m *SessionManager) Issue(ctx context.Context, userID, email string) (*SessionData, error) {
	sctx, err := m.sm.Load(ctx, "")
	if err != nil {
		return nil, err
	}

	loginAt := time.Now().UTC()
	m.sm.Put(sctx, SessionKeyUserID, userID)
	m.sm.Put(sctx, SessionKeyEmail, email)
	m.sm.Put(sctx, SessionKeyLoginAt, loginAt.Format(time.RFC3339Nano))

	token, expiry, err := m.sm.Commit(sctx)
	if err != nil {
		return nil, err
	}

	return &SessionData{
		Token:     token,
		UserID:    userID,
		Email:     email,
		LoginAt:   loginAt,
		ExpiresAt: expiry,
	}, nil
}

// Resolve returns the session a token refers to, or ErrSessionNotFound.
func (m *SessionManager) Resolve(ctx context.Context, token string) (*SessionData, error) {
	if token == "" {
		return nil, ErrSessionNotFound
	}

	sctx, err := m.sm.Load(ctx, token)
	if err != nil {
		return nil, err
	}

	userID := m.sm.GetString(sctx, SessionKeyUserID)
	if userID == "" {
		return nil, ErrSessionNotFound
	}

	data := &SessionData{
		Token:     token,
		UserID:    userID,
		Email:     m.sm.GetString(sctx, SessionKeyEmail),
		ExpiresAt: m.sm.Deadline(sctx),
	}
	if loginAt, err := time.Parse(time.RFC3339Nano, m.sm.GetString(sctx, SessionKeyLoginAt)); err == nil {
		data.LoginAt = loginAt
	}
	return data, nil
}

// Revoke deletes the session behind a token. Unknown tokens are ignored.
func (m *SessionManager) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return m.store.Delete(token)
}

// RevokeUser deletes every session that belongs to a user.
func (m *SessionManager) RevokeUser(ctx context.Context, userID string) error {
	return m.sm.Iterate(ctx, func(sctx context.Context) error {
		if m.sm.GetString(sctx, SessionKeyUserID) != userID {
			return nil
		}
		return m.sm.Destroy(sctx)
	})
}

// Close stops the background cleanup of expired sessions.
func (m *SessionManager) Close() {
	m.store.StopCleanup()
}
