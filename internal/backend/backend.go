// Package backend holds the authoritative semantics of the data service:
// who may read and write which rows, how credentials and sessions are
// issued, and when a consumed passcode may authorize a credential change.
//
// The HTTP API (internal/http) and the in-process client (remote/local)
// are both thin adapters over a *Backend. Errors are reported with the
// sentinels of package remote.
package backend

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/libris/internal/database/books"
	"github.com/mrlokans/libris/internal/database/notifications"
	"github.com/mrlokans/libris/internal/database/passcodes"
	"github.com/mrlokans/libris/internal/database/settings"
	"github.com/mrlokans/libris/internal/database/userbooks"
	"github.com/mrlokans/libris/internal/database/users"
	"github.com/mrlokans/libris/internal/entities"
	"github.com/mrlokans/libris/internal/identity"
	"github.com/mrlokans/libris/internal/remote"
)

// Dispatcher hands a passcode to the delivery channel.
type Dispatcher interface {
	DispatchPasscode(ctx context.Context, email, code string, purpose entities.PasscodePurpose) error
}

// Sessions issues and resolves bearer tokens.
type Sessions interface {
	Issue(ctx context.Context, userID, email string) (*identity.SessionData, error)
	Resolve(ctx context.Context, token string) (*identity.SessionData, error)
	Revoke(ctx context.Context, token string) error
	RevokeUser(ctx context.Context, userID string) error
}

// Auditor records security relevant events.
type Auditor interface {
	LogAuth(userID, action, ipAddr, userAgent string, err error)
	LogCatalog(userID, action, bookID, title string, err error)
	LogPasscode(email string, purpose entities.PasscodePurpose, action string, err error)
	LogSettings(userID, key, value string)
}

// Config tunes the backend.
type Config struct {
	// PasscodeTTL bounds both the life of a passcode and the window in
	// which a consumed passcode may authorize a credential change.
	PasscodeTTL time.Duration
	// RegistrationOpen is used when the registration_open setting is unset.
	RegistrationOpen bool
}

// RequestMeta describes where a request came from, for the audit trail.
type RequestMeta struct {
	IP        string
	UserAgent string
}

type Backend struct {
	db         *gorm.DB
	accounts   *identity.Service
	sessions   Sessions
	dispatcher Dispatcher
	audit      Auditor
	config     Config
	now        func() time.Time
}

// New creates a backend. A nil auditor disables the audit trail.
func New(db *gorm.DB, accounts *identity.Service, sessions Sessions, dispatcher Dispatcher, auditor Auditor, cfg Config) *Backend {
	if cfg.PasscodeTTL <= 0 {
		cfg.PasscodeTTL = 10 * time.Minute
	}
	if auditor == nil {
		auditor = nopAuditor{}
	}
	return &Backend{
		db:         db,
		accounts:   accounts,
		sessions:   sessions,
		dispatcher: dispatcher,
		audit:      auditor,
		config:     cfg,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetClock replaces the time source. Passcode times are compared as stored,
// so the clock should report UTC. Intended for tests.
func (b *Backend) SetClock(now func() time.Time) {
	b.now = now
}

func (b *Backend) books(ctx context.Context) *books.Repository {
	return books.NewRepository(b.db.WithContext(ctx))
}

func (b *Backend) users(ctx context.Context) *users.Repository {
	return users.NewRepository(b.db.WithContext(ctx))
}

func (b *Backend) userBooks(ctx context.Context) *userbooks.Repository {
	return userbooks.NewRepository(b.db.WithContext(ctx))
}

func (b *Backend) notifications(ctx context.Context) *notifications.Repository {
	return notifications.NewRepository(b.db.WithContext(ctx))
}

func (b *Backend) passcodes(ctx context.Context) *passcodes.Repository {
	return passcodes.NewRepository(b.db.WithContext(ctx))
}

func (b *Backend) settings(ctx context.Context) *settings.Repository {
	return settings.NewRepository(b.db.WithContext(ctx))
}

// requireSession rejects anonymous callers.
func requireSession(p *identity.Principal) error {
	if p == nil {
		return remote.ErrUnauthorized
	}
	return nil
}

// requireAdmin rejects callers that are not admins.
func requireAdmin(p *identity.Principal) error {
	if p == nil {
		return remote.ErrUnauthorized
	}
	if !p.IsAdmin() {
		return remote.ErrForbidden
	}
	return nil
}

// requireOwner allows the owner of a row and admins.
func requireOwner(p *identity.Principal, ownerID string) error {
	if p == nil {
		return remote.ErrUnauthorized
	}
	if p.UserID != ownerID && !p.IsAdmin() {
		return remote.ErrForbidden
	}
	return nil
}

// storeErr converts a repository error into the remote taxonomy.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return remote.ErrNotFound
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return remote.Transport(err)
	}
	log.Printf("backend: %s: %v", op, err)
	return fmt.Errorf("%s: %w", op, err)
}

type nopAuditor struct{}

func (nopAuditor) LogAuth(string, string, string, string, error)                {}
func (nopAuditor) LogCatalog(string, string, string, string, error)             {}
func (nopAuditor) LogPasscode(string, entities.PasscodePurpose, string, error) {}
func (nopAuditor) LogSettings(string, string, string)                           {}
