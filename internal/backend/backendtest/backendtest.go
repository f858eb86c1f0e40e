// Package backendtest builds a fully wired backend over a temporary SQLite
// database for tests in other packages.
package backendtest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mrlokans/libris/internal/backend"
	"github.com/mrlokans/libris/internal/config"
	"github.com/mrlokans/libris/internal/database"
	"github.com/mrlokans/libris/internal/database/books"
	"github.com/mrlokans/libris/internal/delivery"
	"github.com/mrlokans/libris/internal/entities"
	"github.com/mrlokans/libris/internal/identity"
)

// Password satisfies the password policy; seeded accounts use it.
const Password = "Secret1"

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type Harness struct {
	DB       *database.Database
	Backend  *backend.Backend
	Accounts *identity.Service
	Sessions *identity.SessionManager
	Outbox   *delivery.Outbox
	Clock    *Clock
}

// AuthConfig is a fast configuration for tests: bcrypt at minimum cost.
func AuthConfig() config.Auth {
	return config.Auth{
		SessionLifetime:  time.Hour,
		BcryptCost:       4,
		RegistrationOpen: true,
		MaxLoginAttempts: 5,
		RateLimitWindow:  15 * time.Minute,
		LockoutDuration:  30 * time.Minute,
	}
}

// New wires a backend with passcodes delivered to an in-memory outbox.
func New(t testing.TB) *Harness {
	t.Helper()

	db := database.NewTestDatabase(t)
	sqlDB, err := db.DB.DB()
	require.NoError(t, err)

	sessions, err := identity.NewSessionManager(sqlDB, AuthConfig())
	require.NoError(t, err)
	t.Cleanup(sessions.Close)

	accounts := identity.NewService(db.DB, AuthConfig())
	outbox := &delivery.Outbox{}
	clock := NewClock(time.Now().UTC().Truncate(time.Second))

	b := backend.New(db.DB, accounts, sessions, delivery.Direct{Sender: outbox}, nil, backend.Config{
		PasscodeTTL:      10 * time.Minute,
		RegistrationOpen: true,
	})
	b.SetClock(clock.Now)

	return &Harness{
		DB:       db,
		Backend:  b,
		Accounts: accounts,
		Sessions: sessions,
		Outbox:   outbox,
		Clock:    clock,
	}
}

// SeedAdmin creates a confirmed admin account with Password.
func (h *Harness) SeedAdmin(t testing.TB, name, email string) *entities.User {
	t.Helper()
	user, err := h.Backend.CreateAdmin(context.Background(), name, email, Password)
	require.NoError(t, err)
	return user
}

// SeedUser signs a user up with Password and creates the profile.
func (h *Harness) SeedUser(t testing.TB, name, email string) *entities.User {
	t.Helper()
	ctx := context.Background()

	session, err := h.Backend.SignUp(ctx, email, Password, backend.RequestMeta{})
	require.NoError(t, err)

	principal, err := h.Backend.Authenticate(ctx, session.AccessToken)
	require.NoError(t, err)

	user, err := h.Backend.InsertProfile(ctx, principal, &entities.User{Name: name})
	require.NoError(t, err)
	return user
}

// Principal signs in with Password and returns the resulting caller.
func (h *Harness) Principal(t testing.TB, email string) *identity.Principal {
	t.Helper()
	ctx := context.Background()

	session, err := h.Backend.SignIn(ctx, email, Password, backend.RequestMeta{})
	require.NoError(t, err)

	principal, err := h.Backend.Authenticate(ctx, session.AccessToken)
	require.NoError(t, err)
	return principal
}

// SeedBook inserts a paid book created at the harness clock and then
// advances the clock by a second, so successive seeds are strictly
// ordered.
func (h *Harness) SeedBook(t testing.TB, title string) *entities.Book {
	t.Helper()
	price := 9.99
	book := &entities.Book{
		Title:         title,
		Author:        "Seed Author",
		Category:      "Technology",
		Genre:         "Programming",
		Type:          entities.BookTypePaid,
		Price:         &price,
		IsAvailable:   true,
		PublishedDate: "2020-01-01",
		Content:       []string{"Introduction", "Chapter 1", "Chapter 2"},
		CreatedAt:     h.Clock.Now(),
	}
	require.NoError(t, books.NewRepository(h.DB.DB).CreateBook(book))
	h.Clock.Advance(time.Second)
	return book
}

// SeedUserBook writes a relationship row directly.
func (h *Harness) SeedUserBook(t testing.TB, row *entities.UserBook) *entities.UserBook {
	t.Helper()
	if row.Status == "" {
		row.Status = entities.StatusForProgress(row.Progress)
	}
	require.NoError(t, h.DB.DB.Create(row).Error)
	return row
}

// SeedNotification writes a notification row directly.
func (h *Harness) SeedNotification(t testing.TB, n *entities.Notification) *entities.Notification {
	t.Helper()
	require.NoError(t, h.DB.DB.Create(n).Error)
	return n
}

// LastCode returns the most recently delivered passcode for an email.
func (h *Harness) LastCode(t testing.TB, email string, purpose entities.PasscodePurpose) string {
	t.Helper()
	msg, ok := h.Outbox.Last(email, purpose)
	require.True(t, ok, "no passcode delivered to %s", email)
	return msg.Code
}
