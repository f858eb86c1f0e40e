// Package local implements remote.Service in-process, directly over a
// *backend.Backend. The CLI uses it when no remote URL is configured, and
// tests use it to drive the core without a network.
package local

import (
	"context"
	"sync"

	"github.com/mrlokans/libris/internal/backend"
	"github.com/mrlokans/libris/internal/entities"
	"github.com/mrlokans/libris/internal/identity"
	"github.com/mrlokans/libris/internal/remote"
)

// Client holds at most one session, like a single signed-in device.
type Client struct {
	remote.Broadcaster

	backend *backend.Backend
	meta    backend.RequestMeta

	mu      sync.Mutex
	session *remote.Session
}

var _ remote.Service = (*Client)(nil)

func New(b *backend.Backend) *Client {
	return &Client{
		backend: b,
		meta:    backend.RequestMeta{IP: "local", UserAgent: "libris-local"},
	}
}

func (c *Client) token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return ""
	}
	return c.session.AccessToken
}

func (c *Client) setSession(s *remote.Session) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

// principal resolves the caller. Anonymous callers get a nil principal.
func (c *Client) principal(ctx context.Context) (*identity.Principal, error) {
	token := c.token()
	if token == "" {
		return nil, nil
	}
	return c.backend.Authenticate(ctx, token)
}

func (c *Client) signedIn(s *remote.Session) *remote.Session {
	c.setSession(s)
	copied := *s
	c.Publish(remote.AuthEvent{Kind: remote.SignedIn, Session: &copied})
	return s
}

func (c *Client) SignUp(ctx context.Context, email, password string) (*remote.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, remote.Classify(err)
	}
	s, err := c.backend.SignUp(ctx, email, password, c.meta)
	if err != nil {
		return nil, remote.Classify(err)
	}
	return c.signedIn(s), nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*remote.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, remote.Classify(err)
	}
	s, err := c.backend.SignIn(ctx, email, password, c.meta)
	if err != nil {
		return nil, remote.Classify(err)
	}
	return c.signedIn(s), nil
}

// SignOut ends the session. The local session is dropped and SignedOut is
// published even when the service could not be told.
func (c *Client) SignOut(ctx context.Context) error {
	token := c.token()
	var err error
	if token != "" {
		p, _ := c.backend.Authenticate(ctx, token)
		err = c.backend.SignOut(ctx, p, token, c.meta)
	}
	c.setSession(nil)
	c.Publish(remote.AuthEvent{Kind: remote.SignedOut})
	return remote.Classify(err)
}

// CurrentSession returns the held session if the service still accepts it.
func (c *Client) CurrentSession(ctx context.Context) (*remote.Session, error) {
	token := c.token()
	if token == "" {
		return nil, nil
	}
	s, err := c.backend.Session(ctx, token)
	if err == remote.ErrUnauthorized {
		c.setSession(nil)
		return nil, nil
	}
	if err != nil {
		return nil, remote.Classify(err)
	}
	return s, nil
}

func (c *Client) UpdatePassword(ctx context.Context, email, password string) error {
	return remote.Classify(c.backend.UpdatePassword(ctx, email, password))
}

func (c *Client) ConfirmEmail(ctx context.Context, email string) error {
	return remote.Classify(c.backend.ConfirmEmail(ctx, email))
}

func (c *Client) DeleteAccount(ctx context.Context) error {
	p, err := c.principal(ctx)
	if err != nil {
		return remote.Classify(err)
	}
	if err := c.backend.DeleteAccount(ctx, p, c.meta); err != nil {
		return remote.Classify(err)
	}
	c.setSession(nil)
	c.Publish(remote.AuthEvent{Kind: remote.SignedOut})
	return nil
}

func (c *Client) ListBooks(ctx context.Context) ([]entities.Book, error) {
	list, err := c.backend.ListBooks(ctx)
	return list, remote.Classify(err)
}

func (c *Client) GetBook(ctx context.Context, id string) (*entities.Book, error) {
	book, err := c.backend.GetBook(ctx, id)
	return book, remote.Classify(err)
}

func (c *Client) InsertBook(ctx context.Context, book *entities.Book) (*entities.Book, error) {
	p, err := c.principal(ctx)
	if err != nil {
		return nil, remote.Classify(err)
	}
	created, err := c.backend.CreateBook(ctx, p, book)
	return created, remote.Classify(err)
}

func (c *Client) UpdateBook(ctx context.Context, book *entities.Book) (*entities.Book, error) {
	p, err := c.principal(ctx)
	if err != nil {
		return nil, remote.Classify(err)
	}
	updated, err := c.backend.UpdateBook(ctx, p, book)
	return updated, remote.Classify(err)
}

func (c *Client) DeleteBook(ctx context.Context, id string) error {
	p, err := c.principal(ctx)
	if err != nil {
		return remote.Classify(err)
	}
	return remote.Classify(c.backend.DeleteBook(ctx, p, id))
}

func (c *Client) GetProfile(ctx context.Context, id string) (*entities.User, error) {
	p, err := c.principal(ctx)
	if err != nil {
		return nil, remote.Classify(err)
	}
	user, err := c.backend.GetProfile(ctx, p, id)
	return user, remote.Classify(err)
}

func (c *Client) InsertProfile(ctx context.Context, user *entities.User) (*entities.User, error) {
	p, err := c.principal(ctx)
	if err != nil {
		return nil, remote.Classify(err)
	}
	created, err := c.backend.InsertProfile(ctx, p, user)
	return created, remote.Classify(err)
}

func (c *Client) ListProfiles(ctx context.Context) ([]entities.User, error) {
	p, err := c.principal(ctx)
	if err != nil {
		return nil, remote.Classify(err)
	}
	list, err := c.backend.ListProfiles(ctx, p)
	return list, remote.Classify(err)
}

func (c *Client) ListUserBooks(ctx context.Context, userID string) ([]entities.UserBook, error) {
	p, err := c.principal(ctx)
	if err != nil {
		return nil, remote.Classify(err)
	}
	rows, err := c.backend.ListUserBooks(ctx, p, userID)
	return rows, remote.Classify(err)
}

func (c *Client) UpsertUserBook(ctx context.Context, row *entities.UserBook) (*entities.UserBook, error) {
	p, err := c.principal(ctx)
	if err != nil {
		return nil, remote.Classify(err)
	}
	stored, err := c.backend.UpsertUserBook(ctx, p, row)
	return stored, remote.Classify(err)
}

func (c *Client) ListNotifications(ctx context.Context, userID string) ([]entities.Notification, error) {
	p, err := c.principal(ctx)
	if err != nil {
		return nil, remote.Classify(err)
	}
	rows, err := c.backend.ListNotifications(ctx, p, userID)
	return rows, remote.Classify(err)
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	p, err := c.principal(ctx)
	if err != nil {
		return remote.Classify(err)
	}
	return remote.Classify(c.backend.MarkNotificationRead(ctx, p, id))
}

func (c *Client) UpsertPasscode(ctx context.Context, in remote.PasscodeUpsert) error {
	return remote.Classify(c.backend.UpsertPasscode(ctx, in))
}

func (c *Client) FindPasscode(ctx context.Context, email, code string, purpose entities.PasscodePurpose) (*remote.PasscodeRecord, error) {
	record, err := c.backend.FindPasscode(ctx, email, code, purpose)
	return record, remote.Classify(err)
}

func (c *Client) MarkPasscodeUsed(ctx context.Context, id string) error {
	return remote.Classify(c.backend.MarkPasscodeUsed(ctx, id))
}

func (c *Client) DispatchPasscode(ctx context.Context, email, code string, purpose entities.PasscodePurpose) error {
	return remote.Classify(c.backend.DispatchPasscode(ctx, email, code, purpose))
}
