package remote

import (
	"context"

	"github.com/mrlokans/libris/internal/entities"
)

// Identity is the session-based authentication API.
type Identity interface {
	SignUp(ctx context.Context, email, password string) (*Session, error)
	SignIn(ctx context.Context, email, password string) (*Session, error)
	SignOut(ctx context.Context) error
	// CurrentSession returns the active session or nil when there is none.
	CurrentSession(ctx context.Context) (*Session, error)
	// Subscribe registers fn for session changes and returns a function
	// that removes it.
	Subscribe(fn func(AuthEvent)) (unsubscribe func())
	// UpdatePassword sets a new credential for the account with email. The
	// service only accepts it right after a reset passcode was consumed.
	UpdatePassword(ctx context.Context, email, password string) error
	// ConfirmEmail marks the email as verified. The service only accepts
	// it right after a verification passcode was consumed.
	ConfirmEmail(ctx context.Context, email string) error
	// DeleteAccount removes the signed-in account and ends its session.
	DeleteAccount(ctx context.Context) error
}

// Books is the books table.
type Books interface {
	ListBooks(ctx context.Context) ([]entities.Book, error)
	GetBook(ctx context.Context, id string) (*entities.Book, error)
	InsertBook(ctx context.Context, book *entities.Book) (*entities.Book, error)
	// UpdateBook replaces every field except id, rating and reviews.
	// ErrNotFound reports that no row had the id.
	UpdateBook(ctx context.Context, book *entities.Book) (*entities.Book, error)
	DeleteBook(ctx context.Context, id string) error
}

// Profiles is the users table.
type Profiles interface {
	GetProfile(ctx context.Context, id string) (*entities.User, error)
	InsertProfile(ctx context.Context, user *entities.User) (*entities.User, error)
	ListProfiles(ctx context.Context) ([]entities.User, error)
}

// UserBooks is the user_books table.
type UserBooks interface {
	ListUserBooks(ctx context.Context, userID string) ([]entities.UserBook, error)
	UpsertUserBook(ctx context.Context, row *entities.UserBook) (*entities.UserBook, error)
}

// Notifications is the notifications table.
type Notifications interface {
	ListNotifications(ctx context.Context, userID string) ([]entities.Notification, error)
	MarkNotificationRead(ctx context.Context, id string) error
}

// Passcodes is the otp_codes table plus the delivery channel.
type Passcodes interface {
	UpsertPasscode(ctx context.Context, p PasscodeUpsert) error
	// FindPasscode returns the unused, unexpired passcode matching email,
	// code and purpose, or ErrNotFound.
	FindPasscode(ctx context.Context, email, code string, purpose entities.PasscodePurpose) (*PasscodeRecord, error)
	// MarkPasscodeUsed consumes a passcode. ErrNotFound reports that it
	// was already used.
	MarkPasscodeUsed(ctx context.Context, id string) error
	// DispatchPasscode hands a code to the delivery channel.
	DispatchPasscode(ctx context.Context, email, code string, purpose entities.PasscodePurpose) error
}

// Service is everything the core needs from the data service.
type Service interface {
	Identity
	Books
	Profiles
	UserBooks
	Notifications
	Passcodes
}
