package backend

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/mrlokans/libris/internal/entities"
	"github.com/mrlokans/libris/internal/identity"
	"github.com/mrlokans/libris/internal/remote"
)

// GetProfile returns a profile to its owner or to an admin.
func (b *Backend) GetProfile(ctx context.Context, p *identity.Principal, id string) (*entities.User, error) {
	if err := requireOwner(p, id); err != nil {
		return nil, err
	}
	user, err := b.users(ctx).GetProfileByID(id)
	if err != nil {
		return nil, storeErr("get profile", err)
	}
	return user, nil
}

// InsertProfile creates the caller's own profile. The role is always user
// and the email is the account's.
func (b *Backend) InsertProfile(ctx context.Context, p *identity.Principal, user *entities.User) (*entities.User, error) {
	if err := requireSession(p); err != nil {
		return nil, err
	}
	if user.ID != "" && user.ID != p.UserID {
		return nil, remote.ErrForbidden
	}
	if strings.TrimSpace(user.Name) == "" {
		return nil, remote.Invalid("name is required")
	}

	repo := b.users(ctx)
	if _, err := repo.GetProfileByID(p.UserID); err == nil {
		return nil, remote.Invalid("profile already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, storeErr("check profile", err)
	}

	row := &entities.User{
		ID:         p.UserID,
		Name:       strings.TrimSpace(user.Name),
		Email:      p.Email,
		Role:       entities.UserRoleUser,
		Avatar:     user.Avatar,
		JoinedDate: b.now(),
	}
	if err := repo.CreateProfile(row); err != nil {
		return nil, storeErr("create profile", err)
	}
	return row, nil
}

// ListProfiles returns every profile. Admins only.
func (b *Backend) ListProfiles(ctx context.Context, p *identity.Principal) ([]entities.User, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	list, err := b.users(ctx).ListProfiles()
	if err != nil {
		return nil, storeErr("list profiles", err)
	}
	return list, nil
}

// ListUserBooks returns a user's relationships to its owner or an admin.
func (b *Backend) ListUserBooks(ctx context.Context, p *identity.Principal, userID string) ([]entities.UserBook, error) {
	if err := requireOwner(p, userID); err != nil {
		return nil, err
	}
	rows, err := b.userBooks(ctx).ListForUser(userID)
	if err != nil {
		return nil, storeErr("list relationships", err)
	}
	return rows, nil
}

// UpsertUserBook writes one of the caller's relationships. When status is
// empty it is derived from progress.
func (b *Backend) UpsertUserBook(ctx context.Context, p *identity.Principal, row *entities.UserBook) (*entities.UserBook, error) {
	if err := requireSession(p); err != nil {
		return nil, err
	}
	if row.UserID != "" && row.UserID != p.UserID {
		return nil, remote.ErrForbidden
	}
	if err := validateUserBook(row); err != nil {
		return nil, err
	}
	if _, err := b.books(ctx).GetBookByID(row.BookID); err != nil {
		return nil, storeErr("find book", err)
	}

	in := *row
	in.ID = ""
	in.UserID = p.UserID
	if in.Status == "" {
		in.Status = entities.StatusForProgress(in.Progress)
	}

	stored, err := b.userBooks(ctx).Upsert(&in)
	if err != nil {
		return nil, storeErr("upsert relationship", err)
	}
	return stored, nil
}

func validateUserBook(row *entities.UserBook) error {
	switch row.RelationshipType {
	case entities.RelationshipBorrowed, entities.RelationshipPurchased, entities.RelationshipWishlist, entities.RelationshipExchange:
	default:
		return remote.Invalid("unknown relationship type")
	}
	switch row.Status {
	case "", entities.RelationshipActive, entities.RelationshipReturned, entities.RelationshipCompleted, entities.RelationshipPending:
	default:
		return remote.Invalid("unknown relationship status")
	}
	if row.Progress < 0 || row.Progress > 100 {
		return remote.Invalid("progress must be between 0 and 100")
	}
	if row.BookID == "" {
		return remote.Invalid("book id is required")
	}
	return nil
}

// ListNotifications returns a user's notifications to its owner or an
// admin, newest first.
func (b *Backend) ListNotifications(ctx context.Context, p *identity.Principal, userID string) ([]entities.Notification, error) {
	if err := requireOwner(p, userID); err != nil {
		return nil, err
	}
	rows, err := b.notifications(ctx).ListForUser(userID)
	if err != nil {
		return nil, storeErr("list notifications", err)
	}
	return rows, nil
}

// MarkNotificationRead flags one of the caller's notifications as read.
func (b *Backend) MarkNotificationRead(ctx context.Context, p *identity.Principal, id string) error {
	if err := requireSession(p); err != nil {
		return err
	}
	rows, err := b.notifications(ctx).MarkRead(id, p.UserID)
	if err != nil {
		return storeErr("mark notification", err)
	}
	if rows == 0 {
		return remote.ErrNotFound
	}
	return nil
}

// Notify sends a notification to a user. Admins only.
func (b *Backend) Notify(ctx context.Context, p *identity.Principal, n *entities.Notification) (*entities.Notification, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	switch n.Type {
	case entities.NotificationNewBook, entities.NotificationExchangeRequest, entities.NotificationDueDate,
		entities.NotificationPurchaseConfirm, entities.NotificationSystemAlert:
	default:
		return nil, remote.Invalid("unknown notification type")
	}
	if _, err := b.users(ctx).GetProfileByID(n.UserID); err != nil {
		return nil, storeErr("find recipient", err)
	}

	row := *n
	row.ID = ""
	row.IsRead = false
	if err := b.notifications(ctx).Create(&row); err != nil {
		return nil, storeErr("create notification", err)
	}
	return &row, nil
}
