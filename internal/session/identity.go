package session

import (
	"slices"
	"strings"
	"time"

	"github.com/mrlokans/libris/internal/entities"
)

type State string

const (
	StateAnonymous      State = "anonymous"
	StateAuthenticating State = "authenticating"
	StateAuthenticated  State = "authenticated"
)

// SyncState tracks a value that was applied locally before the data
// service confirmed it.
type SyncState string

const (
	SyncConfirmed SyncState = "confirmed"
	SyncPending   SyncState = "pending"
	SyncFailed    SyncState = "failed"
)

// Reading is the book a user is partway through.
type Reading struct {
	BookID   string
	Progress int
	Position string
	Sync     SyncState
}

// Identity is the signed-in user as the presentation layer sees it.
type Identity struct {
	ID             string
	Name           string
	Email          string
	Role           entities.UserRole
	Avatar         string
	JoinedDate     time.Time
	EmailConfirmed bool

	BorrowedBooks   []string
	PurchasedBooks  []string
	ExchangeHistory []string
	Wishlist        []string

	CurrentlyReading *Reading
}

// IsAdmin is the only authorization check the core makes. It looks at the
// role and nothing else.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == entities.UserRoleAdmin
}

// Notification is a notification with the sync state of its read flag.
type Notification struct {
	ID        string
	Type      entities.NotificationType
	Title     string
	Message   string
	IsRead    bool
	Metadata  map[string]any
	CreatedAt time.Time
	Sync      SyncState
}

// Snapshot is a consistent view of the store. Values inside a snapshot are
// never modified after it is published; every change builds a new one.
type Snapshot struct {
	State         State
	Identity      *Identity
	Notifications []Notification
	Generation    uint64
}

// SignedIn reports whether an identity is loaded.
func (s Snapshot) SignedIn() bool {
	return s.State == StateAuthenticated && s.Identity != nil
}

// Unread counts the notifications not yet read.
func (s Snapshot) Unread() int {
	n := 0
	for _, note := range s.Notifications {
		if !note.IsRead {
			n++
		}
	}
	return n
}

// assemble builds an Identity from the rows loaded for a session.
func assemble(profile *entities.User, confirmed bool, rows []entities.UserBook) *Identity {
	id := &Identity{
		ID:             profile.ID,
		Name:           profile.Name,
		Email:          strings.ToLower(profile.Email),
		Role:           profile.Role,
		JoinedDate:     profile.JoinedDate,
		EmailConfirmed: confirmed,
	}
	if profile.Avatar != nil {
		id.Avatar = *profile.Avatar
	}

	for _, row := range rows {
		switch row.RelationshipType {
		case entities.RelationshipBorrowed:
			id.BorrowedBooks = append(id.BorrowedBooks, row.BookID)
		case entities.RelationshipPurchased:
			id.PurchasedBooks = append(id.PurchasedBooks, row.BookID)
		case entities.RelationshipExchange:
			id.ExchangeHistory = append(id.ExchangeHistory, row.BookID)
		case entities.RelationshipWishlist:
			id.Wishlist = append(id.Wishlist, row.BookID)
		}
	}

	if row := currentlyReading(rows); row != nil {
		reading := &Reading{BookID: row.BookID, Progress: row.Progress, Sync: SyncConfirmed}
		if row.LastPosition != nil {
			reading.Position = *row.LastPosition
		}
		id.CurrentlyReading = reading
	}
	return id
}

// currentlyReading picks the borrowed, partially read row. When several
// qualify, the most recently updated wins and the lowest book id breaks a
// tie.
func currentlyReading(rows []entities.UserBook) *entities.UserBook {
	var best *entities.UserBook
	for i := range rows {
		row := &rows[i]
		if !row.InProgress() {
			continue
		}
		if best == nil ||
			row.UpdatedAt.After(best.UpdatedAt) ||
			(row.UpdatedAt.Equal(best.UpdatedAt) && row.BookID < best.BookID) {
			best = row
		}
	}
	return best
}

func notificationsFrom(rows []entities.Notification) []Notification {
	out := make([]Notification, 0, len(rows))
	for _, n := range rows {
		out = append(out, Notification{
			ID:        n.ID,
			Type:      n.Type,
			Title:     n.Title,
			Message:   n.Message,
			IsRead:    n.IsRead,
			Metadata:  n.Metadata,
			CreatedAt: n.CreatedAt,
			Sync:      SyncConfirmed,
		})
	}
	return out
}

// clone copies an identity so a new snapshot can change it.
func (i *Identity) clone() *Identity {
	c := *i
	c.BorrowedBooks = slices.Clone(i.BorrowedBooks)
	c.PurchasedBooks = slices.Clone(i.PurchasedBooks)
	c.ExchangeHistory = slices.Clone(i.ExchangeHistory)
	c.Wishlist = slices.Clone(i.Wishlist)
	if i.CurrentlyReading != nil {
		r := *i.CurrentlyReading
		c.CurrentlyReading = &r
	}
	return &c
}
