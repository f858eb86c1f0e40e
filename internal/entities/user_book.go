package entities

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RelationshipType string

const (
	RelationshipBorrowed  RelationshipType = "borrowed"
	RelationshipPurchased RelationshipType = "purchased"
	RelationshipWishlist  RelationshipType = "wishlist"
	RelationshipExchange  RelationshipType = "exchange"
)

type RelationshipStatus string

const (
	RelationshipActive    RelationshipStatus = "active"
	RelationshipReturned  RelationshipStatus = "returned"
	RelationshipCompleted RelationshipStatus = "completed"
	RelationshipPending   RelationshipStatus = "pending"
)

// UserBook is one relationship instance between a user and a book.
type UserBook struct {
	ID               string             `gorm:"primaryKey;size:36" json:"id"`
	UserID           string             `gorm:"size:36;uniqueIndex:idx_user_book_kind;index" json:"user_id"`
	BookID           string             `gorm:"size:36;uniqueIndex:idx_user_book_kind" json:"book_id"`
	RelationshipType RelationshipType   `gorm:"size:16;uniqueIndex:idx_user_book_kind" json:"relationship_type"`
	Status           RelationshipStatus `gorm:"size:16;default:'active'" json:"status"`
	Progress         int                `gorm:"default:0" json:"progress"` // 0-100
	LastPosition     *string            `gorm:"size:512" json:"last_position,omitempty"`
	AcquiredDate     time.Time          `json:"acquired_date"`
	DueDate          *time.Time         `json:"due_date,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
}

func (UserBook) TableName() string {
	return "user_books"
}

func (ub *UserBook) BeforeCreate(tx *gorm.DB) error {
	if ub.ID == "" {
		ub.ID = uuid.NewString()
	}
	if ub.AcquiredDate.IsZero() {
		ub.AcquiredDate = time.Now()
	}
	return nil
}

// InProgress reports whether a borrowed book is partially read.
func (ub *UserBook) InProgress() bool {
	return ub.RelationshipType == RelationshipBorrowed && ub.Progress > 0 && ub.Progress < 100
}

// StatusForProgress derives the relationship status from reading progress.
func StatusForProgress(progress int) RelationshipStatus {
	if progress >= 100 {
		return RelationshipCompleted
	}
	return RelationshipActive
}
