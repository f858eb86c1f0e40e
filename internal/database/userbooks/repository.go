// Package userbooks provides database operations for user to book
// relationships (borrowed, purchased, wishlist, exchange) and reading
// progress.
package userbooks

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/libris/internal/entities"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListForUser returns every relationship of a user, most recently touched
// first.
func (r *Repository) ListForUser(userID string) ([]entities.UserBook, error) {
	var rows []entities.UserBook
	err := r.db.Where("user_id = ?", userID).
		Order("updated_at DESC").
		Order("book_id ASC").
		Find(&rows).Error
	return rows, err
}

// Get returns the relationship of a given kind between a user and a book.
func (r *Repository) Get(userID, bookID string, kind entities.RelationshipType) (*entities.UserBook, error) {
	var row entities.UserBook
	err := r.db.Where("user_id = ? AND book_id = ? AND relationship_type = ?", userID, bookID, kind).
		First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Upsert inserts the relationship or, when one of the same kind already
// exists for the user and book, overwrites its mutable fields. The stored
// row is returned.
func (r *Repository) Upsert(row *entities.UserBook) (*entities.UserBook, error) {
	row.UpdatedAt = time.Now()
	err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "book_id"}, {Name: "relationship_type"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"status",
			"progress",
			"last_position",
			"due_date",
			"updated_at",
		}),
	}).Create(row).Error
	if err != nil {
		return nil, err
	}
	return r.Get(row.UserID, row.BookID, row.RelationshipType)
}

// DeleteForBook removes every relationship that points at a book.
func (r *Repository) DeleteForBook(bookID string) (int64, error) {
	result := r.db.Where("book_id = ?", bookID).Delete(&entities.UserBook{})
	return result.RowsAffected, result.Error
}

// DeleteForUser removes every relationship of a user.
func (r *Repository) DeleteForUser(userID string) (int64, error) {
	result := r.db.Where("user_id = ?", userID).Delete(&entities.UserBook{})
	return result.RowsAffected, result.Error
}
