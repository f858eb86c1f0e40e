// Package books provides database operations for the catalog.
//
// # Usage
//
//	repo := books.NewRepository(db)
//	book, err := repo.GetBookByID(id)
package books

import (
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/libris/internal/entities"
)

// updatableColumns are replaced wholesale by UpdateBook. Identity, creation
// time and the review aggregates are never written through an edit.
var updatableColumns = []string{
	"title",
	"author",
	"category",
	"genre",
	"cover",
	"description",
	"type",
	"price",
	"is_available",
	"published_date",
	"pages",
	"isbn",
	"content",
	"updated_at",
}

// Repository handles all book database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new books repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// ListBooks returns the whole catalog, newest first.
func (r *Repository) ListBooks() ([]entities.Book, error) {
	var books []entities.Book
	err := r.db.Order("created_at DESC").Order("id ASC").Find(&books).Error
	return books, err
}

// GetBookByID retrieves a book by its ID.
func (r *Repository) GetBookByID(id string) (*entities.Book, error) {
	var book entities.Book
	err := r.db.Where("id = ?", id).First(&book).Error
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// CreateBook inserts a new book. The server assigns ID and timestamps.
func (r *Repository) CreateBook(book *entities.Book) error {
	return r.db.Create(book).Error
}

// UpdateBook replaces the editable fields of the book with book.ID and
// returns the number of rows changed.
func (r *Repository) UpdateBook(book *entities.Book) (int64, error) {
	book.UpdatedAt = time.Now()
	result := r.db.Model(&entities.Book{}).
		Where("id = ?", book.ID).
		Select(updatableColumns).
		Updates(book)
	return result.RowsAffected, result.Error
}

// DeleteBook removes a book and returns the number of rows removed.
func (r *Repository) DeleteBook(id string) (int64, error) {
	result := r.db.Where("id = ?", id).Delete(&entities.Book{})
	return result.RowsAffected, result.Error
}

// CountBooks returns the catalog size.
func (r *Repository) CountBooks() (int64, error) {
	var count int64
	err := r.db.Model(&entities.Book{}).Count(&count).Error
	return count, err
}
