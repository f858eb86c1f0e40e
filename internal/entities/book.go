package entities

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrBookTitleRequired   = errors.New("title is required")
	ErrBookAuthorRequired  = errors.New("author is required")
	ErrBookTypeInvalid     = errors.New("type must be free, paid or physical")
	ErrBookCategoryInvalid = errors.New("unknown category")
	ErrBookGenreInvalid    = errors.New("unknown genre")
	ErrBookPriceRequired   = errors.New("price is required for paid and physical books")
	ErrBookPriceNegative   = errors.New("price must not be negative")
	ErrBookPagesInvalid    = errors.New("pages must be positive")
	ErrBookDateInvalid     = errors.New("published date must be YYYY-MM-DD")
)

type BookType string

const (
	BookTypeFree     BookType = "free"
	BookTypePaid     BookType = "paid"
	BookTypePhysical BookType = "physical"
)

// Valid reports whether t is one of the known book types.
func (t BookType) Valid() bool {
	switch t {
	case BookTypeFree, BookTypePaid, BookTypePhysical:
		return true
	}
	return false
}

// Categories is the fixed set of catalog categories.
var Categories = []string{
	"Technology",
	"Arts",
	"Health",
	"Business",
	"Science",
	"Literature",
	"History",
}

// Genres is the fixed set of catalog genres.
var Genres = []string{
	"Fiction",
	"Non-Fiction",
	"Programming",
	"Photography",
	"Self-Help",
	"Management",
	"Environmental",
}

type Book struct {
	ID            string    `gorm:"primaryKey;size:36" json:"id"`
	Title         string    `gorm:"index;size:512" json:"title"`
	Author        string    `gorm:"index;size:256" json:"author"`
	Category      string    `gorm:"index;size:64" json:"category"`
	Genre         string    `gorm:"index;size:64" json:"genre"`
	Cover         string    `gorm:"size:2048" json:"cover"`
	Description   string    `gorm:"type:text" json:"description"`
	Rating        float64   `gorm:"default:0" json:"rating"`
	Reviews       int       `gorm:"default:0" json:"reviews"`
	Type          BookType  `gorm:"size:16;not null" json:"type"`
	Price         *float64  `json:"price,omitempty"`
	IsAvailable   bool      `gorm:"default:true" json:"is_available"`
	PublishedDate string    `gorm:"size:10" json:"published_date"` // YYYY-MM-DD
	Pages         *int      `json:"pages,omitempty"`
	ISBN          *string   `gorm:"size:20" json:"isbn,omitempty"`
	Content       []string  `gorm:"serializer:json" json:"content,omitempty"` // Ordered chapter titles
	CreatedAt     time.Time `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Book) TableName() string {
	return "books"
}

// BeforeCreate assigns a server-side id.
func (b *Book) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	return nil
}

// Validate checks the fields a caller controls. Rating, reviews, id and
// timestamps are ignored.
func (b *Book) Validate() error {
	if strings.TrimSpace(b.Title) == "" {
		return ErrBookTitleRequired
	}
	if strings.TrimSpace(b.Author) == "" {
		return ErrBookAuthorRequired
	}
	if !b.Type.Valid() {
		return ErrBookTypeInvalid
	}
	if b.Category != "" && !slices.Contains(Categories, b.Category) {
		return ErrBookCategoryInvalid
	}
	if b.Genre != "" && !slices.Contains(Genres, b.Genre) {
		return ErrBookGenreInvalid
	}
	if b.Type != BookTypeFree {
		if b.Price == nil {
			return ErrBookPriceRequired
		}
		if *b.Price < 0 {
			return ErrBookPriceNegative
		}
	}
	if b.Pages != nil && *b.Pages <= 0 {
		return ErrBookPagesInvalid
	}
	if b.PublishedDate != "" {
		if _, err := time.Parse(time.DateOnly, b.PublishedDate); err != nil {
			return ErrBookDateInvalid
		}
	}
	return nil
}
