package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/libris/internal/backend"
	"github.com/mrlokans/libris/internal/entities"
	"github.com/mrlokans/libris/internal/identity"
)

// BooksController exposes the books table.
type BooksController struct {
	backend *backend.Backend
}

func NewBooksController(b *backend.Backend) *BooksController {
	return &BooksController{backend: b}
}

// List returns the whole catalog, newest first.
// GET /rest/v1/books
func (bc *BooksController) List(c *gin.Context) {
	books, err := bc.backend.ListBooks(c.Request.Context())
	if err != nil {
		respondError(c, err, "list books")
		return
	}
	c.JSON(http.StatusOK, books)
}

// GET /rest/v1/books/:id
func (bc *BooksController) Get(c *gin.Context) {
	book, err := bc.backend.GetBook(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, "get book")
		return
	}
	c.JSON(http.StatusOK, book)
}

// Create inserts a book and returns the stored row.
// POST /rest/v1/books
func (bc *BooksController) Create(c *gin.Context) {
	var book entities.Book
	if !bindJSON(c, &book) {
		return
	}

	created, err := bc.backend.CreateBook(c.Request.Context(), identity.PrincipalFrom(c), &book)
	if err != nil {
		respondError(c, err, "create book")
		return
	}
	c.JSON(http.StatusCreated, created)
}

// Update replaces the book at :id. The id in the body is ignored.
// PUT /rest/v1/books/:id
func (bc *BooksController) Update(c *gin.Context) {
	var book entities.Book
	if !bindJSON(c, &book) {
		return
	}
	book.ID = c.Param("id")

	updated, err := bc.backend.UpdateBook(c.Request.Context(), identity.PrincipalFrom(c), &book)
	if err != nil {
		respondError(c, err, "update book")
		return
	}
	c.JSON(http.StatusOK, updated)
}

// DELETE /rest/v1/books/:id
func (bc *BooksController) Delete(c *gin.Context) {
	if err := bc.backend.DeleteBook(c.Request.Context(), identity.PrincipalFrom(c), c.Param("id")); err != nil {
		respondError(c, err, "delete book")
		return
	}
	c.Status(http.StatusNoContent)
}
