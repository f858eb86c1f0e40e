package backend

import (
	"context"
	"errors"

	"github.com/mrlokans/libris/internal/entities"
	"github.com/mrlokans/libris/internal/identity"
	"github.com/mrlokans/libris/internal/remote"
)

// ListBooks returns the catalog, newest first. Anyone may read it.
func (b *Backend) ListBooks(ctx context.Context) ([]entities.Book, error) {
	list, err := b.books(ctx).ListBooks()
	if err != nil {
		return nil, storeErr("list books", err)
	}
	return list, nil
}

func (b *Backend) GetBook(ctx context.Context, id string) (*entities.Book, error) {
	book, err := b.books(ctx).GetBookByID(id)
	if err != nil {
		return nil, storeErr("get book", err)
	}
	return book, nil
}

// CreateBook inserts a book. The server assigns id and creation time and
// starts rating and reviews at zero.
func (b *Backend) CreateBook(ctx context.Context, p *identity.Principal, book *entities.Book) (*entities.Book, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	if err := book.Validate(); err != nil {
		return nil, remote.Invalid(err.Error())
	}

	row := *book
	row.ID = ""
	row.Rating = 0
	row.Reviews = 0
	row.CreatedAt = b.now()
	row.UpdatedAt = row.CreatedAt

	err := b.books(ctx).CreateBook(&row)
	b.audit.LogCatalog(p.UserID, "book_create", row.ID, row.Title, err)
	if err != nil {
		return nil, storeErr("create book", err)
	}
	return &row, nil
}

// UpdateBook replaces every field of the book except id, rating, reviews
// and creation time. A missing id reports remote.ErrNotFound.
func (b *Backend) UpdateBook(ctx context.Context, p *identity.Principal, book *entities.Book) (*entities.Book, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	if err := book.Validate(); err != nil {
		return nil, remote.Invalid(err.Error())
	}

	repo := b.books(ctx)
	row := *book
	rows, err := repo.UpdateBook(&row)
	if err == nil && rows == 0 {
		err = remote.ErrNotFound
	}
	b.audit.LogCatalog(p.UserID, "book_update", book.ID, book.Title, err)
	if errors.Is(err, remote.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, storeErr("update book", err)
	}

	updated, err := repo.GetBookByID(book.ID)
	if err != nil {
		return nil, storeErr("reload book", err)
	}
	return updated, nil
}

// DeleteBook removes a book and every relationship pointing at it.
func (b *Backend) DeleteBook(ctx context.Context, p *identity.Principal, id string) error {
	if err := requireAdmin(p); err != nil {
		return err
	}

	rows, err := b.books(ctx).DeleteBook(id)
	if err == nil && rows == 0 {
		err = remote.ErrNotFound
	}
	b.audit.LogCatalog(p.UserID, "book_delete", id, "", err)
	if errors.Is(err, remote.ErrNotFound) {
		return err
	}
	if err != nil {
		return storeErr("delete book", err)
	}

	if _, err := b.userBooks(ctx).DeleteForBook(id); err != nil {
		return storeErr("delete book relationships", err)
	}
	return nil
}
