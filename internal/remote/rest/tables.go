package rest

import (
	"context"
	"net/http"
	"net/url"

	"github.com/mrlokans/libris/internal/entities"
	"github.com/mrlokans/libris/internal/remote"
)

func (c *Client) ListBooks(ctx context.Context) ([]entities.Book, error) {
	var books []entities.Book
	if err := c.do(ctx, http.MethodGet, "/rest/v1/books", nil, &books); err != nil {
		return nil, err
	}
	return books, nil
}

func (c *Client) GetBook(ctx context.Context, id string) (*entities.Book, error) {
	var book entities.Book
	if err := c.do(ctx, http.MethodGet, "/rest/v1/books/"+url.PathEscape(id), nil, &book); err != nil {
		return nil, err
	}
	return &book, nil
}

func (c *Client) InsertBook(ctx context.Context, book *entities.Book) (*entities.Book, error) {
	var created entities.Book
	if err := c.do(ctx, http.MethodPost, "/rest/v1/books", book, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) UpdateBook(ctx context.Context, book *entities.Book) (*entities.Book, error) {
	var updated entities.Book
	if err := c.do(ctx, http.MethodPut, "/rest/v1/books/"+url.PathEscape(book.ID), book, &updated); err != nil {
		return nil, err
	}
	return &updated, nil
}

func (c *Client) DeleteBook(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/rest/v1/books/"+url.PathEscape(id), nil, nil)
}

func (c *Client) GetProfile(ctx context.Context, id string) (*entities.User, error) {
	var user entities.User
	if err := c.do(ctx, http.MethodGet, "/rest/v1/users/"+url.PathEscape(id), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) InsertProfile(ctx context.Context, user *entities.User) (*entities.User, error) {
	var created entities.User
	if err := c.do(ctx, http.MethodPost, "/rest/v1/users", user, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) ListProfiles(ctx context.Context) ([]entities.User, error) {
	var users []entities.User
	if err := c.do(ctx, http.MethodGet, "/rest/v1/users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (c *Client) ListUserBooks(ctx context.Context, userID string) ([]entities.UserBook, error) {
	var rows []entities.UserBook
	path := "/rest/v1/user_books?user_id=" + url.QueryEscape(userID)
	if err := c.do(ctx, http.MethodGet, path, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) UpsertUserBook(ctx context.Context, row *entities.UserBook) (*entities.UserBook, error) {
	var stored entities.UserBook
	if err := c.do(ctx, http.MethodPut, "/rest/v1/user_books", row, &stored); err != nil {
		return nil, err
	}
	return &stored, nil
}

func (c *Client) ListNotifications(ctx context.Context, userID string) ([]entities.Notification, error) {
	var rows []entities.Notification
	path := "/rest/v1/notifications?user_id=" + url.QueryEscape(userID)
	if err := c.do(ctx, http.MethodGet, path, nil, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) MarkNotificationRead(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPatch, "/rest/v1/notifications/"+url.PathEscape(id)+"/read", nil, nil)
}

type passcodeRequest struct {
	Email string                   `json:"email"`
	Code  string                   `json:"code"`
	Type  entities.PasscodePurpose `json:"type"`
}

func (c *Client) UpsertPasscode(ctx context.Context, p remote.PasscodeUpsert) error {
	return c.do(ctx, http.MethodPut, "/rest/v1/otp_codes", p, nil)
}

func (c *Client) FindPasscode(ctx context.Context, email, code string, purpose entities.PasscodePurpose) (*remote.PasscodeRecord, error) {
	var record remote.PasscodeRecord
	req := passcodeRequest{Email: email, Code: code, Type: purpose}
	if err := c.do(ctx, http.MethodPost, "/rest/v1/otp_codes/lookup", req, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func (c *Client) MarkPasscodeUsed(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPatch, "/rest/v1/otp_codes/"+url.PathEscape(id)+"/used", nil, nil)
}

func (c *Client) DispatchPasscode(ctx context.Context, email, code string, purpose entities.PasscodePurpose) error {
	req := passcodeRequest{Email: email, Code: code, Type: purpose}
	return c.do(ctx, http.MethodPost, "/functions/v1/deliver-passcode", req, nil)
}
