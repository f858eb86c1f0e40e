package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/libris/internal/backend"
	"github.com/mrlokans/libris/internal/entities"
	"github.com/mrlokans/libris/internal/identity"
)

// UsersController exposes profiles, relationships and notifications: the
// rows owned by a user.
type UsersController struct {
	backend *backend.Backend
}

func NewUsersController(b *backend.Backend) *UsersController {
	return &UsersController{backend: b}
}

// ListProfiles returns every profile. Admins only.
// GET /rest/v1/users
func (uc *UsersController) ListProfiles(c *gin.Context) {
	users, err := uc.backend.ListProfiles(c.Request.Context(), identity.PrincipalFrom(c))
	if err != nil {
		respondError(c, err, "list profiles")
		return
	}
	c.JSON(http.StatusOK, users)
}

// GET /rest/v1/users/:id
func (uc *UsersController) GetProfile(c *gin.Context) {
	user, err := uc.backend.GetProfile(c.Request.Context(), identity.PrincipalFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err, "get profile")
		return
	}
	c.JSON(http.StatusOK, user)
}

// InsertProfile creates the caller's profile.
// POST /rest/v1/users
func (uc *UsersController) InsertProfile(c *gin.Context) {
	var user entities.User
	if !bindJSON(c, &user) {
		return
	}

	created, err := uc.backend.InsertProfile(c.Request.Context(), identity.PrincipalFrom(c), &user)
	if err != nil {
		respondError(c, err, "insert profile")
		return
	}
	c.JSON(http.StatusCreated, created)
}

// ListUserBooks returns the relationships of ?user_id=.
// GET /rest/v1/user_books
func (uc *UsersController) ListUserBooks(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		respondBadRequest(c, "user_id is required")
		return
	}

	rows, err := uc.backend.ListUserBooks(c.Request.Context(), identity.PrincipalFrom(c), userID)
	if err != nil {
		respondError(c, err, "list user books")
		return
	}
	c.JSON(http.StatusOK, rows)
}

// UpsertUserBook writes one of the caller's relationships, keyed by
// (user, book, relationship type).
// PUT /rest/v1/user_books
func (uc *UsersController) UpsertUserBook(c *gin.Context) {
	var row entities.UserBook
	if !bindJSON(c, &row) {
		return
	}

	stored, err := uc.backend.UpsertUserBook(c.Request.Context(), identity.PrincipalFrom(c), &row)
	if err != nil {
		respondError(c, err, "upsert user book")
		return
	}
	c.JSON(http.StatusOK, stored)
}

// ListNotifications returns the notifications of ?user_id=, newest first.
// GET /rest/v1/notifications
func (uc *UsersController) ListNotifications(c *gin.Context) {
	userID := c.Query("user_id")
	if userID == "" {
		respondBadRequest(c, "user_id is required")
		return
	}

	rows, err := uc.backend.ListNotifications(c.Request.Context(), identity.PrincipalFrom(c), userID)
	if err != nil {
		respondError(c, err, "list notifications")
		return
	}
	c.JSON(http.StatusOK, rows)
}

// Notify sends a notification to a user. Admins only.
// POST /rest/v1/notifications
func (uc *UsersController) Notify(c *gin.Context) {
	var n entities.Notification
	if !bindJSON(c, &n) {
		return
	}

	created, err := uc.backend.Notify(c.Request.Context(), identity.PrincipalFrom(c), &n)
	if err != nil {
		respondError(c, err, "notify")
		return
	}
	c.JSON(http.StatusCreated, created)
}

// MarkNotificationRead flags one of the caller's notifications as read.
// PATCH /rest/v1/notifications/:id/read
func (uc *UsersController) MarkNotificationRead(c *gin.Context) {
	if err := uc.backend.MarkNotificationRead(c.Request.Context(), identity.PrincipalFrom(c), c.Param("id")); err != nil {
		respondError(c, err, "mark notification read")
		return
	}
	c.Status(http.StatusNoContent)
}
