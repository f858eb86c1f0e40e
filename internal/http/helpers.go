package http

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/libris/internal/backend"
	"github.com/mrlokans/libris/internal/remote"
)

// --- Response Types ---

// ErrorResponse is the standard error response format for all API errors.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"` // machine-readable error code, see remote.Code
}

// PaginatedResponse wraps paginated data with metadata.
type PaginatedResponse struct {
	Data    any   `json:"data"`
	Total   int64 `json:"total"`
	Limit   int   `json:"limit"`
	Offset  int   `json:"offset"`
	HasMore bool  `json:"has_more"`
}

// --- Error Response Helpers ---

// statusFor maps the remote error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, remote.ErrTransport):
		return http.StatusServiceUnavailable
	case errors.Is(err, remote.ErrInvalidCredentials), errors.Is(err, remote.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, remote.ErrAlreadyRegistered):
		return http.StatusUnprocessableEntity
	case errors.Is(err, remote.ErrAccountLocked):
		return http.StatusLocked
	case errors.Is(err, remote.ErrTooManyAttempts):
		return http.StatusTooManyRequests
	case errors.Is(err, remote.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, remote.ErrForbidden), errors.Is(err, remote.ErrRegistrationClosed):
		return http.StatusForbidden
	case errors.Is(err, remote.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// respondError sends err in the ErrorResponse shape. Errors outside the
// taxonomy are logged and reported as an internal error.
func respondError(c *gin.Context, err error, context string) {
	code := remote.Code(err)
	if code == remote.CodeInternal {
		log.Printf("Internal error (%s): %v", context, err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error", Code: code})
		return
	}
	c.JSON(statusFor(err), ErrorResponse{Error: err.Error(), Code: code})
}

// respondBadRequest sends a 400 Bad Request response.
func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message, Code: remote.CodeInvalidInput})
}

// --- Request Helpers ---

// requestMeta describes the caller for the audit trail.
func requestMeta(c *gin.Context) backend.RequestMeta {
	return backend.RequestMeta{
		IP:        c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
}

// bindJSON decodes the request body or responds with 400.
func bindJSON(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		respondBadRequest(c, "invalid request body")
		return false
	}
	return true
}

// parseIntQuery reads a non-negative integer query parameter, clamped to
// max when max > 0.
func parseIntQuery(c *gin.Context, name string, fallback, max int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil || v < 0 {
		return fallback
	}
	if max > 0 && v > max {
		return max
	}
	return v
}
