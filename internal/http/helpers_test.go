package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/libris/internal/remote"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{remote.Transport(errors.New("timeout")), http.StatusServiceUnavailable},
		{remote.ErrInvalidCredentials, http.StatusBadRequest},
		{remote.Invalid("bad"), http.StatusBadRequest},
		{remote.ErrAlreadyRegistered, http.StatusUnprocessableEntity},
		{remote.ErrAccountLocked, http.StatusLocked},
		{remote.ErrTooManyAttempts, http.StatusTooManyRequests},
		{remote.ErrUnauthorized, http.StatusUnauthorized},
		{remote.ErrForbidden, http.StatusForbidden},
		{remote.ErrRegistrationClosed, http.StatusForbidden},
		{remote.ErrNotFound, http.StatusNotFound},
		{errors.New("disk full"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.status, statusFor(tt.err))
		})
	}
}

func TestRespondError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("known errors carry message and code", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		respondError(c, remote.Invalid("name is required"), "test")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var response ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "invalid input: name is required", response.Error)
		assert.Equal(t, remote.CodeInvalidInput, response.Code)
	})

	t.Run("unknown errors are not exposed", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		respondError(c, errors.New("constraint failed: users.email"), "test")

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "constraint")
	})
}

func TestParseIntQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		query    string
		expected int
	}{
		{"", 25},
		{"limit=10", 10},
		{"limit=-1", 25},
		{"limit=abc", 25},
		{"limit=500", 100},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request, _ = http.NewRequest("GET", "/?"+tt.query, nil)

			assert.Equal(t, tt.expected, parseIntQuery(c, "limit", 25, 100))
		})
	}
}
