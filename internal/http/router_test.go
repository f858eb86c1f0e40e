package http

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/libris/internal/backend/backendtest"
	"github.com/mrlokans/libris/internal/config"
	"github.com/mrlokans/libris/internal/entities"
	"github.com/mrlokans/libris/internal/identity"
	"github.com/mrlokans/libris/internal/remote"
)

const testAPIKey = "test-api-key"

type apiFixture struct {
	harness *backendtest.Harness
	router  *gin.Engine
}

func setupAPI(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	h := backendtest.New(t)
	limiter := identity.NewRateLimiter(config.Auth{
		MaxLoginAttempts: 3,
		RateLimitWindow:  time.Minute,
		LockoutDuration:  time.Minute,
	})
	t.Cleanup(limiter.Stop)

	router := NewRouter(RouterConfig{
		Backend:     h.Backend,
		Database:    h.DB,
		Sessions:    h.Sessions,
		APIKey:      testAPIKey,
		RateLimiter: limiter,
		Version:     "test",
	})
	return &apiFixture{harness: h, router: router}
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, path, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(identity.HeaderAPIKey, testAPIKey)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *apiFixture) signIn(t *testing.T, email string) string {
	t.Helper()
	w := f.do(t, "POST", "/auth/v1/token", "", CredentialsRequest{Email: email, Password: backendtest.Password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var session remote.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))
	return session.AccessToken
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var response ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response
}

func TestRouter_RequiresAPIKey(t *testing.T) {
	f := setupAPI(t)

	req, _ := http.NewRequest("GET", "/rest/v1/books", nil)
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "invalid_api_key", decodeError(t, w).Code)

	req, _ = http.NewRequest("GET", "/ping", nil)
	w = httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_RejectsUnknownBearer(t *testing.T) {
	f := setupAPI(t)

	w := f.do(t, "GET", "/rest/v1/books", "forged", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_SessionLifecycle(t *testing.T) {
	f := setupAPI(t)

	w := f.do(t, "POST", "/auth/v1/signup", "", CredentialsRequest{Email: "new@example.com", Password: backendtest.Password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var session remote.Session
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &session))

	w = f.do(t, "GET", "/auth/v1/session", session.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, "POST", "/auth/v1/signup", "", CredentialsRequest{Email: "new@example.com", Password: backendtest.Password})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, remote.CodeUserExists, decodeError(t, w).Code)

	w = f.do(t, "POST", "/auth/v1/logout", session.AccessToken, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, "GET", "/auth/v1/session", session.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, "GET", "/auth/v1/session", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_SignInRateLimited(t *testing.T) {
	f := setupAPI(t)
	f.harness.SeedUser(t, "Reader", "reader@example.com")

	for i := 0; i < 3; i++ {
		w := f.do(t, "POST", "/auth/v1/token", "", CredentialsRequest{Email: "reader@example.com", Password: "Wrong123"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, remote.CodeInvalidCredentials, decodeError(t, w).Code)
	}

	w := f.do(t, "POST", "/auth/v1/token", "", CredentialsRequest{Email: "reader@example.com", Password: backendtest.Password})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, remote.CodeTooManyAttempts, decodeError(t, w).Code)
}

func TestRouter_BooksCRUD(t *testing.T) {
	f := setupAPI(t)
	f.harness.SeedAdmin(t, "Admin", "admin@example.com")
	f.harness.SeedUser(t, "Reader", "reader@example.com")
	admin := f.signIn(t, "admin@example.com")
	reader := f.signIn(t, "reader@example.com")

	price := 29.99
	draft := entities.Book{
		Title:    "Test Book",
		Author:   "Author",
		Category: "Technology",
		Genre:    "Programming",
		Type:     entities.BookTypePaid,
		Price:    &price,
	}

	w := f.do(t, "POST", "/rest/v1/books", "", draft)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do(t, "POST", "/rest/v1/books", reader, draft)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, "POST", "/rest/v1/books", admin, draft)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created entities.Book
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	require.NotNil(t, created.Price)
	assert.Equal(t, 29.99, *created.Price)

	w = f.do(t, "GET", "/rest/v1/books/"+created.ID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	draft.Title = "Renamed"
	w = f.do(t, "PUT", "/rest/v1/books/"+created.ID, admin, draft)
	require.Equal(t, http.StatusOK, w.Code)
	var updated entities.Book
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &updated))
	assert.Equal(t, "Renamed", updated.Title)

	w = f.do(t, "PUT", "/rest/v1/books/missing", admin, draft)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, remote.CodeNotFound, decodeError(t, w).Code)

	w = f.do(t, "DELETE", "/rest/v1/books/"+created.ID, admin, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = f.do(t, "GET", "/rest/v1/books/"+created.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRouter_PasscodeConfirmation(t *testing.T) {
	f := setupAPI(t)
	f.harness.SeedUser(t, "Jane", "jane@example.com")

	w := f.do(t, "POST", "/auth/v1/confirm", "", EmailRequest{Email: "jane@example.com"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, "PUT", "/rest/v1/otp_codes", "", remote.PasscodeUpsert{
		Email: "jane@example.com",
		Code:  "123456",
		Type:  entities.PasscodeVerification,
	})
	require.Equal(t, http.StatusNoContent, w.Code, w.Body.String())

	w = f.do(t, "POST", "/rest/v1/otp_codes/lookup", "", PasscodeLookupRequest{
		Email: "jane@example.com", Code: "000000", Type: entities.PasscodeVerification,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, "POST", "/rest/v1/otp_codes/lookup", "", PasscodeLookupRequest{
		Email: "jane@example.com", Code: "123456", Type: entities.PasscodeVerification,
	})
	require.Equal(t, http.StatusOK, w.Code)
	var record remote.PasscodeRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))

	w = f.do(t, "PATCH", "/rest/v1/otp_codes/"+record.ID+"/used", "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = f.do(t, "PATCH", "/rest/v1/otp_codes/"+record.ID+"/used", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(t, "POST", "/auth/v1/confirm", "", EmailRequest{Email: "jane@example.com"})
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRouter_DeliverPasscode(t *testing.T) {
	f := setupAPI(t)

	w := f.do(t, "POST", "/functions/v1/deliver-passcode", "", PasscodeLookupRequest{
		Email: "jane@example.com", Code: "654321", Type: entities.PasscodeReset,
	})
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "654321", f.harness.LastCode(t, "jane@example.com", entities.PasscodeReset))
}

func TestRouter_UserRows(t *testing.T) {
	f := setupAPI(t)
	reader := f.harness.SeedUser(t, "Reader", "reader@example.com")
	f.harness.SeedUser(t, "Other", "other@example.com")
	token := f.signIn(t, "reader@example.com")
	other := f.signIn(t, "other@example.com")
	book := f.harness.SeedBook(t, "Reading")

	w := f.do(t, "PUT", "/rest/v1/user_books", token, entities.UserBook{
		BookID:           book.ID,
		RelationshipType: entities.RelationshipBorrowed,
		Progress:         40,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(t, "GET", "/rest/v1/user_books?user_id="+reader.ID, token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rows []entities.UserBook
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, 40, rows[0].Progress)

	w = f.do(t, "GET", "/rest/v1/user_books?user_id="+reader.ID, other, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = f.do(t, "GET", "/rest/v1/user_books", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, "GET", "/rest/v1/users/"+reader.ID, token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, "GET", "/rest/v1/users", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouter_SettingsAndAudit(t *testing.T) {
	f := setupAPI(t)
	f.harness.SeedAdmin(t, "Admin", "admin@example.com")
	admin := f.signIn(t, "admin@example.com")

	w := f.do(t, "PUT", "/rest/v1/settings/"+entities.SettingKeyRegistrationOpen, admin, SettingRequest{Value: "false"})
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, "POST", "/auth/v1/signup", "", CredentialsRequest{Email: "late@example.com", Password: backendtest.Password})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, remote.CodeSignupDisabled, decodeError(t, w).Code)

	w = f.do(t, "GET", "/rest/v1/audit_events?limit=10", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var page PaginatedResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	assert.Equal(t, 10, page.Limit)
}
