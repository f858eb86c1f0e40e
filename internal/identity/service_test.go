package identity

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mrlokans/libris/internal/config"
	"github.com/mrlokans/libris/internal/database"
)

func testAuthConfig() config.Auth {
	return config.Auth{
		SessionLifetime:  time.Hour,
		BcryptCost:       4,
		MaxLoginAttempts: 3,
		RateLimitWindow:  time.Minute,
		LockoutDuration:  time.Minute,
	}
}

func setupService(t *testing.T) *Service {
	t.Helper()
	db := database.NewTestDatabase(t)
	return NewService(db.DB, testAuthConfig())
}

func TestService_Register(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{name: "valid", email: "Jane@Example.com", password: "Secret1"},
		{name: "duplicate is case insensitive", email: "jane@example.com", password: "Secret1", wantErr: ErrAccountExists},
		{name: "empty email", email: " ", password: "Secret1", wantErr: ErrEmailRequired},
		{name: "malformed email", email: "jane", password: "Secret1", wantErr: ErrEmailInvalid},
		{name: "weak password", email: "john@example.com", password: "secret", wantErr: ErrPasswordNoUpper},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			account, err := svc.Register(ctx, tt.email, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "jane@example.com", account.Email)
			assert.NotEqual(t, tt.password, account.PasswordHash)
			assert.False(t, account.EmailConfirmed())
		})
	}
}

func TestService_Authenticate(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, "jane@example.com", "Secret1")
	require.NoError(t, err)

	account, err := svc.Authenticate(ctx, "JANE@example.com", "Secret1")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, account.ID)
	assert.NotNil(t, account.LastLoginAt)

	_, err = svc.Authenticate(ctx, "jane@example.com", "Wrong1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = svc.Authenticate(ctx, "nobody@example.com", "Secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials, "unknown email looks like a wrong password")
}

func TestService_Authenticate_LocksAfterRepeatedFailures(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	_, err := svc.Register(ctx, "jane@example.com", "Secret1")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err = svc.Authenticate(ctx, "jane@example.com", "Wrong1")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	}

	_, err = svc.Authenticate(ctx, "jane@example.com", "Secret1")
	assert.ErrorIs(t, err, ErrAccountLocked)

	now = now.Add(2 * time.Minute)
	_, err = svc.Authenticate(ctx, "jane@example.com", "Secret1")
	assert.NoError(t, err)
}

func TestService_SetPassword(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	account, err := svc.Register(ctx, "jane@example.com", "Secret1")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.SetPassword(ctx, account.ID, "Abcdef"), ErrPasswordNoDigit)
	require.NoError(t, svc.SetPassword(ctx, account.ID, "Abcdef1"))
	assert.ErrorIs(t, svc.SetPassword(ctx, "missing", "Abcdef1"), ErrAccountNotFound)

	_, err = svc.Authenticate(ctx, "jane@example.com", "Secret1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(ctx, "jane@example.com", "Abcdef1")
	assert.NoError(t, err)
}

func TestService_ConfirmEmail(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	account, err := svc.Register(ctx, "jane@example.com", "Secret1")
	require.NoError(t, err)

	require.NoError(t, svc.ConfirmEmail(ctx, account.ID))
	require.NoError(t, svc.ConfirmEmail(ctx, account.ID))
	assert.ErrorIs(t, svc.ConfirmEmail(ctx, "missing"), ErrAccountNotFound)

	got, err := svc.GetAccount(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, got.EmailConfirmed())
}

func TestService_DeleteAccount(t *testing.T) {
	svc := setupService(t)
	ctx := context.Background()

	account, err := svc.Register(ctx, "jane@example.com", "Secret1")
	require.NoError(t, err)
	require.NoError(t, svc.DeleteAccount(ctx, account.ID))

	_, err = svc.FindAccount(ctx, "jane@example.com")
	assert.ErrorIs(t, err, ErrAccountNotFound)

	count, err := svc.CountAccounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
}

func TestService_FailedLoginWriteIsLogged(t *testing.T) {
	db := database.NewTestDatabase(t)
	svc := NewService(db.DB, testAuthConfig())
	ctx := context.Background()

	_, err := svc.Register(ctx, "reader@example.com", "Secret1")
	require.NoError(t, err)

	require.NoError(t, db.DB.Callback().Update().Before("gorm:update").Register("test:fail_update", func(tx *gorm.DB) {
		tx.AddError(errors.New("disk I/O error"))
	}))

	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stderr) })

	_, err = svc.Authenticate(ctx, "reader@example.com", "Wrong1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Contains(t, buf.String(), "Could not record failed login for reader@example.com")
	assert.Contains(t, buf.String(), "disk I/O error")
}
