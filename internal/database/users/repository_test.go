package users

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mrlokans/libris/internal/database"
	"github.com/mrlokans/libris/internal/entities"
)

func setupTestRepo(t *testing.T) *Repository {
	t.Helper()
	return NewRepository(database.NewTestDatabase(t).DB)
}

func createAccount(t *testing.T, repo *Repository, email string) *entities.Account {
	t.Helper()
	account := &entities.Account{Email: email, PasswordHash: "hash"}
	require.NoError(t, repo.CreateAccount(account))
	return account
}

func TestRepository_CreateAccount_LowercasesEmail(t *testing.T) {
	repo := setupTestRepo(t)

	account := createAccount(t, repo, "Jane@Example.COM")
	assert.NotEmpty(t, account.ID)
	assert.Equal(t, "jane@example.com", account.Email)

	got, err := repo.GetAccountByEmail("JANE@example.com")
	require.NoError(t, err)
	assert.Equal(t, account.ID, got.ID)
	assert.False(t, got.EmailConfirmed())
}

func TestRepository_CreateAccount_DuplicateEmail(t *testing.T) {
	repo := setupTestRepo(t)

	createAccount(t, repo, "jane@example.com")
	err := repo.CreateAccount(&entities.Account{Email: "JANE@example.com", PasswordHash: "x"})
	assert.Error(t, err)
}

func TestRepository_GetAccountByEmail_NotFound(t *testing.T) {
	repo := setupTestRepo(t)

	_, err := repo.GetAccountByEmail("nobody@example.com")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepository_ConfirmEmail(t *testing.T) {
	repo := setupTestRepo(t)
	account := createAccount(t, repo, "jane@example.com")

	first := time.Now().Add(-time.Hour).UTC()
	rows, err := repo.ConfirmEmail(account.ID, first)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	rows, err = repo.ConfirmEmail(account.ID, time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows)

	got, err := repo.GetAccountByID(account.ID)
	require.NoError(t, err)
	require.NotNil(t, got.EmailConfirmedAt)
	assert.WithinDuration(t, first, *got.EmailConfirmedAt, time.Second)
}

func TestRepository_SetPasswordHash_ClearsLockout(t *testing.T) {
	repo := setupTestRepo(t)
	account := createAccount(t, repo, "jane@example.com")

	locked := time.Now().Add(time.Hour)
	account.FailedLoginCount = 5
	account.LockedUntil = &locked
	require.NoError(t, repo.SaveAccount(account))

	rows, err := repo.SetPasswordHash(account.ID, "new-hash")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	got, err := repo.GetAccountByID(account.ID)
	require.NoError(t, err)
	assert.Equal(t, "new-hash", got.PasswordHash)
	assert.Equal(t, 0, got.FailedLoginCount)
	assert.Nil(t, got.LockedUntil)
}

func TestRepository_Profiles(t *testing.T) {
	repo := setupTestRepo(t)
	account := createAccount(t, repo, "jane@example.com")

	profile := &entities.User{ID: account.ID, Name: "Jane", Email: "Jane@Example.com"}
	require.NoError(t, repo.CreateProfile(profile))
	assert.Equal(t, entities.UserRoleUser, profile.Role)
	assert.False(t, profile.JoinedDate.IsZero())

	got, err := repo.GetProfileByID(account.ID)
	require.NoError(t, err)
	assert.Equal(t, "jane@example.com", got.Email)

	admins, err := repo.CountAdmins()
	require.NoError(t, err)
	assert.Equal(t, int64(0), admins)

	rows, err := repo.SetRole(account.ID, entities.UserRoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	admins, err = repo.CountAdmins()
	require.NoError(t, err)
	assert.Equal(t, int64(1), admins)

	all, err := repo.ListProfiles()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRepository_DeleteAccount(t *testing.T) {
	repo := setupTestRepo(t)
	account := createAccount(t, repo, "jane@example.com")
	require.NoError(t, repo.CreateProfile(&entities.User{ID: account.ID, Name: "Jane", Email: account.Email}))

	require.NoError(t, repo.DeleteAccount(account.ID))

	_, err := repo.GetAccountByID(account.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	_, err = repo.GetProfileByID(account.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}
