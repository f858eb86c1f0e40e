package passcodes

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

func upsert(t *testing.T, repo *Repository, code string, expires time.Time) *entities.Passcode {
	t.Helper()
	p := &entities.Passcode{
		Email:     "jane@example.com",
		Code:      code,
		Type:      entities.PasscodeVerification,
		ExpiresAt: expires,
	}
	require.NoError(t, repo.Upsert(p))
	return p
}

func TestRepository_FindLive(t *testing.T) {
	repo := setupTestRepo(t)
	now := time.Now()
	upsert(t, repo, "digest-1", now.Add(10*time.Minute))

	tests := []struct {
		name    string
		email   string
		code    string
		kind    entities.PasscodePurpose
		at      time.Time
		wantErr bool
	}{
		{name: "matching", email: "jane@example.com", code: "digest-1", kind: entities.PasscodeVerification, at: now},
		{name: "wrong code", email: "jane@example.com", code: "digest-2", kind: entities.PasscodeVerification, at: now, wantErr: true},
		{name: "wrong purpose", email: "jane@example.com", code: "digest-1", kind: entities.PasscodeReset, at: now, wantErr: true},
		{name: "wrong email", email: "john@example.com", code: "digest-1", kind: entities.PasscodeVerification, at: now, wantErr: true},
		{name: "expired", email: "jane@example.com", code: "digest-1", kind: entities.PasscodeVerification, at: now.Add(11 * time.Minute), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.FindLive(tt.email, tt.code, tt.kind, tt.at)
			if tt.wantErr {
				assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRepository_Upsert_ReplacesPreviousCode(t *testing.T) {
	repo := setupTestRepo(t)
	now := time.Now()

	first := upsert(t, repo, "digest-1", now.Add(10*time.Minute))
	_, err := repo.MarkUsed(first.ID, now)
	require.NoError(t, err)

	upsert(t, repo, "digest-2", now.Add(10*time.Minute))

	_, err = repo.FindLive("jane@example.com", "digest-1", entities.PasscodeVerification, now)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	got, err := repo.FindLive("jane@example.com", "digest-2", entities.PasscodeVerification, now)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID, "one row per email and purpose")
	assert.False(t, got.Used)
}

func TestRepository_MarkUsed_SingleUse(t *testing.T) {
	repo := setupTestRepo(t)
	now := time.Now()
	p := upsert(t, repo, "digest-1", now.Add(10*time.Minute))

	rows, err := repo.MarkUsed(p.ID, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	rows, err = repo.MarkUsed(p.ID, now)
	require.NoError(t, err)
	assert.Equal(t, int64(0), rows)

	_, err = repo.FindLive("jane@example.com", "digest-1", entities.PasscodeVerification, now)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepository_Redeem(t *testing.T) {
	repo := setupTestRepo(t)
	now := time.Now()
	p := upsert(t, repo, "digest-1", now.Add(10*time.Minute))

	_, err := repo.FindRedeemable("jane@example.com", entities.PasscodeVerification, now.Add(-time.Minute))
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound, "unused codes are not redeemable")

	_, err = repo.MarkUsed(p.ID, now)
	require.NoError(t, err)

	got, err := repo.FindRedeemable("jane@example.com", entities.PasscodeVerification, now.Add(-time.Minute))
	require.NoError(t, err)

	rows, err := repo.MarkRedeemed(got.ID, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	_, err = repo.FindRedeemable("jane@example.com", entities.PasscodeVerification, now.Add(-time.Minute))
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepository_DeleteExpired(t *testing.T) {
	repo := setupTestRepo(t)
	now := time.Now()
	upsert(t, repo, "digest-1", now.Add(-time.Hour))

	removed, err := repo.DeleteExpired(now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}
