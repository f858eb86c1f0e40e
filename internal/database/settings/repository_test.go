package settings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/libris/internal/database"
	"github.com/mrlokans/libris/internal/entities"
)

func setupTestRepo(t *testing.T) *Repository {
	t.Helper()
	return NewRepository(database.NewTestDatabase(t).DB)
}

func TestRepository_SetSetting_NewThenUpdate(t *testing.T) {
	repo := setupTestRepo(t)

	require.NoError(t, repo.SetSetting(entities.SettingKeyMaintenanceLastStatus, "success"))
	require.NoError(t, repo.SetSetting(entities.SettingKeyMaintenanceLastStatus, "failed"))

	setting, err := repo.GetSetting(entities.SettingKeyMaintenanceLastStatus)
	require.NoError(t, err)
	assert.Equal(t, "failed", setting.Value)
}

func TestRepository_GetSetting_NotFound(t *testing.T) {
	repo := setupTestRepo(t)

	_, err := repo.GetSetting("nonexistent")
	assert.Error(t, err)
}

func TestRepository_GetBool(t *testing.T) {
	tests := []struct {
		name     string
		stored   *string
		fallback bool
		want     bool
	}{
		{name: "unset uses fallback", fallback: true, want: true},
		{name: "stored false", stored: strPtr("false"), fallback: true, want: false},
		{name: "stored true", stored: strPtr("true"), fallback: false, want: true},
		{name: "garbage uses fallback", stored: strPtr("maybe"), fallback: true, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := setupTestRepo(t)
			if tt.stored != nil {
				require.NoError(t, repo.SetSetting(entities.SettingKeyRegistrationOpen, *tt.stored))
			}

			got, err := repo.GetBool(entities.SettingKeyRegistrationOpen, tt.fallback)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRepository_DeleteSetting(t *testing.T) {
	repo := setupTestRepo(t)

	require.NoError(t, repo.SetSetting("to-delete", "value"))
	require.NoError(t, repo.DeleteSetting("to-delete"))

	_, err := repo.GetSetting("to-delete")
	assert.Error(t, err)
}

func strPtr(s string) *string { return &s }
