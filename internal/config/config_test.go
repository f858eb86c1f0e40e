package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConfig_Defaults(t *testing.T) {
	t.Setenv("REMOTE_URL", "")
	t.Setenv("REMOTE_API_KEY", "")

	cfg := NewConfig()

	assert.Equal(t, int32(8188), cfg.HTTP.Port)
	assert.Equal(t, DefaultDatabasePath, cfg.Database.Path)
	assert.Equal(t, 10*time.Minute, cfg.Passcode.TTL)
	assert.Equal(t, 60*time.Second, cfg.Passcode.ResendCooldown)
	assert.Equal(t, 15*time.Second, cfg.Remote.RequestTimeout)
	assert.True(t, cfg.Auth.RegistrationOpen)
	assert.Equal(t, 5, cfg.Auth.MaxLoginAttempts)
}

func TestNewConfig_FromEnvironment(t *testing.T) {
	t.Setenv("REMOTE_URL", "http://localhost:9000")
	t.Setenv("REMOTE_API_KEY", "secret")
	t.Setenv("PASSCODE_TTL", "5m")

	cfg := NewConfig()

	assert.Equal(t, "http://localhost:9000", cfg.Remote.URL)
	assert.Equal(t, "secret", cfg.Remote.APIKey)
	assert.Equal(t, 5*time.Minute, cfg.Passcode.TTL)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name      string
		remote    Remote
		clientErr error
		serverErr error
	}{
		{
			name:      "complete",
			remote:    Remote{URL: "http://x", APIKey: "k"},
			clientErr: nil,
			serverErr: nil,
		},
		{
			name:      "missing url",
			remote:    Remote{APIKey: "k"},
			clientErr: ErrRemoteURLMissing,
			serverErr: nil,
		},
		{
			name:      "missing key",
			remote:    Remote{URL: "http://x"},
			clientErr: ErrRemoteAPIKeyMissing,
			serverErr: ErrRemoteAPIKeyMissing,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Remote: tt.remote}
			assert.ErrorIs(t, cfg.ValidateClient(), tt.clientErr)
			assert.ErrorIs(t, cfg.ValidateServer(), tt.serverErr)
		})
	}
}
