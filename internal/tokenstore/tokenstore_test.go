package tokenstore

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/libris/internal/remote"
)

func testSession() *remote.Session {
	return &remote.Session{
		AccessToken: "token-123",
		UserID:      "user-1",
		Email:       "reader@example.com",
		ExpiresAt:   time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestStore_SaveLoadClear(t *testing.T) {
	t.Setenv(EnvEncryptionKey, "")
	path := filepath.Join(t.TempDir(), "session.json")

	store, err := New(Config{Path: path})
	require.NoError(t, err)

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded, "no file means no session")

	require.NoError(t, store.Save(testSession()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "token-123", "token is encrypted at rest")

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// A second store reuses the generated key file.
	reopened, err := New(Config{Path: path})
	require.NoError(t, err)
	loaded, err = reopened.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "token-123", loaded.AccessToken)
	assert.True(t, loaded.ExpiresAt.Equal(testSession().ExpiresAt))

	require.NoError(t, reopened.Clear())
	require.NoError(t, reopened.Clear(), "clearing twice is fine")
	loaded, err = reopened.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestStore_WrongKeyIgnoresFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	keyA, err := GenerateKey()
	require.NoError(t, err)
	keyB, err := GenerateKey()
	require.NoError(t, err)

	a, err := New(Config{Path: path, EncryptionKey: keyA})
	require.NoError(t, err)
	require.NoError(t, a.Save(testSession()))

	b, err := New(Config{Path: path, EncryptionKey: keyB})
	require.NoError(t, err)
	loaded, err := b.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestNew_InvalidKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")

	_, err := New(Config{Path: path, EncryptionKey: "not-valid-base64!!!"})
	assert.Error(t, err)

	_, err = New(Config{Path: path, EncryptionKey: base64.StdEncoding.EncodeToString(make([]byte, 16))})
	assert.ErrorIs(t, err, ErrInvalidKeySize)

	_, err = New(Config{})
	assert.Error(t, err)
}

func TestSealer(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	s, err := newSealer(key)
	require.NoError(t, err)

	first, err := s.seal([]byte("secret"))
	require.NoError(t, err)
	second, err := s.seal([]byte("secret"))
	require.NoError(t, err)
	assert.NotEqual(t, first, second, "nonces differ")

	plaintext, err := s.open(first)
	require.NoError(t, err)
	assert.Equal(t, "secret", string(plaintext))

	_, err = s.open(base64.StdEncoding.EncodeToString([]byte("short")))
	assert.ErrorIs(t, err, ErrCiphertextTooShort)

	tampered := []byte(first)
	tampered[len(tampered)-3] ^= 1
	_, err = s.open(string(tampered))
	assert.Error(t, err)
}
