// Package tokenstore keeps a client's session on disk between process
// runs, encrypted with AES-256-GCM.
package tokenstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/mrlokans/libris/internal/remote"
)

// EnvEncryptionKey is the environment variable for the encryption key
const EnvEncryptionKey = "REMOTE_SESSION_KEY"

// Store persists a single session to a file.
type Store struct {
	path   string
	sealer *sealer
}

// Config holds configuration for the token store
type Config struct {
	// Path is the session file.
	Path string

	// EncryptionKey is the base64-encoded 32-byte encryption key.
	// If empty, it is loaded from the environment or the key file.
	EncryptionKey string

	// KeyFilePath defaults to Path + ".key".
	KeyFilePath string
}

// New creates a store, generating and saving a key on first use.
func New(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("session file path is required")
	}

	key, err := resolveEncryptionKey(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve encryption key: %w", err)
	}

	s, err := newSealer(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create encryptor: %w", err)
	}
	return &Store{path: cfg.Path, sealer: s}, nil
}

// resolveEncryptionKey determines the encryption key from various sources
func resolveEncryptionKey(cfg Config) (string, error) {
	// Priority 1: Explicitly provided key
	if cfg.EncryptionKey != "" {
		return cfg.EncryptionKey, nil
	}

	// Priority 2: Environment variable
	if envKey := os.Getenv(EnvEncryptionKey); envKey != "" {
		return envKey, nil
	}

	// Priority 3: Key file
	keyFilePath := cfg.KeyFilePath
	if keyFilePath == "" {
		keyFilePath = cfg.Path + ".key"
	}
	if data, err := os.ReadFile(keyFilePath); err == nil {
		return strings.TrimSpace(string(data)), nil
	}

	newKey, err := GenerateKey()
	if err != nil {
		return "", fmt.Errorf("failed to generate encryption key: %w", err)
	}
	if err := writeFile(keyFilePath, []byte(newKey)); err != nil {
		return "", fmt.Errorf("failed to save encryption key to %s: %w", keyFilePath, err)
	}

	log.Printf("Generated new session encryption key at %s", keyFilePath)
	return newKey, nil
}

// Load returns the saved session, or nil when there is none. A file that
// cannot be decrypted is treated as absent.
func (s *Store) Load() (*remote.Session, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	plaintext, err := s.sealer.open(strings.TrimSpace(string(data)))
	if err != nil {
		log.Printf("Ignoring unreadable session file %s: %v", s.path, err)
		return nil, nil
	}

	var session remote.Session
	if err := json.Unmarshal(plaintext, &session); err != nil {
		log.Printf("Ignoring malformed session file %s: %v", s.path, err)
		return nil, nil
	}
	return &session, nil
}

// Save replaces the saved session.
func (s *Store) Save(session *remote.Session) error {
	if session == nil {
		return s.Clear()
	}

	plaintext, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	sealed, err := s.sealer.seal(plaintext)
	if err != nil {
		return err
	}
	if err := writeFile(s.path, []byte(sealed)); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// Clear removes the saved session.
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

// writeFile replaces path atomically with owner-only permissions.
func writeFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".libris-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
