package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// NewTestDatabase opens a migrated database in a per-test temporary
// directory and closes it when the test ends.
func NewTestDatabase(t testing.TB) *Database {
	t.Helper()
	db, err := NewQuietDatabase(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}
