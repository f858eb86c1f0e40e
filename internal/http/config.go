package http

import (
	"github.com/mrlokans/libris/internal/backend"
	"github.com/mrlokans/libris/internal/database"
	"github.com/mrlokans/libris/internal/identity"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	Backend  *backend.Backend
	Database *database.Database

	// Authentication
	Sessions    identity.TokenResolver
	APIKey      string
	RateLimiter *identity.RateLimiter // optional; sign-in is not throttled without it

	// TaskQueue is probed by /health when set.
	TaskQueue Pinger

	// Application info
	Version string
}
