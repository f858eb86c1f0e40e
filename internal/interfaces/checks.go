package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/mrlokans/libris/internal/audit"
	"github.com/mrlokans/libris/internal/authflow"
	"github.com/mrlokans/libris/internal/backend"
	dbaudit "github.com/mrlokans/libris/internal/database/audit"
	"github.com/mrlokans/libris/internal/database/passcodes"
	"github.com/mrlokans/libris/internal/database/users"
	"github.com/mrlokans/libris/internal/delivery"
	"github.com/mrlokans/libris/internal/http"
	"github.com/mrlokans/libris/internal/identity"
	"github.com/mrlokans/libris/internal/remote"
	"github.com/mrlokans/libris/internal/remote/local"
	"github.com/mrlokans/libris/internal/remote/rest"
	"github.com/mrlokans/libris/internal/session"
	"github.com/mrlokans/libris/internal/tasks"
	"github.com/mrlokans/libris/internal/tokenstore"
)

// =============================================================================
// Remote Data Service clients
// =============================================================================

var _ remote.Service = (*rest.Client)(nil)
var _ remote.Service = (*local.Client)(nil)

// The flow controller needs only part of the service.
var _ authflow.Service = (remote.Service)(nil)

// Verified emails are reported back to the session store.
var _ authflow.Confirmer = (*session.Store)(nil)

// Session persistence for the HTTP client
var _ rest.SessionStore = (*tokenstore.Store)(nil)

// =============================================================================
// Backend collaborators
// =============================================================================

var _ backend.Sessions = (*identity.SessionManager)(nil)
var _ backend.Auditor = (*audit.Service)(nil)

// Dispatcher implementations
var _ backend.Dispatcher = delivery.Direct{}
var _ backend.Dispatcher = (*tasks.PasscodeDispatcher)(nil)

// Sender implementations
var _ delivery.Sender = delivery.LogSender{}
var _ delivery.Sender = (*delivery.Outbox)(nil)

// =============================================================================
// HTTP middleware
// =============================================================================

var _ identity.TokenResolver = (*identity.SessionManager)(nil)
var _ identity.ProfileLookup = (*users.Repository)(nil)

// Health probes
var _ http.Pinger = (*tasks.Client)(nil)

// =============================================================================
// Maintenance
// =============================================================================

var _ tasks.PasscodeCleaner = (*passcodes.Repository)(nil)
var _ tasks.AuditEventCleaner = (*dbaudit.Repository)(nil)
