package identity

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/libris/internal/entities"
)

// Context keys
const (
	ContextKeyPrincipal = "identity_principal"
	ContextKeyToken     = "identity_token"
)

// HeaderAPIKey carries the service key on every request.
const HeaderAPIKey = "apikey"

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID string
	Email  string
	Role   entities.UserRole
}

// IsAdmin is the single authorization predicate for privileged operations.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == entities.UserRoleAdmin
}

// ProfileLookup resolves the profile that carries a user's role.
type ProfileLookup interface {
	GetProfileByID(id string) (*entities.User, error)
}

// TokenResolver resolves bearer tokens to sessions.
type TokenResolver interface {
	Resolve(ctx context.Context, token string) (*SessionData, error)
}

// Middleware authenticates API requests.
type Middleware struct {
	sessions TokenResolver
	profiles ProfileLookup
	apiKey   string
}

// NewMiddleware creates a new authentication middleware.
func NewMiddleware(sessions TokenResolver, profiles ProfileLookup, apiKey string) *Middleware {
	return &Middleware{
		sessions: sessions,
		profiles: profiles,
		apiKey:   apiKey,
	}
}

// Handler checks the service key and, when a bearer token is present,
// resolves it into a Principal. An invalid token is rejected rather than
// treated as anonymous.
func (m *Middleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(HeaderAPIKey)
		if subtle.ConstantTimeCompare([]byte(key), []byte(m.apiKey)) != 1 {
			abort(c, http.StatusUnauthorized, "invalid API key", "invalid_api_key")
			return
		}

		token := BearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.Next()
			return
		}

		session, err := m.sessions.Resolve(c.Request.Context(), token)
		if err != nil {
			abort(c, http.StatusUnauthorized, "session not found or expired", "unauthorized")
			return
		}

		principal := &Principal{
			UserID: session.UserID,
			Email:  session.Email,
			Role:   entities.UserRoleUser,
		}
		if m.profiles != nil {
			if profile, err := m.profiles.GetProfileByID(session.UserID); err == nil {
				principal.Role = profile.Role
			}
		}

		c.Set(ContextKeyPrincipal, principal)
		c.Set(ContextKeyToken, token)
		c.Next()
	}
}

// RequireSession rejects requests without a signed-in caller.
func (m *Middleware) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if PrincipalFrom(c) == nil {
			abort(c, http.StatusUnauthorized, "authentication required", "unauthorized")
			return
		}
		c.Next()
	}
}

// RequireRole rejects callers whose role is not one of roles.
func (m *Middleware) RequireRole(roles ...entities.UserRole) gin.HandlerFunc {
	roleSet := make(map[entities.UserRole]bool)
	for _, r := range roles {
		roleSet[r] = true
	}

	return func(c *gin.Context) {
		principal := PrincipalFrom(c)
		if principal == nil {
			abort(c, http.StatusUnauthorized, "authentication required", "unauthorized")
			return
		}
		if !roleSet[principal.Role] {
			abort(c, http.StatusForbidden, "insufficient permissions", "forbidden")
			return
		}
		c.Next()
	}
}

// PrincipalFrom returns the authenticated caller, or nil for anonymous
// requests.
func PrincipalFrom(c *gin.Context) *Principal {
	v, ok := c.Get(ContextKeyPrincipal)
	if !ok {
		return nil
	}
	p, _ := v.(*Principal)
	return p
}

// TokenFrom returns the bearer token of the request, if any.
func TokenFrom(c *gin.Context) string {
	return c.GetString(ContextKeyToken)
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func abort(c *gin.Context, status int, message, code string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error": message,
		"code":  code,
	})
}
