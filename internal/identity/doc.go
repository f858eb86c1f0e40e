// Package identity implements the identity provider of the data service:
// accounts with bcrypt credentials, opaque session tokens backed by scs,
// sign-in throttling, and the gin middleware that authenticates API calls.
//
// # Requests
//
// Every API request carries the service key in the "apikey" header. A
// request made on behalf of a signed-in user additionally carries
// "Authorization: Bearer <token>", where the token was issued by
// SessionManager.Issue on sign-in or sign-up.
//
//	mw := identity.NewMiddleware(sessions, profiles, cfg.Remote.APIKey)
//	router.Use(mw.Handler())
//	router.GET("/auth/v1/session", mw.RequireSession(), handler)
//
// Handlers read the caller with PrincipalFrom(c).
//
// # Password policy
//
// CheckStrength enforces the account password rules and reports only the
// first rule a password breaks, in this order: length, lowercase,
// uppercase, digit.
package identity
