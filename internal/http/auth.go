package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/libris/internal/backend"
	"github.com/mrlokans/libris/internal/identity"
	"github.com/mrlokans/libris/internal/remote"
)

// CredentialsRequest is the body of sign-up and sign-in.
type CredentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// EmailRequest is the body of email confirmation.
type EmailRequest struct {
	Email string `json:"email"`
}

// AuthController exposes the identity API.
type AuthController struct {
	backend *backend.Backend
	limiter *identity.RateLimiter
}

func NewAuthController(b *backend.Backend, limiter *identity.RateLimiter) *AuthController {
	return &AuthController{backend: b, limiter: limiter}
}

// SignUp creates an account and returns its first session.
// POST /auth/v1/signup
func (ac *AuthController) SignUp(c *gin.Context) {
	var req CredentialsRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := ac.backend.SignUp(c.Request.Context(), req.Email, req.Password, requestMeta(c))
	if err != nil {
		respondError(c, err, "sign up")
		return
	}
	c.JSON(http.StatusOK, session)
}

// Token signs in with email and password.
// POST /auth/v1/token
func (ac *AuthController) Token(c *gin.Context) {
	var req CredentialsRequest
	if !bindJSON(c, &req) {
		return
	}

	session, err := ac.backend.SignIn(c.Request.Context(), req.Email, req.Password, requestMeta(c))
	if err != nil {
		if ac.limiter != nil && errors.Is(err, remote.ErrInvalidCredentials) {
			ac.limiter.RecordFailure(c.ClientIP(), req.Email)
		}
		respondError(c, err, "sign in")
		return
	}

	if ac.limiter != nil {
		ac.limiter.RecordSuccess(c.ClientIP(), req.Email)
	}
	c.JSON(http.StatusOK, session)
}

// Logout revokes the bearer token of the request.
// POST /auth/v1/logout
func (ac *AuthController) Logout(c *gin.Context) {
	err := ac.backend.SignOut(c.Request.Context(), identity.PrincipalFrom(c), identity.TokenFrom(c), requestMeta(c))
	if err != nil {
		respondError(c, err, "sign out")
		return
	}
	c.Status(http.StatusNoContent)
}

// Session returns the session behind the bearer token.
// GET /auth/v1/session
func (ac *AuthController) Session(c *gin.Context) {
	session, err := ac.backend.Session(c.Request.Context(), identity.TokenFrom(c))
	if err != nil {
		respondError(c, err, "get session")
		return
	}
	c.JSON(http.StatusOK, session)
}

// DeleteUser removes the caller's account.
// DELETE /auth/v1/user
func (ac *AuthController) DeleteUser(c *gin.Context) {
	if err := ac.backend.DeleteAccount(c.Request.Context(), identity.PrincipalFrom(c), requestMeta(c)); err != nil {
		respondError(c, err, "delete account")
		return
	}
	c.Status(http.StatusNoContent)
}

// Confirm marks an email as verified after a verification passcode was
// consumed.
// POST /auth/v1/confirm
func (ac *AuthController) Confirm(c *gin.Context) {
	var req EmailRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := ac.backend.ConfirmEmail(c.Request.Context(), req.Email); err != nil {
		respondError(c, err, "confirm email")
		return
	}
	c.Status(http.StatusNoContent)
}

// Recover sets a new password after a reset passcode was consumed.
// POST /auth/v1/recover
func (ac *AuthController) Recover(c *gin.Context) {
	var req CredentialsRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := ac.backend.UpdatePassword(c.Request.Context(), req.Email, req.Password); err != nil {
		respondError(c, err, "update password")
		return
	}
	c.Status(http.StatusNoContent)
}
