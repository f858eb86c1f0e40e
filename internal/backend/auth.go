package backend

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/mrlokans/libris/internal/entities"
	"github.com/mrlokans/libris/internal/identity"
	"github.com/mrlokans/libris/internal/remote"
)

// SignUp creates an account and starts a session for it. The profile row
// is created separately by the caller.
func (b *Backend) SignUp(ctx context.Context, email, password string, meta RequestMeta) (*remote.Session, error) {
	open, err := b.settings(ctx).GetBool(entities.SettingKeyRegistrationOpen, b.config.RegistrationOpen)
	if err != nil {
		return nil, storeErr("read registration setting", err)
	}
	if !open {
		return nil, remote.ErrRegistrationClosed
	}

	account, err := b.accounts.Register(ctx, email, password)
	if err != nil {
		err = accountErr(err)
		b.audit.LogAuth("", "sign_up", meta.IP, meta.UserAgent, err)
		return nil, err
	}

	session, err := b.issue(ctx, account)
	b.audit.LogAuth(account.ID, "sign_up", meta.IP, meta.UserAgent, err)
	return session, err
}

// SignIn checks credentials and starts a session.
func (b *Backend) SignIn(ctx context.Context, email, password string, meta RequestMeta) (*remote.Session, error) {
	account, err := b.accounts.Authenticate(ctx, email, password)
	if err != nil {
		err = accountErr(err)
		b.audit.LogAuth("", "sign_in", meta.IP, meta.UserAgent, err)
		return nil, err
	}

	session, err := b.issue(ctx, account)
	b.audit.LogAuth(account.ID, "sign_in", meta.IP, meta.UserAgent, err)
	return session, err
}

func (b *Backend) issue(ctx context.Context, account *entities.Account) (*remote.Session, error) {
	data, err := b.sessions.Issue(ctx, account.ID, account.Email)
	if err != nil {
		return nil, storeErr("issue session", err)
	}
	return &remote.Session{
		AccessToken:    data.Token,
		UserID:         account.ID,
		Email:          account.Email,
		EmailConfirmed: account.EmailConfirmed(),
		ExpiresAt:      data.ExpiresAt,
	}, nil
}

// SignOut revokes a session token. Unknown tokens are not an error.
func (b *Backend) SignOut(ctx context.Context, p *identity.Principal, token string, meta RequestMeta) error {
	if err := b.sessions.Revoke(ctx, token); err != nil {
		return storeErr("revoke session", err)
	}
	if p != nil {
		b.audit.LogAuth(p.UserID, "sign_out", meta.IP, meta.UserAgent, nil)
	}
	return nil
}

// Session resolves a token into the session it belongs to.
func (b *Backend) Session(ctx context.Context, token string) (*remote.Session, error) {
	data, err := b.sessions.Resolve(ctx, token)
	if err != nil {
		if errors.Is(err, identity.ErrSessionNotFound) {
			return nil, remote.ErrUnauthorized
		}
		return nil, storeErr("resolve session", err)
	}

	account, err := b.accounts.GetAccount(ctx, data.UserID)
	if err != nil {
		if errors.Is(err, identity.ErrAccountNotFound) {
			return nil, remote.ErrUnauthorized
		}
		return nil, storeErr("load account", err)
	}

	return &remote.Session{
		AccessToken:    data.Token,
		UserID:         account.ID,
		Email:          account.Email,
		EmailConfirmed: account.EmailConfirmed(),
		ExpiresAt:      data.ExpiresAt,
	}, nil
}

// Authenticate resolves a token into the calling principal. The role
// comes from the profile row; callers without one are plain users.
func (b *Backend) Authenticate(ctx context.Context, token string) (*identity.Principal, error) {
	data, err := b.sessions.Resolve(ctx, token)
	if err != nil {
		if errors.Is(err, identity.ErrSessionNotFound) {
			return nil, remote.ErrUnauthorized
		}
		return nil, storeErr("resolve session", err)
	}

	principal := &identity.Principal{
		UserID: data.UserID,
		Email:  data.Email,
		Role:   entities.UserRoleUser,
	}
	if profile, err := b.users(ctx).GetProfileByID(data.UserID); err == nil {
		principal.Role = profile.Role
	}
	return principal, nil
}

// DeleteAccount removes the caller's account, profile, relationships and
// notifications, and ends all of its sessions.
func (b *Backend) DeleteAccount(ctx context.Context, p *identity.Principal, meta RequestMeta) error {
	if err := requireSession(p); err != nil {
		return err
	}

	if _, err := b.userBooks(ctx).DeleteForUser(p.UserID); err != nil {
		return storeErr("delete relationships", err)
	}
	if _, err := b.notifications(ctx).DeleteForUser(p.UserID); err != nil {
		return storeErr("delete notifications", err)
	}
	if err := b.accounts.DeleteAccount(ctx, p.UserID); err != nil {
		return storeErr("delete account", err)
	}
	if err := b.sessions.RevokeUser(ctx, p.UserID); err != nil {
		return storeErr("revoke sessions", err)
	}

	b.audit.LogAuth(p.UserID, "account_delete", meta.IP, meta.UserAgent, nil)
	return nil
}

// ConfirmEmail marks an account's email as verified. It is accepted only
// when a verification passcode for the email was consumed within the
// passcode TTL and has not authorized anything yet.
func (b *Backend) ConfirmEmail(ctx context.Context, email string) error {
	email = strings.ToLower(strings.TrimSpace(email))

	account, grant, err := b.redeemable(ctx, email, entities.PasscodeVerification)
	if err != nil {
		b.audit.LogPasscode(email, entities.PasscodeVerification, "email_confirm", err)
		return err
	}

	if err := b.accounts.ConfirmEmail(ctx, account.ID); err != nil {
		return storeErr("confirm email", err)
	}
	if _, err := b.passcodes(ctx).MarkRedeemed(grant.ID, b.now()); err != nil {
		return storeErr("redeem passcode", err)
	}

	b.audit.LogPasscode(email, entities.PasscodeVerification, "email_confirm", nil)
	return nil
}

// UpdatePassword sets a new password for the account with email. It is
// accepted only when a reset passcode for the email was consumed within
// the passcode TTL and has not authorized anything yet. Every session of
// the account is ended.
func (b *Backend) UpdatePassword(ctx context.Context, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := identity.CheckStrength(password); err != nil {
		return remote.Invalid(err.Error())
	}

	account, grant, err := b.redeemable(ctx, email, entities.PasscodeReset)
	if err != nil {
		b.audit.LogPasscode(email, entities.PasscodeReset, "password_reset", err)
		return err
	}

	if err := b.accounts.SetPassword(ctx, account.ID, password); err != nil {
		return accountErr(err)
	}
	if _, err := b.passcodes(ctx).MarkRedeemed(grant.ID, b.now()); err != nil {
		return storeErr("redeem passcode", err)
	}
	if err := b.sessions.RevokeUser(ctx, account.ID); err != nil {
		return storeErr("revoke sessions", err)
	}

	b.audit.LogPasscode(email, entities.PasscodeReset, "password_reset", nil)
	return nil
}

func (b *Backend) redeemable(ctx context.Context, email string, purpose entities.PasscodePurpose) (*entities.Account, *entities.Passcode, error) {
	since := b.now().Add(-b.config.PasscodeTTL)
	grant, err := b.passcodes(ctx).FindRedeemable(email, purpose, since)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, remote.ErrForbidden
	}
	if err != nil {
		return nil, nil, storeErr("find passcode", err)
	}

	account, err := b.accounts.FindAccount(ctx, email)
	if err != nil {
		if errors.Is(err, identity.ErrAccountNotFound) {
			return nil, nil, remote.ErrNotFound
		}
		return nil, nil, storeErr("find account", err)
	}
	return account, grant, nil
}

// accountErr maps identity errors onto the remote taxonomy.
func accountErr(err error) error {
	switch {
	case errors.Is(err, identity.ErrAccountExists):
		return remote.ErrAlreadyRegistered
	case errors.Is(err, identity.ErrInvalidCredentials):
		return remote.ErrInvalidCredentials
	case errors.Is(err, identity.ErrAccountLocked):
		return remote.ErrAccountLocked
	case errors.Is(err, identity.ErrAccountNotFound):
		return remote.ErrNotFound
	case errors.Is(err, identity.ErrEmailRequired),
		errors.Is(err, identity.ErrEmailInvalid),
		errors.Is(err, identity.ErrPasswordRequired),
		errors.Is(err, identity.ErrPasswordTooShort),
		errors.Is(err, identity.ErrPasswordTooLong),
		errors.Is(err, identity.ErrPasswordNoLower),
		errors.Is(err, identity.ErrPasswordNoUpper),
		errors.Is(err, identity.ErrPasswordNoDigit):
		return remote.Invalid(err.Error())
	}
	return storeErr("account", err)
}
