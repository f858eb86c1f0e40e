package backend

import (
	"context"
	"strings"

	"github.com/mrlokans/libris/internal/entities"
	"github.com/mrlokans/libris/internal/identity"
	"github.com/mrlokans/libris/internal/remote"
)

// PasscodeLength is the number of digits in a passcode.
const PasscodeLength = 6

// ValidPasscode reports whether code is exactly six ASCII digits.
func ValidPasscode(code string) bool {
	if len(code) != PasscodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}

// UpsertPasscode stores the passcode for (email, purpose), replacing any
// earlier one. Only the code's digest is persisted.
func (b *Backend) UpsertPasscode(ctx context.Context, in remote.PasscodeUpsert) error {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if !identity.ValidEmail(email) {
		return remote.Invalid(identity.ErrEmailInvalid.Error())
	}
	if !in.Type.Valid() {
		return remote.Invalid("unknown passcode purpose")
	}
	if !ValidPasscode(in.Code) {
		return remote.Invalid("passcode must be 6 digits")
	}
	in.ExpiresAt = in.ExpiresAt.UTC()
	if in.ExpiresAt.IsZero() {
		in.ExpiresAt = b.now().Add(b.config.PasscodeTTL)
	}
	if in.ExpiresAt.After(b.now().Add(b.config.PasscodeTTL)) {
		in.ExpiresAt = b.now().Add(b.config.PasscodeTTL)
	}

	err := b.passcodes(ctx).Upsert(&entities.Passcode{
		Email:     email,
		Code:      identity.HashToken(in.Code),
		Type:      in.Type,
		ExpiresAt: in.ExpiresAt,
	})
	b.audit.LogPasscode(email, in.Type, "passcode_issue", err)
	if err != nil {
		return storeErr("upsert passcode", err)
	}
	return nil
}

// FindPasscode returns the live passcode matching email, code and purpose.
// Wrong, expired and used codes all report remote.ErrNotFound.
func (b *Backend) FindPasscode(ctx context.Context, email, code string, purpose entities.PasscodePurpose) (*remote.PasscodeRecord, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !ValidPasscode(code) {
		return nil, remote.ErrNotFound
	}

	p, err := b.passcodes(ctx).FindLive(email, identity.HashToken(code), purpose, b.now())
	if err != nil {
		err = storeErr("find passcode", err)
		if err == remote.ErrNotFound {
			b.audit.LogPasscode(email, purpose, "passcode_verify", err)
		}
		return nil, err
	}

	return &remote.PasscodeRecord{
		ID:        p.ID,
		Email:     p.Email,
		Type:      p.Type,
		ExpiresAt: p.ExpiresAt,
		Used:      p.Used,
	}, nil
}

// MarkPasscodeUsed consumes a passcode. A second call reports
// remote.ErrNotFound.
func (b *Backend) MarkPasscodeUsed(ctx context.Context, id string) error {
	rows, err := b.passcodes(ctx).MarkUsed(id, b.now())
	if err != nil {
		return storeErr("mark passcode used", err)
	}
	if rows == 0 {
		return remote.ErrNotFound
	}
	return nil
}

// DispatchPasscode hands a code to the delivery channel.
func (b *Backend) DispatchPasscode(ctx context.Context, email, code string, purpose entities.PasscodePurpose) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if !identity.ValidEmail(email) {
		return remote.Invalid(identity.ErrEmailInvalid.Error())
	}
	if !ValidPasscode(code) || !purpose.Valid() {
		return remote.Invalid("malformed passcode")
	}
	if b.dispatcher == nil {
		return remote.Transport(errNoDispatcher)
	}
	if err := b.dispatcher.DispatchPasscode(ctx, email, code, purpose); err != nil {
		return remote.Transport(err)
	}
	return nil
}
