package backend

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/mrlokans/libris/internal/database/audit"
	"github.com/mrlokans/libris/internal/entities"
	"github.com/mrlokans/libris/internal/identity"
	"github.com/mrlokans/libris/internal/remote"
)

var errNoDispatcher = errors.New("no passcode delivery channel configured")

// knownSettings are the keys admins may change through the API.
var knownSettings = map[string]func(string) error{
	entities.SettingKeyRegistrationOpen: func(v string) error {
		_, err := strconv.ParseBool(v)
		return err
	},
}

// GetSetting returns a setting. Admins only.
func (b *Backend) GetSetting(ctx context.Context, p *identity.Principal, key string) (*entities.Setting, error) {
	if err := requireAdmin(p); err != nil {
		return nil, err
	}
	setting, err := b.settings(ctx).GetSetting(key)
	if err != nil {
		return nil, storeErr("get setting", err)
	}
	return setting, nil
}

// SetSetting changes a known setting. Admins only.
func (b *Backend) SetSetting(ctx context.Context, p *identity.Principal, key, value string) error {
	if err := requireAdmin(p); err != nil {
		return err
	}
	validate, ok := knownSettings[key]
	if !ok {
		return remote.ErrNotFound
	}
	if err := validate(value); err != nil {
		return remote.Invalid("malformed value for " + key)
	}
	if err := b.settings(ctx).SetSetting(key, value); err != nil {
		return storeErr("set setting", err)
	}
	b.audit.LogSettings(p.UserID, key, value)
	return nil
}

// ListAuditEvents returns a page of the audit trail. Admins only.
func (b *Backend) ListAuditEvents(ctx context.Context, p *identity.Principal, filter audit.Filter) ([]entities.AuditEvent, int64, error) {
	if err := requireAdmin(p); err != nil {
		return nil, 0, err
	}
	events, total, err := audit.NewRepository(b.db.WithContext(ctx)).ListEvents(filter)
	if err != nil {
		return nil, 0, storeErr("list audit events", err)
	}
	return events, total, nil
}

// CreateAdmin registers an account with an admin profile, bypassing the
// registration setting. Used by operators from the command line.
func (b *Backend) CreateAdmin(ctx context.Context, name, email, password string) (*entities.User, error) {
	account, err := b.accounts.Register(ctx, email, password)
	if err != nil {
		return nil, accountErr(err)
	}
	if err := b.accounts.ConfirmEmail(ctx, account.ID); err != nil {
		return nil, storeErr("confirm admin email", err)
	}

	profile := &entities.User{
		ID:         account.ID,
		Name:       name,
		Email:      account.Email,
		Role:       entities.UserRoleAdmin,
		JoinedDate: b.now(),
	}
	if err := b.users(ctx).CreateProfile(profile); err != nil {
		err = storeErr("create admin profile", err)
		if delErr := b.accounts.DeleteAccount(ctx, account.ID); delErr != nil {
			err = errors.Join(err, fmt.Errorf("remove account %s: %w", account.ID, delErr))
		}
		return nil, err
	}
	return profile, nil
}
