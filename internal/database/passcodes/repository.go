// Package passcodes provides database operations for one-time passcodes
// (the otp_codes table).
//
// Codes are stored as SHA-256 digests; callers hash before storing and
// before looking up. A passcode moves through three stages: live (unused
// and unexpired), used (consumed by a successful verification) and
// redeemed (a used code that has authorized one credential change).
package passcodes

import (
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/libris/internal/entities"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Upsert stores a fresh passcode for (email, type), replacing any earlier
// one and resetting its used and redeemed state.
func (r *Repository) Upsert(p *entities.Passcode) error {
	p.Used = false
	p.UsedAt = nil
	p.RedeemedAt = nil
	p.UpdatedAt = time.Now()
	return r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "email"}, {Name: "type"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"code",
			"expires_at",
			"used",
			"used_at",
			"redeemed_at",
			"updated_at",
		}),
	}).Create(p).Error
}

// FindLive returns the passcode matching email, code digest and type that
// is unused and has not expired at now.
func (r *Repository) FindLive(email, codeHash string, kind entities.PasscodePurpose, now time.Time) (*entities.Passcode, error) {
	var p entities.Passcode
	err := r.db.Where("email = ? AND code = ? AND type = ? AND used = ? AND expires_at >= ?",
		email, codeHash, kind, false, now).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// MarkUsed consumes a passcode. Zero rows means it was already used.
func (r *Repository) MarkUsed(id string, now time.Time) (int64, error) {
	result := r.db.Model(&entities.Passcode{}).
		Where("id = ? AND used = ?", id, false).
		Updates(map[string]any{"used": true, "used_at": now})
	return result.RowsAffected, result.Error
}

// FindRedeemable returns the used, not yet redeemed passcode for (email,
// type) that was consumed at or after since.
func (r *Repository) FindRedeemable(email string, kind entities.PasscodePurpose, since time.Time) (*entities.Passcode, error) {
	var p entities.Passcode
	err := r.db.Where("email = ? AND type = ? AND used = ? AND redeemed_at IS NULL AND used_at >= ?",
		email, kind, true, since).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// MarkRedeemed records that a used passcode authorized a credential change.
func (r *Repository) MarkRedeemed(id string, now time.Time) (int64, error) {
	result := r.db.Model(&entities.Passcode{}).
		Where("id = ? AND used = ? AND redeemed_at IS NULL", id, true).
		Update("redeemed_at", now)
	return result.RowsAffected, result.Error
}

// DeleteExpired removes passcodes whose expiry is before cutoff.
func (r *Repository) DeleteExpired(cutoff time.Time) (int64, error) {
	result := r.db.Where("expires_at < ?", cutoff).Delete(&entities.Passcode{})
	return result.RowsAffected, result.Error
}
