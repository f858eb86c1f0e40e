// Package users provides database operations for accounts and profiles.
//
// An account carries the credentials the identity provider checks; the
// profile row in users carries the public data and the role. Both share
// the same ID.
//
// # Usage
//
//	repo := users.NewRepository(db)
//	account, err := repo.GetAccountByEmail(email)
package users

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/libris/internal/entities"
)

// Repository handles all account and profile database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new users repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateAccount inserts a new account. Emails are stored lowercase.
func (r *Repository) CreateAccount(account *entities.Account) error {
	account.Email = strings.ToLower(account.Email)
	return r.db.Create(account).Error
}

// GetAccountByEmail looks an account up by its case-insensitive email.
func (r *Repository) GetAccountByEmail(email string) (*entities.Account, error) {
	var account entities.Account
	err := r.db.Where("email = ?", strings.ToLower(email)).First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// GetAccountByID retrieves an account by ID.
func (r *Repository) GetAccountByID(id string) (*entities.Account, error) {
	var account entities.Account
	err := r.db.Where("id = ?", id).First(&account).Error
	if err != nil {
		return nil, err
	}
	return &account, nil
}

// SaveAccount persists every field of an existing account.
func (r *Repository) SaveAccount(account *entities.Account) error {
	return r.db.Save(account).Error
}

// SetPasswordHash replaces the stored password hash and clears any lockout.
func (r *Repository) SetPasswordHash(id, hash string) (int64, error) {
	result := r.db.Model(&entities.Account{}).Where("id = ?", id).Updates(map[string]any{
		"password_hash":      hash,
		"failed_login_count": 0,
		"locked_until":       nil,
	})
	return result.RowsAffected, result.Error
}

// ConfirmEmail stamps the account's email as verified at the given time.
// An already confirmed account keeps its original timestamp.
func (r *Repository) ConfirmEmail(id string, at time.Time) (int64, error) {
	result := r.db.Model(&entities.Account{}).
		Where("id = ? AND email_confirmed_at IS NULL", id).
		Update("email_confirmed_at", at)
	return result.RowsAffected, result.Error
}

// DeleteAccount removes an account and its profile.
func (r *Repository) DeleteAccount(id string) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).Delete(&entities.User{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&entities.Account{}).Error
	})
}

// CreateProfile inserts the public profile row for an account.
func (r *Repository) CreateProfile(user *entities.User) error {
	user.Email = strings.ToLower(user.Email)
	if user.Role == "" {
		user.Role = entities.UserRoleUser
	}
	if user.JoinedDate.IsZero() {
		user.JoinedDate = time.Now()
	}
	return r.db.Create(user).Error
}

// GetProfileByID retrieves a profile by ID.
func (r *Repository) GetProfileByID(id string) (*entities.User, error) {
	var user entities.User
	err := r.db.Where("id = ?", id).First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ListProfiles returns all profiles ordered by join date.
func (r *Repository) ListProfiles() ([]entities.User, error) {
	var users []entities.User
	err := r.db.Order("joined_date ASC").Find(&users).Error
	return users, err
}

// SetRole changes the role of a profile.
func (r *Repository) SetRole(id string, role entities.UserRole) (int64, error) {
	result := r.db.Model(&entities.User{}).Where("id = ?", id).Update("role", role)
	return result.RowsAffected, result.Error
}

// CountAdmins returns the number of admin profiles.
func (r *Repository) CountAdmins() (int64, error) {
	var count int64
	err := r.db.Model(&entities.User{}).Where("role = ?", entities.UserRoleAdmin).Count(&count).Error
	return count, err
}
