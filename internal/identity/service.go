package identity

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/libris/internal/config"
	"github.com/mrlokans/libris/internal/database/users"
	"github.com/mrlokans/libris/internal/entities"
)

var (
	ErrAccountNotFound    = errors.New("account not found")
	ErrAccountExists      = errors.New("user already registered")
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrAccountLocked      = errors.New("account is locked due to too many failed login attempts")
	ErrEmailRequired      = errors.New("email is required")
)

// Service manages accounts: the credential half of an identity.
type Service struct {
	db     *gorm.DB
	config config.Auth
	now    func() time.Time
}

// NewService creates a new identity service.
func NewService(db *gorm.DB, cfg config.Auth) *Service {
	return &Service{
		db:     db,
		config: cfg,
		now:    time.Now,
	}
}

func (s *Service) repo(ctx context.Context) *users.Repository {
	return users.NewRepository(s.db.WithContext(ctx))
}

// Register creates an account. The password must satisfy CheckStrength.
func (s *Service) Register(ctx context.Context, email, password string) (*entities.Account, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, ErrEmailRequired
	}
	if !ValidEmail(email) {
		return nil, ErrEmailInvalid
	}
	if err := CheckStrength(password); err != nil {
		return nil, err
	}

	repo := s.repo(ctx)
	_, err := repo.GetAccountByEmail(email)
	if err == nil {
		return nil, ErrAccountExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check existing account: %w", err)
	}

	hash, err := HashPassword(password, s.config.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	account := &entities.Account{
		Email:        email,
		PasswordHash: hash,
	}
	if err := repo.CreateAccount(account); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return account, nil
}

// Authenticate validates credentials and returns the account. Unknown
// emails and wrong passwords both report ErrInvalidCredentials. The account
// is locked after MaxLoginAttempts consecutive failures.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*entities.Account, error) {
	repo := s.repo(ctx)
	account, err := repo.GetAccountByEmail(strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find account: %w", err)
	}

	now := s.now()
	if account.LockedUntil != nil && now.Before(*account.LockedUntil) {
		return nil, ErrAccountLocked
	}

	if err := CheckPassword(password, account.PasswordHash); err != nil {
		if !errors.Is(err, ErrInvalidPassword) {
			return nil, err
		}
		s.recordFailedLogin(repo, account, now)
		return nil, ErrInvalidCredentials
	}

	account.FailedLoginCount = 0
	account.LockedUntil = nil
	account.LastLoginAt = &now
	if err := repo.SaveAccount(account); err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}

	return account, nil
}

// recordFailedLogin increments the failed login counter and locks the
// account once the threshold is reached.
func (s *Service) recordFailedLogin(repo *users.Repository, account *entities.Account, now time.Time) {
	account.FailedLoginCount++

	threshold := s.config.MaxLoginAttempts
	if threshold <= 0 {
		threshold = 5
	}
	if account.FailedLoginCount >= threshold {
		lockout := s.config.LockoutDuration
		if lockout == 0 {
			lockout = 30 * time.Minute
		}
		lockedUntil := now.Add(lockout)
		account.LockedUntil = &lockedUntil
		account.FailedLoginCount = 0
	}

	if err := repo.SaveAccount(account); err != nil {
		log.Printf("[AUTH] Could not record failed login for %s: %v", account.Email, err)
	}
}

// GetAccount retrieves an account by ID.
func (s *Service) GetAccount(ctx context.Context, id string) (*entities.Account, error) {
	account, err := s.repo(ctx).GetAccountByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

// FindAccount retrieves an account by email.
func (s *Service) FindAccount(ctx context.Context, email string) (*entities.Account, error) {
	account, err := s.repo(ctx).GetAccountByEmail(strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return account, nil
}

// SetPassword replaces an account's password without asking for the old
// one. Callers are responsible for having authorized the change.
func (s *Service) SetPassword(ctx context.Context, id, password string) error {
	if err := CheckStrength(password); err != nil {
		return err
	}
	hash, err := HashPassword(password, s.config.BcryptCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	rows, err := s.repo(ctx).SetPasswordHash(id, hash)
	if err != nil {
		return fmt.Errorf("failed to save password: %w", err)
	}
	if rows == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// ConfirmEmail marks the account's email as verified. Confirming twice is
// not an error.
func (s *Service) ConfirmEmail(ctx context.Context, id string) error {
	repo := s.repo(ctx)
	if _, err := repo.ConfirmEmail(id, s.now()); err != nil {
		return fmt.Errorf("failed to confirm email: %w", err)
	}
	if _, err := repo.GetAccountByID(id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrAccountNotFound
		}
		return err
	}
	return nil
}

// DeleteAccount removes an account together with its profile row.
func (s *Service) DeleteAccount(ctx context.Context, id string) error {
	return s.repo(ctx).DeleteAccount(id)
}

// CountAccounts returns the number of registered accounts.
func (s *Service) CountAccounts(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&entities.Account{}).Count(&count).Error
	return count, err
}
