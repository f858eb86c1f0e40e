package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"regexp"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 6

// maxPasswordBytes is bcrypt's input limit.
const maxPasswordBytes = 72

var (
	ErrInvalidPassword  = errors.New("invalid password")
	ErrPasswordRequired = errors.New("Password is required.")
	ErrPasswordTooShort = errors.New("Password must be at least 6 characters long.")
	ErrPasswordTooLong  = errors.New("Password must be at most 72 bytes long.")
	ErrPasswordNoLower  = errors.New("Password must contain at least one lowercase letter.")
	ErrPasswordNoUpper  = errors.New("Password must contain at least one uppercase letter.")
	ErrPasswordNoDigit  = errors.New("Password must contain at least one number.")
	ErrEmailInvalid     = errors.New("Please enter a valid email address.")
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail reports whether email looks like an address.
func ValidEmail(email string) bool {
	return len(email) <= 254 && emailPattern.MatchString(email)
}

// CheckStrength returns the first password rule the password violates, or
// nil when it satisfies all of them.
func CheckStrength(password string) error {
	if password == "" {
		return ErrPasswordRequired
	}
	if len([]rune(password)) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	if len(password) > maxPasswordBytes {
		return ErrPasswordTooLong
	}

	var lower, upper, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}

	switch {
	case !lower:
		return ErrPasswordNoLower
	case !upper:
		return ErrPasswordNoUpper
	case !digit:
		return ErrPasswordNoDigit
	}
	return nil
}

// HashPassword creates a bcrypt hash of the password.
func HashPassword(password string, cost int) (string, error) {
	if len(password) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a password with its hash.
func CheckPassword(password, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidPassword
		}
		return err
	}
	return nil
}

// HashToken returns the hex SHA-256 digest of a secret. Passcodes are
// stored and looked up by this digest.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// GenerateAPIKey creates a random 32-byte key for clients of the service.
func GenerateAPIKey() (string, error) {
	bytes := make([]byte, 32)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
