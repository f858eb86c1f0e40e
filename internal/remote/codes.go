package remote

import (
	"errors"
	"strings"
)

// Machine-readable error codes carried in API error responses.
const (
	CodeUnavailable        = "unavailable"
	CodeInvalidCredentials = "invalid_credentials"
	CodeUserExists         = "user_already_exists"
	CodeAccountLocked      = "account_locked"
	CodeSignupDisabled     = "signup_disabled"
	CodeTooManyAttempts    = "too_many_attempts"
	CodeUnauthorized       = "unauthorized"
	CodeForbidden          = "forbidden"
	CodeNotFound           = "not_found"
	CodeInvalidInput       = "invalid_input"
	CodeInternal           = "internal"
)

var codes = []struct {
	code string
	err  error
}{
	{CodeUnavailable, ErrTransport},
	{CodeInvalidCredentials, ErrInvalidCredentials},
	{CodeUserExists, ErrAlreadyRegistered},
	{CodeAccountLocked, ErrAccountLocked},
	{CodeSignupDisabled, ErrRegistrationClosed},
	{CodeTooManyAttempts, ErrTooManyAttempts},
	{CodeUnauthorized, ErrUnauthorized},
	{CodeForbidden, ErrForbidden},
	{CodeNotFound, ErrNotFound},
	{CodeInvalidInput, ErrInvalidInput},
}

// Code returns the error code for err, or CodeInternal when err is outside
// the taxonomy.
func Code(err error) string {
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeInternal
}

// FromCode rebuilds an error from a code and the message that came with it.
// Unknown codes return nil.
func FromCode(code, message string) error {
	if code == CodeInvalidInput {
		return Invalid(strings.TrimPrefix(message, ErrInvalidInput.Error()+": "))
	}
	for _, c := range codes {
		if c.code == code {
			return c.err
		}
	}
	return nil
}
