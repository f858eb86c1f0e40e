package remote

import (
	"context"
	"errors"
	"fmt"
)

// Transport failures: the service could not be reached or did not answer
// in time. Always retryable.
var ErrTransport = errors.New("the service is unavailable, please try again")

// Credential and account failures.
var (
	ErrInvalidCredentials = errors.New("invalid login credentials")
	ErrAlreadyRegistered  = errors.New("user already registered")
	ErrAccountLocked      = errors.New("account is locked due to too many failed login attempts")
	ErrRegistrationClosed = errors.New("registration is closed")
	ErrTooManyAttempts    = errors.New("too many attempts, please wait and try again")
)

// Authorization failures.
var (
	ErrUnauthorized = errors.New("authentication required")
	ErrForbidden    = errors.New("insufficient permissions")
)

// Consistency and input failures.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)

// transportError keeps the underlying cause for logs while matching
// ErrTransport.
type transportError struct {
	cause error
}

func (e *transportError) Error() string {
	return fmt.Sprintf("%s: %v", ErrTransport, e.cause)
}

func (e *transportError) Is(target error) bool {
	return target == ErrTransport
}

func (e *transportError) Unwrap() error {
	return e.cause
}

// Transport wraps err as a transport failure.
func Transport(err error) error {
	if err == nil || errors.Is(err, ErrTransport) {
		return err
	}
	return &transportError{cause: err}
}

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// Invalid wraps a validation message as ErrInvalidInput.
func Invalid(message string) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, message)
}

// Classify maps context expiry onto the transport class and passes every
// other error through unchanged.
func Classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Transport(err)
	}
	return err
}

// unavailableError is a transport failure as shown to a user: the message
// is generic while errors.Is still reaches ErrTransport and the cause.
type unavailableError struct {
	cause error
}

func (e *unavailableError) Error() string {
	return "The service is unavailable. Please try again."
}

func (e *unavailableError) Is(target error) bool {
	return target == ErrTransport
}

func (e *unavailableError) Unwrap() error {
	return e.cause
}

// Unavailable hides the cause of a transport failure behind a retryable
// user message.
func Unavailable(err error) error {
	return &unavailableError{cause: err}
}
