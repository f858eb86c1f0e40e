// Package authflow drives the one-time passcode sequence shared by email
// verification and password reset:
//
//	Idle -> CodeSent -> Verifying -> Verified [-> Resetting -> Reset]
//
// A Controller is one flow instance. It keeps the resend cooldown and the
// verified email between steps; everything else lives on the data service.
package authflow

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/mrlokans/libris/internal/entities"
	"github.com/mrlokans/libris/internal/identity"
	"github.com/mrlokans/libris/internal/keylock"
	"github.com/mrlokans/libris/internal/remote"
)

type State string

const (
	StateIdle      State = "idle"
	StateCodeSent  State = "code_sent"
	StateVerifying State = "verifying"
	StateVerified  State = "verified"
	StateResetting State = "resetting"
	StateReset     State = "reset"
)

// CodeLength is the number of digits in a passcode.
const CodeLength = 6

var (
	ErrIncompleteCode   = errors.New("Please enter the complete 6-digit code.")
	ErrInvalidCode      = errors.New("invalid or expired code")
	ErrInvalidPurpose   = errors.New("unknown passcode purpose")
	ErrCooldown         = errors.New("Please wait before requesting another code.")
	ErrBusy             = errors.New("A request for this email is already in progress.")
	ErrPasswordMismatch = errors.New("Passwords do not match.")
	ErrNotVerified      = errors.New("Please verify the code sent to your email first.")
	ErrGrantExpired     = errors.New("Your code has expired. Please request a new one.")
)

// CooldownError reports how long until another code may be sent.
type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("Please wait %d seconds before requesting another code.", int((e.Remaining+time.Second-1)/time.Second))
}

func (e *CooldownError) Is(target error) bool {
	return target == ErrCooldown
}

// Service is the part of the data service the flow needs.
type Service interface {
	remote.Passcodes
	UpdatePassword(ctx context.Context, email, password string) error
	ConfirmEmail(ctx context.Context, email string) error
}

// Confirmer is told when an email was verified. The session store
// implements it.
type Confirmer interface {
	ConfirmEmail(email string)
}

type Config struct {
	TTL            time.Duration // Passcode validity (default: 10m)
	ResendCooldown time.Duration // Minimum gap between sends (default: 60s)
	RequestTimeout time.Duration
	Now            func() time.Time
	Random         io.Reader
}

type Controller struct {
	svc       Service
	confirmer Confirmer
	cfg       Config
	locks     keylock.Set

	mu       sync.Mutex
	state    State
	email    string
	purpose  entities.PasscodePurpose
	lastSent time.Time

	// unconfirmed is the verification code consumed by the last verify
	// whose email confirmation did not go through.
	unconfirmed string
}

// New creates a flow in Idle. confirmer may be nil.
func New(svc Service, confirmer Confirmer, cfg Config) *Controller {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.ResendCooldown <= 0 {
		cfg.ResendCooldown = 60 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Random == nil {
		cfg.Random = rand.Reader
	}
	return &Controller{
		svc:       svc,
		confirmer: confirmer,
		cfg:       cfg,
		state:     StateIdle,
	}
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Email returns the address the flow is working on.
func (c *Controller) Email() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.email
}

func (c *Controller) Purpose() entities.PasscodePurpose {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.purpose
}

// CooldownRemaining is how long until SendCode is allowed again.
func (c *Controller) CooldownRemaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cooldownLocked()
}

func (c *Controller) cooldownLocked() time.Duration {
	if c.lastSent.IsZero() {
		return 0
	}
	remaining := c.lastSent.Add(c.cfg.ResendCooldown).Sub(c.cfg.Now())
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Cancel returns the flow to Idle. The resend cooldown keeps running.
func (c *Controller) Cancel() {
	c.mu.Lock()
	c.state = StateIdle
	c.email = ""
	c.purpose = ""
	c.mu.Unlock()
}

// SendCode issues a fresh passcode for email and purpose, replacing any
// earlier one, and hands it to the delivery channel.
func (c *Controller) SendCode(ctx context.Context, email string, purpose entities.PasscodePurpose) error {
	email = normalizeEmail(email)
	if !identity.ValidEmail(email) {
		return identity.ErrEmailInvalid
	}
	if !purpose.Valid() {
		return ErrInvalidPurpose
	}

	c.mu.Lock()
	if remaining := c.cooldownLocked(); remaining > 0 {
		c.mu.Unlock()
		return &CooldownError{Remaining: remaining}
	}
	busy := c.state == StateVerifying || c.state == StateResetting
	c.mu.Unlock()
	if busy {
		return ErrBusy
	}

	release, err := c.locks.TryAcquire(flowKey(email, purpose))
	if err != nil {
		return ErrBusy
	}
	defer release()

	code, err := GenerateCode(c.cfg.Random)
	if err != nil {
		return fmt.Errorf("generate passcode: %w", err)
	}

	now := c.cfg.Now()
	err = c.call(ctx, func(ctx context.Context) error {
		return c.svc.UpsertPasscode(ctx, remote.PasscodeUpsert{
			Email:     email,
			Code:      code,
			Type:      purpose,
			ExpiresAt: now.Add(c.cfg.TTL),
		})
	})
	if err != nil {
		log.Printf("[AUTHFLOW] Storing %s passcode for %s failed: %v", purpose, email, err)
		return translate(err)
	}

	err = c.call(ctx, func(ctx context.Context) error {
		return c.svc.DispatchPasscode(ctx, email, code, purpose)
	})
	if err != nil {
		log.Printf("[AUTHFLOW] Delivering %s passcode to %s failed: %v", purpose, email, err)
		return translate(err)
	}

	c.mu.Lock()
	c.state = StateCodeSent
	c.email = email
	c.purpose = purpose
	c.lastSent = now
	c.unconfirmed = ""
	c.mu.Unlock()

	log.Printf("[AUTHFLOW] Sent %s passcode to %s", purpose, email)
	return nil
}

// VerifyCode consumes the passcode. A wrong, expired or already used code
// all fail with the same ErrInvalidCode. A verification code also marks the
// email confirmed; a reset code unlocks SetNewPassword.
func (c *Controller) VerifyCode(ctx context.Context, email, code string, purpose entities.PasscodePurpose) error {
	code = strings.TrimSpace(code)
	if !validCode(code) {
		return ErrIncompleteCode
	}
	email = normalizeEmail(email)
	if !identity.ValidEmail(email) {
		return identity.ErrEmailInvalid
	}
	if !purpose.Valid() {
		return ErrInvalidPurpose
	}

	release, err := c.locks.TryAcquire(flowKey(email, purpose))
	if err != nil {
		return ErrBusy
	}
	defer release()

	prev := c.enter(StateVerifying)
	if err := c.verify(ctx, email, code, purpose); err != nil {
		c.restore(prev)
		return err
	}

	c.mu.Lock()
	c.state = StateVerified
	c.email = email
	c.purpose = purpose
	c.mu.Unlock()

	if purpose == entities.PasscodeVerification && c.confirmer != nil {
		c.confirmer.ConfirmEmail(email)
	}
	log.Printf("[AUTHFLOW] Verified %s passcode for %s", purpose, email)
	return nil
}

func (c *Controller) verify(ctx context.Context, email, code string, purpose entities.PasscodePurpose) error {
	if purpose == entities.PasscodeVerification && c.consumed(email, code) {
		return c.confirm(ctx, email)
	}

	var rec *remote.PasscodeRecord
	err := c.call(ctx, func(ctx context.Context) (err error) {
		rec, err = c.svc.FindPasscode(ctx, email, code, purpose)
		return err
	})
	if errors.Is(err, remote.ErrNotFound) {
		return ErrInvalidCode
	}
	if err != nil {
		return translate(err)
	}
	if rec.Used || rec.ExpiresAt.Before(c.cfg.Now()) {
		return ErrInvalidCode
	}

	err = c.call(ctx, func(ctx context.Context) error {
		return c.svc.MarkPasscodeUsed(ctx, rec.ID)
	})
	if errors.Is(err, remote.ErrNotFound) {
		return ErrInvalidCode
	}
	if err != nil {
		return translate(err)
	}

	if purpose != entities.PasscodeVerification {
		return nil
	}
	c.mu.Lock()
	c.unconfirmed = flowKey(email, purpose) + ":" + code
	c.mu.Unlock()
	return c.confirm(ctx, email)
}

// confirm marks email confirmed on the service. The service accepts it for
// a consumed verification code until the code's validity runs out, so a
// failed attempt can be repeated with the same code.
func (c *Controller) confirm(ctx context.Context, email string) error {
	err := c.call(ctx, func(ctx context.Context) error {
		return c.svc.ConfirmEmail(ctx, email)
	})
	switch {
	case err == nil:
	case errors.Is(err, remote.ErrForbidden):
		c.forgetConsumed()
		return ErrInvalidCode
	default:
		log.Printf("[AUTHFLOW] Confirming %s failed after the code was used: %v", email, err)
		return translate(err)
	}
	c.forgetConsumed()
	return nil
}

func (c *Controller) consumed(email, code string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unconfirmed != "" && c.unconfirmed == flowKey(email, entities.PasscodeVerification)+":"+code
}

func (c *Controller) forgetConsumed() {
	c.mu.Lock()
	c.unconfirmed = ""
	c.mu.Unlock()
}

// SetNewPassword finishes a reset flow. The first failing password rule is
// reported.
func (c *Controller) SetNewPassword(ctx context.Context, email, password, confirm string) error {
	email = normalizeEmail(email)

	c.mu.Lock()
	ready := c.state == StateVerified && c.purpose == entities.PasscodeReset && c.email == email
	c.mu.Unlock()
	if !ready {
		return ErrNotVerified
	}

	if password == "" {
		return identity.ErrPasswordRequired
	}
	if password != confirm {
		return ErrPasswordMismatch
	}
	if err := identity.CheckStrength(password); err != nil {
		return err
	}

	release, err := c.locks.TryAcquire(flowKey(email, entities.PasscodeReset))
	if err != nil {
		return ErrBusy
	}
	defer release()

	prev := c.enter(StateResetting)
	err = c.call(ctx, func(ctx context.Context) error {
		return c.svc.UpdatePassword(ctx, email, password)
	})
	if err != nil {
		log.Printf("[AUTHFLOW] Password reset for %s failed: %v", email, err)
		if errors.Is(err, remote.ErrForbidden) {
			c.Cancel()
			return ErrGrantExpired
		}
		c.restore(prev)
		return translate(err)
	}

	c.mu.Lock()
	c.state = StateReset
	c.mu.Unlock()
	log.Printf("[AUTHFLOW] Password reset for %s", email)
	return nil
}

// GenerateCode returns a uniformly random code of CodeLength digits.
func GenerateCode(random io.Reader) (string, error) {
	n, err := rand.Int(random, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

type snapshot struct {
	state   State
	email   string
	purpose entities.PasscodePurpose
}

func (c *Controller) enter(state State) snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := snapshot{state: c.state, email: c.email, purpose: c.purpose}
	c.state = state
	return prev
}

func (c *Controller) restore(prev snapshot) {
	c.mu.Lock()
	c.state = prev.state
	c.email = prev.email
	c.purpose = prev.purpose
	c.mu.Unlock()
}

func (c *Controller) call(ctx context.Context, fn func(context.Context) error) error {
	if c.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RequestTimeout)
		defer cancel()
	}
	return remote.Classify(fn(ctx))
}

func validCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func flowKey(email string, purpose entities.PasscodePurpose) string {
	return string(purpose) + ":" + email
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func translate(err error) error {
	if remote.IsTransport(err) {
		return remote.Unavailable(err)
	}
	return err
}
