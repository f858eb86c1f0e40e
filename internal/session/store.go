// Package session holds who is signed in and the profile-derived state the
// presentation layer renders: role, ownership sets, reading progress and
// notifications.
//
// The identity slot has a single writer at a time. SignIn, SignUp,
// ResumeSession and event-driven loads take the slot and reject a second
// caller with ErrBusy. Every load is tagged with a generation; a sign-out
// bumps the generation, so a load that finishes afterwards is discarded
// instead of resurrecting the old identity.
package session

import (
	"context"
	"errors"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mrlokans/libris/internal/entities"
	"github.com/mrlokans/libris/internal/identity"
	"github.com/mrlokans/libris/internal/keylock"
	"github.com/mrlokans/libris/internal/remote"
)

var (
	ErrBusy                  = errors.New("Another sign-in is already in progress.")
	ErrMissingFields         = errors.New("Please fill in all fields.")
	ErrInvalidCredentials    = errors.New("Invalid email or password.")
	ErrAlreadyRegistered     = errors.New("An account with this email already exists.")
	ErrProfileCreationFailed = errors.New("Your account could not be set up. Please try again.")
	ErrProfileMissing        = errors.New("No profile exists for this account.")
	ErrNotSignedIn           = errors.New("You need to sign in first.")
	ErrSessionEnded          = errors.New("The session ended before the operation completed.")
	ErrBookRequired          = errors.New("A book is required.")
	ErrInvalidProgress       = errors.New("Progress must be between 0 and 100.")
	ErrNotificationNotFound  = errors.New("Notification not found.")
)

const identityKey = "identity"

// Error pairs a user-facing failure with the cause that produced it.
type Error struct {
	Kind  error
	Cause error
}

func (e *Error) Error() string {
	return e.Kind.Error()
}

func (e *Error) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

type Config struct {
	// RequestTimeout bounds every call to the data service. Zero disables
	// the bound.
	RequestTimeout time.Duration
}

type Store struct {
	svc   remote.Service
	cfg   Config
	locks keylock.Set

	mu   sync.RWMutex
	snap Snapshot
}

func New(svc remote.Service, cfg Config) *Store {
	return &Store{
		svc:  svc,
		cfg:  cfg,
		snap: Snapshot{State: StateAnonymous},
	}
}

// Snapshot returns the current state. Callers must treat it as read-only.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// IsAdmin reports whether the signed-in identity has the admin role.
func (s *Store) IsAdmin() bool {
	snap := s.Snapshot()
	return snap.SignedIn() && snap.Identity.IsAdmin()
}

// Listen subscribes the store to the service's session changes and returns
// the function that stops it.
func (s *Store) Listen() func() {
	return s.svc.Subscribe(s.HandleEvent)
}

// SignIn checks the credentials with the data service and loads the
// identity. On failure the previous state is kept.
func (s *Store) SignIn(ctx context.Context, email, password string) error {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return ErrMissingFields
	}
	if !identity.ValidEmail(email) {
		return identity.ErrEmailInvalid
	}

	release, err := s.locks.TryAcquire(identityKey)
	if err != nil {
		return ErrBusy
	}
	defer release()

	gen, prev := s.begin()
	if err := s.signIn(ctx, gen, email, password); err != nil {
		s.abort(gen, prev)
		return err
	}
	return nil
}

func (s *Store) signIn(ctx context.Context, gen uint64, email, password string) error {
	var sess *remote.Session
	err := s.call(ctx, func(ctx context.Context) (err error) {
		sess, err = s.svc.SignIn(ctx, email, password)
		return err
	})
	if err != nil {
		log.Printf("[SESSION] Sign-in failed for %s: %v", email, err)
		return translate(err)
	}
	return s.load(ctx, gen, sess)
}

// SignUp creates the account and its profile. When the profile cannot be
// written the account is deleted again, so no account is left without a
// profile.
func (s *Store) SignUp(ctx context.Context, name, email, password string) error {
	name = strings.TrimSpace(name)
	email = normalizeEmail(email)
	if name == "" || email == "" || password == "" {
		return ErrMissingFields
	}
	if !identity.ValidEmail(email) {
		return identity.ErrEmailInvalid
	}
	if err := identity.CheckStrength(password); err != nil {
		return err
	}

	release, err := s.locks.TryAcquire(identityKey)
	if err != nil {
		return ErrBusy
	}
	defer release()

	gen, prev := s.begin()
	if err := s.signUp(ctx, gen, name, email, password); err != nil {
		s.abort(gen, prev)
		return err
	}
	return nil
}

func (s *Store) signUp(ctx context.Context, gen uint64, name, email, password string) error {
	var sess *remote.Session
	err := s.call(ctx, func(ctx context.Context) (err error) {
		sess, err = s.svc.SignUp(ctx, email, password)
		return err
	})
	if err != nil {
		log.Printf("[SESSION] Sign-up failed for %s: %v", email, err)
		return translate(err)
	}

	var profile *entities.User
	err = s.call(ctx, func(ctx context.Context) (err error) {
		profile, err = s.svc.InsertProfile(ctx, &entities.User{ID: sess.UserID, Name: name})
		return err
	})
	if err != nil {
		log.Printf("[SESSION] Profile for %s was not created, removing the account: %v", email, err)
		return s.rollback(ctx, email, err)
	}

	if !s.commit(gen, assemble(profile, sess.EmailConfirmed, nil), nil) {
		s.endRemote(ctx)
		return ErrSessionEnded
	}
	log.Printf("[SESSION] Signed up %s", email)
	return nil
}

// rollback deletes an account whose profile insert failed. It runs even
// when ctx is already done.
func (s *Store) rollback(ctx context.Context, email string, cause error) error {
	ctx = context.WithoutCancel(ctx)
	if err := s.call(ctx, s.svc.DeleteAccount); err != nil {
		log.Printf("[SESSION] Could not remove account %s after failed sign-up: %v", email, err)
		s.endRemote(ctx)
		return &Error{Kind: ErrProfileCreationFailed, Cause: errors.Join(cause, err)}
	}
	return &Error{Kind: ErrProfileCreationFailed, Cause: cause}
}

// SignOut clears the local state, then ends the remote session. A remote
// failure is logged and does not stop the local sign-out.
func (s *Store) SignOut(ctx context.Context) {
	s.clear()
	if err := s.call(ctx, s.svc.SignOut); err != nil {
		log.Printf("[SESSION] Remote sign-out failed: %v", err)
	}
}

// ResumeSession loads the identity of a session the service already holds.
// It reports false when there is none.
func (s *Store) ResumeSession(ctx context.Context) (bool, error) {
	release, err := s.locks.TryAcquire(identityKey)
	if err != nil {
		return false, ErrBusy
	}
	defer release()

	gen, prev := s.begin()

	var sess *remote.Session
	err = s.call(ctx, func(ctx context.Context) (err error) {
		sess, err = s.svc.CurrentSession(ctx)
		return err
	})
	if err != nil {
		s.abort(gen, prev)
		return false, translate(err)
	}
	if sess == nil {
		s.abort(gen, prev)
		return false, nil
	}

	if err := s.load(ctx, gen, sess); err != nil {
		s.abort(gen, prev)
		return false, err
	}
	return true, nil
}

// HandleEvent applies a session change from the service. Events are handled
// synchronously in the order they are delivered and each one supersedes any
// load started by an earlier one.
func (s *Store) HandleEvent(ev remote.AuthEvent) {
	switch ev.Kind {
	case remote.SignedOut:
		s.clear()
	case remote.SignedIn, remote.TokenRefreshed:
		if ev.Session != nil {
			s.handleSignedIn(ev.Session)
		}
	}
}

func (s *Store) handleSignedIn(sess *remote.Session) {
	snap := s.Snapshot()
	if snap.State == StateAuthenticating {
		return
	}
	if snap.SignedIn() && snap.Identity.ID == sess.UserID {
		return
	}

	release, err := s.locks.TryAcquire(identityKey)
	if err != nil {
		return
	}
	defer release()

	gen, _ := s.begin()
	if err := s.load(context.Background(), gen, sess); err != nil {
		log.Printf("[SESSION] Could not load identity for %s: %v", sess.Email, err)
		s.clearIf(gen)
	}
}

// load fetches the rows behind sess and publishes the identity if gen is
// still current. A session that was signed out locally in the meantime is
// ended remotely too.
func (s *Store) load(ctx context.Context, gen uint64, sess *remote.Session) error {
	id, notes, err := s.fetch(ctx, sess)
	if s.stale(gen) {
		s.endRemote(ctx)
		return ErrSessionEnded
	}
	if err != nil {
		if errors.Is(err, ErrProfileMissing) {
			s.endRemote(ctx)
		}
		return err
	}
	if !s.commit(gen, id, notes) {
		s.endRemote(ctx)
		return ErrSessionEnded
	}
	log.Printf("[SESSION] Signed in as %s", id.Email)
	return nil
}

func (s *Store) fetch(ctx context.Context, sess *remote.Session) (*Identity, []Notification, error) {
	var profile *entities.User
	err := s.call(ctx, func(ctx context.Context) (err error) {
		profile, err = s.svc.GetProfile(ctx, sess.UserID)
		return err
	})
	if errors.Is(err, remote.ErrNotFound) {
		return nil, nil, ErrProfileMissing
	}
	if err != nil {
		return nil, nil, translate(err)
	}

	var rows []entities.UserBook
	err = s.call(ctx, func(ctx context.Context) (err error) {
		rows, err = s.svc.ListUserBooks(ctx, sess.UserID)
		return err
	})
	if err != nil {
		return nil, nil, translate(err)
	}

	var notes []entities.Notification
	err = s.call(ctx, func(ctx context.Context) (err error) {
		notes, err = s.svc.ListNotifications(ctx, sess.UserID)
		return err
	})
	if err != nil {
		return nil, nil, translate(err)
	}

	return assemble(profile, sess.EmailConfirmed, rows), notificationsFrom(notes), nil
}

// UpdateReadingProgress records progress on a borrowed book. The local
// pointer moves first and stays even when the service rejects the write;
// its Sync field tells which happened.
func (s *Store) UpdateReadingProgress(ctx context.Context, bookID string, progress int, position string) error {
	if bookID == "" {
		return ErrBookRequired
	}
	if progress < 0 || progress > 100 {
		return ErrInvalidProgress
	}

	release, err := s.locks.Acquire(ctx, "progress:"+bookID)
	if err != nil {
		return remote.Unavailable(remote.Classify(err))
	}
	defer release()

	snap := s.Snapshot()
	if !snap.SignedIn() {
		return ErrNotSignedIn
	}
	gen := snap.Generation

	pending := Reading{BookID: bookID, Progress: progress, Position: position, Sync: SyncPending}
	s.mutate(gen, func(next *Snapshot) {
		id := next.Identity.clone()
		r := pending
		id.CurrentlyReading = &r
		if !slices.Contains(id.BorrowedBooks, bookID) {
			id.BorrowedBooks = append(id.BorrowedBooks, bookID)
		}
		next.Identity = id
	})

	row := &entities.UserBook{
		UserID:           snap.Identity.ID,
		BookID:           bookID,
		RelationshipType: entities.RelationshipBorrowed,
		Status:           entities.StatusForProgress(progress),
		Progress:         progress,
	}
	if position != "" {
		row.LastPosition = &position
	}

	state := SyncConfirmed
	err = s.call(ctx, func(ctx context.Context) error {
		_, err := s.svc.UpsertUserBook(ctx, row)
		return err
	})
	if err != nil {
		log.Printf("[SESSION] Reading progress for book %s was not saved: %v", bookID, err)
		state = SyncFailed
	}

	s.mutate(gen, func(next *Snapshot) {
		cur := next.Identity.CurrentlyReading
		if cur == nil || *cur != pending {
			return
		}
		id := next.Identity.clone()
		id.CurrentlyReading.Sync = state
		next.Identity = id
	})
	return nil
}

// MarkNotificationRead flags a notification as read locally and then on the
// service.
func (s *Store) MarkNotificationRead(ctx context.Context, id string) error {
	snap := s.Snapshot()
	if !snap.SignedIn() {
		return ErrNotSignedIn
	}
	idx := slices.IndexFunc(snap.Notifications, func(n Notification) bool { return n.ID == id })
	if idx < 0 {
		return ErrNotificationNotFound
	}
	if n := snap.Notifications[idx]; n.IsRead && n.Sync == SyncConfirmed {
		return nil
	}

	release, err := s.locks.TryAcquire("notification:" + id)
	if err != nil {
		return nil
	}
	defer release()

	gen := snap.Generation
	s.setRead(gen, id, SyncPending)

	state := SyncConfirmed
	err = s.call(ctx, func(ctx context.Context) error {
		return s.svc.MarkNotificationRead(ctx, id)
	})
	if err != nil {
		log.Printf("[SESSION] Notification %s was not marked read remotely: %v", id, err)
		state = SyncFailed
	}
	s.setRead(gen, id, state)
	return nil
}

func (s *Store) setRead(gen uint64, id string, state SyncState) {
	s.mutate(gen, func(next *Snapshot) {
		notes := slices.Clone(next.Notifications)
		for i := range notes {
			if notes[i].ID == id {
				notes[i].IsRead = true
				notes[i].Sync = state
			}
		}
		next.Notifications = notes
	})
}

// ConfirmEmail marks the signed-in identity's email as verified after the
// service accepted the confirmation.
func (s *Store) ConfirmEmail(email string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.snap.SignedIn() || s.snap.Identity.Email != normalizeEmail(email) {
		return
	}
	id := s.snap.Identity.clone()
	id.EmailConfirmed = true
	s.snap.Identity = id
}

// endRemote ends the remote session after a failure that left it without a
// usable identity.
func (s *Store) endRemote(ctx context.Context) {
	if err := s.call(context.WithoutCancel(ctx), s.svc.SignOut); err != nil {
		log.Printf("[SESSION] Remote sign-out failed: %v", err)
	}
}

func (s *Store) call(ctx context.Context, fn func(context.Context) error) error {
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}
	return remote.Classify(fn(ctx))
}

// begin enters the authenticating state. It returns the generation the
// caller owns and the snapshot to restore if it fails.
func (s *Store) begin() (uint64, Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.snap
	s.snap = Snapshot{
		State:         StateAuthenticating,
		Identity:      prev.Identity,
		Notifications: prev.Notifications,
		Generation:    prev.Generation + 1,
	}
	return s.snap.Generation, prev
}

func (s *Store) commit(gen uint64, id *Identity, notes []Notification) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snap.Generation != gen {
		return false
	}
	s.snap = Snapshot{
		State:         StateAuthenticated,
		Identity:      id,
		Notifications: notes,
		Generation:    gen,
	}
	return true
}

func (s *Store) abort(gen uint64, prev Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snap.Generation != gen {
		return
	}
	prev.Generation = gen
	s.snap = prev
}

func (s *Store) clear() {
	s.mu.Lock()
	s.snap = Snapshot{State: StateAnonymous, Generation: s.snap.Generation + 1}
	s.mu.Unlock()
}

func (s *Store) clearIf(gen uint64) {
	s.mu.Lock()
	if s.snap.Generation == gen {
		s.snap = Snapshot{State: StateAnonymous, Generation: gen + 1}
	}
	s.mu.Unlock()
}

func (s *Store) stale(gen uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.Generation != gen
}

// mutate replaces the snapshot with a changed copy if gen is current and an
// identity is loaded.
func (s *Store) mutate(gen uint64, fn func(next *Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snap.Generation != gen || !s.snap.SignedIn() {
		return
	}
	next := s.snap
	fn(&next)
	s.snap = next
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// translate turns service errors into the messages the presentation layer
// shows.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case remote.IsTransport(err):
		return remote.Unavailable(err)
	case errors.Is(err, remote.ErrInvalidCredentials):
		return &Error{Kind: ErrInvalidCredentials, Cause: err}
	case errors.Is(err, remote.ErrAlreadyRegistered):
		return &Error{Kind: ErrAlreadyRegistered, Cause: err}
	}
	return err
}
