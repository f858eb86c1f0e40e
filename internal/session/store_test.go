package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/libris/internal/backend"
	"github.com/mrlokans/libris/internal/backend/backendtest"
	"github.com/mrlokans/libris/internal/entities"
	"github.com/mrlokans/libris/internal/identity"
	"github.com/mrlokans/libris/internal/remote"
	"github.com/mrlokans/libris/internal/remote/local"
	"github.com/mrlokans/libris/internal/remote/remotetest"
)

func setupStore(t *testing.T) (*backendtest.Harness, *remotetest.Faulty, *Store) {
	t.Helper()
	h := backendtest.New(t)
	svc := remotetest.Wrap(local.New(h.Backend))
	store := New(svc, Config{RequestTimeout: 5 * time.Second})
	t.Cleanup(store.Listen())
	return h, svc, store
}

func offline() error {
	return remote.Transport(errors.New("connection refused"))
}

func TestSignIn(t *testing.T) {
	ctx := context.Background()

	t.Run("loads the seeded identity", func(t *testing.T) {
		h, _, store := setupStore(t)
		user := h.SeedUser(t, "Reader", "reader@example.com")
		first := h.SeedBook(t, "First")
		second := h.SeedBook(t, "Second")
		bought := h.SeedBook(t, "Bought")
		swapped := h.SeedBook(t, "Swapped")

		base := time.Now().UTC().Add(-time.Hour)
		h.SeedUserBook(t, &entities.UserBook{
			UserID: user.ID, BookID: first.ID, RelationshipType: entities.RelationshipBorrowed,
			Progress: 40, UpdatedAt: base,
		})
		h.SeedUserBook(t, &entities.UserBook{
			UserID: user.ID, BookID: second.ID, RelationshipType: entities.RelationshipBorrowed,
			Progress: 70, UpdatedAt: base.Add(time.Minute),
		})
		h.SeedUserBook(t, &entities.UserBook{
			UserID: user.ID, BookID: bought.ID, RelationshipType: entities.RelationshipPurchased,
			UpdatedAt: base,
		})
		h.SeedUserBook(t, &entities.UserBook{
			UserID: user.ID, BookID: swapped.ID, RelationshipType: entities.RelationshipExchange,
			UpdatedAt: base,
		})
		h.SeedNotification(t, &entities.Notification{
			UserID: user.ID, Type: entities.NotificationSystemAlert, Title: "Welcome", Message: "Hello",
		})

		require.NoError(t, store.SignIn(ctx, "  Reader@Example.COM ", backendtest.Password))

		snap := store.Snapshot()
		require.True(t, snap.SignedIn())
		assert.Equal(t, StateAuthenticated, snap.State)
		assert.Equal(t, user.ID, snap.Identity.ID)
		assert.Equal(t, "Reader", snap.Identity.Name)
		assert.Equal(t, "reader@example.com", snap.Identity.Email)
		assert.Equal(t, entities.UserRoleUser, snap.Identity.Role)
		assert.False(t, snap.Identity.IsAdmin())
		assert.ElementsMatch(t, []string{first.ID, second.ID}, snap.Identity.BorrowedBooks)
		assert.Equal(t, []string{bought.ID}, snap.Identity.PurchasedBooks)
		assert.Equal(t, []string{swapped.ID}, snap.Identity.ExchangeHistory)

		require.NotNil(t, snap.Identity.CurrentlyReading)
		assert.Equal(t, second.ID, snap.Identity.CurrentlyReading.BookID, "most recently updated wins")
		assert.Equal(t, 70, snap.Identity.CurrentlyReading.Progress)

		require.Len(t, snap.Notifications, 1)
		assert.Equal(t, "Welcome", snap.Notifications[0].Title)
		assert.Equal(t, 1, snap.Unread())
	})

	t.Run("wrong password keeps the store anonymous", func(t *testing.T) {
		h, _, store := setupStore(t)
		h.SeedUser(t, "Reader", "reader@example.com")

		err := store.SignIn(ctx, "reader@example.com", "Wrong1")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Equal(t, "Invalid email or password.", err.Error())

		snap := store.Snapshot()
		assert.Equal(t, StateAnonymous, snap.State)
		assert.Nil(t, snap.Identity)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, _, store := setupStore(t)

		err := store.SignIn(ctx, "nobody@example.com", backendtest.Password)
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Equal(t, StateAnonymous, store.Snapshot().State)
	})

	t.Run("local validation skips the service", func(t *testing.T) {
		_, svc, store := setupStore(t)

		assert.ErrorIs(t, store.SignIn(ctx, "", "x"), ErrMissingFields)
		assert.ErrorIs(t, store.SignIn(ctx, "reader@example.com", ""), ErrMissingFields)
		assert.ErrorIs(t, store.SignIn(ctx, "not-an-email", "Secret1"), identity.ErrEmailInvalid)
		assert.Equal(t, 0, svc.Calls("SignIn"))
	})

	t.Run("missing profile ends the remote session", func(t *testing.T) {
		h, svc, store := setupStore(t)
		_, err := h.Backend.SignUp(ctx, "orphan@example.com", backendtest.Password, backend.RequestMeta{})
		require.NoError(t, err)

		err = store.SignIn(ctx, "orphan@example.com", backendtest.Password)
		assert.ErrorIs(t, err, ErrProfileMissing)
		assert.Equal(t, StateAnonymous, store.Snapshot().State)
		assert.Equal(t, 1, svc.Calls("SignOut"))

		current, err := svc.CurrentSession(ctx)
		require.NoError(t, err)
		assert.Nil(t, current)
	})

	t.Run("transport failure is reported generically", func(t *testing.T) {
		h, svc, store := setupStore(t)
		h.SeedUser(t, "Reader", "reader@example.com")
		svc.FailNext("ListUserBooks", offline())

		err := store.SignIn(ctx, "reader@example.com", backendtest.Password)
		assert.True(t, remote.IsTransport(err))
		assert.NotContains(t, err.Error(), "connection refused")
		assert.Equal(t, StateAnonymous, store.Snapshot().State)
	})
}

func TestSignIn_RejectsConcurrentCalls(t *testing.T) {
	h, svc, store := setupStore(t)
	h.SeedUser(t, "Reader", "reader@example.com")
	ctx := context.Background()

	gate := svc.Hold("SignIn")
	defer gate.Open()

	done := make(chan error, 1)
	go func() { done <- store.SignIn(ctx, "reader@example.com", backendtest.Password) }()
	<-gate.Entered()

	assert.Equal(t, StateAuthenticating, store.Snapshot().State)
	assert.ErrorIs(t, store.SignIn(ctx, "reader@example.com", backendtest.Password), ErrBusy)
	_, err := store.ResumeSession(ctx)
	assert.ErrorIs(t, err, ErrBusy)

	gate.Open()
	require.NoError(t, <-done)
	assert.Equal(t, StateAuthenticated, store.Snapshot().State)
	assert.Equal(t, 1, svc.Calls("SignIn"))
}

func TestSignOutDiscardsInFlightLoad(t *testing.T) {
	h, svc, store := setupStore(t)
	h.SeedUser(t, "Reader", "reader@example.com")
	ctx := context.Background()

	gate := svc.Hold("GetProfile")
	defer gate.Open()

	done := make(chan error, 1)
	go func() { done <- store.SignIn(ctx, "reader@example.com", backendtest.Password) }()
	<-gate.Entered()

	store.SignOut(ctx)
	gate.Open()

	assert.ErrorIs(t, <-done, ErrSessionEnded)
	snap := store.Snapshot()
	assert.Equal(t, StateAnonymous, snap.State)
	assert.Nil(t, snap.Identity)
	assert.Empty(t, snap.Notifications)
}

func TestSignOutDuringSignInEndsRemoteSession(t *testing.T) {
	h, svc, store := setupStore(t)
	h.SeedUser(t, "Reader", "reader@example.com")
	ctx := context.Background()

	gate := svc.Hold("SignIn")
	defer gate.Open()

	done := make(chan error, 1)
	go func() { done <- store.SignIn(ctx, "reader@example.com", backendtest.Password) }()
	<-gate.Entered()

	store.SignOut(ctx)
	gate.Open()

	assert.ErrorIs(t, <-done, ErrSessionEnded)
	assert.Equal(t, StateAnonymous, store.Snapshot().State)

	current, err := svc.CurrentSession(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)

	resumed, err := store.ResumeSession(ctx)
	require.NoError(t, err)
	assert.False(t, resumed)
	assert.Equal(t, StateAnonymous, store.Snapshot().State)
}

func TestSignIn_Timeout(t *testing.T) {
	h := backendtest.New(t)
	h.SeedUser(t, "Reader", "reader@example.com")
	svc := remotetest.Wrap(local.New(h.Backend))
	store := New(svc, Config{RequestTimeout: 20 * time.Millisecond})

	gate := svc.Hold("SignIn")
	defer gate.Open()

	err := store.SignIn(context.Background(), "reader@example.com", backendtest.Password)
	assert.True(t, remote.IsTransport(err))
	assert.Equal(t, "The service is unavailable. Please try again.", err.Error())
	assert.Equal(t, StateAnonymous, store.Snapshot().State)
}

func TestSignUp(t *testing.T) {
	ctx := context.Background()

	t.Run("creates account and profile", func(t *testing.T) {
		h, _, store := setupStore(t)

		require.NoError(t, store.SignUp(ctx, "Jane", "Jane@X.com", "Secret1"))

		snap := store.Snapshot()
		require.True(t, snap.SignedIn())
		assert.Equal(t, "Jane", snap.Identity.Name)
		assert.Equal(t, "jane@x.com", snap.Identity.Email)
		assert.Equal(t, entities.UserRoleUser, snap.Identity.Role)
		assert.False(t, snap.Identity.EmailConfirmed)
		assert.Empty(t, snap.Identity.BorrowedBooks)
		assert.Nil(t, snap.Identity.CurrentlyReading)

		account, err := h.Accounts.FindAccount(ctx, "jane@x.com")
		require.NoError(t, err)
		assert.Equal(t, snap.Identity.ID, account.ID)
	})

	t.Run("duplicate email", func(t *testing.T) {
		h, _, store := setupStore(t)
		h.SeedUser(t, "Jane", "jane@x.com")

		err := store.SignUp(ctx, "Jane Again", "jane@x.com", "Secret1")
		assert.ErrorIs(t, err, ErrAlreadyRegistered)
		assert.Equal(t, StateAnonymous, store.Snapshot().State)
	})

	t.Run("validation happens before any call", func(t *testing.T) {
		_, svc, store := setupStore(t)

		assert.ErrorIs(t, store.SignUp(ctx, " ", "jane@x.com", "Secret1"), ErrMissingFields)
		assert.ErrorIs(t, store.SignUp(ctx, "Jane", "jane", "Secret1"), identity.ErrEmailInvalid)
		assert.ErrorIs(t, store.SignUp(ctx, "Jane", "jane@x.com", "secret1"), identity.ErrPasswordNoUpper)
		assert.Equal(t, 0, svc.Calls("SignUp"))
	})

	t.Run("failed profile insert removes the account", func(t *testing.T) {
		h, svc, store := setupStore(t)
		svc.FailNext("InsertProfile", offline())

		err := store.SignUp(ctx, "Jane", "jane@x.com", "Secret1")
		assert.ErrorIs(t, err, ErrProfileCreationFailed)
		assert.Equal(t, ErrProfileCreationFailed.Error(), err.Error())
		assert.Equal(t, 1, svc.Calls("DeleteAccount"))
		assert.Equal(t, StateAnonymous, store.Snapshot().State)

		_, err = h.Accounts.FindAccount(ctx, "jane@x.com")
		assert.ErrorIs(t, err, identity.ErrAccountNotFound)

		require.NoError(t, store.SignUp(ctx, "Jane", "jane@x.com", "Secret1"), "the email is free again")
	})
}

func TestResumeSession(t *testing.T) {
	ctx := context.Background()
	h := backendtest.New(t)
	h.SeedUser(t, "Reader", "reader@example.com")

	client := local.New(h.Backend)

	store := New(client, Config{})
	resumed, err := store.ResumeSession(ctx)
	require.NoError(t, err)
	assert.False(t, resumed)
	assert.Equal(t, StateAnonymous, store.Snapshot().State)

	_, err = client.SignIn(ctx, "reader@example.com", backendtest.Password)
	require.NoError(t, err)

	resumed, err = store.ResumeSession(ctx)
	require.NoError(t, err)
	assert.True(t, resumed)
	assert.Equal(t, "reader@example.com", store.Snapshot().Identity.Email)
}

func TestHandleEvent(t *testing.T) {
	ctx := context.Background()
	h, svc, store := setupStore(t)
	h.SeedUser(t, "Reader", "reader@example.com")

	sess, err := svc.SignIn(ctx, "reader@example.com", backendtest.Password)
	require.NoError(t, err)

	snap := store.Snapshot()
	require.True(t, snap.SignedIn(), "a sign-in elsewhere loads the identity")
	assert.Equal(t, 1, svc.Calls("GetProfile"))

	store.HandleEvent(remote.AuthEvent{Kind: remote.SignedIn, Session: sess})
	store.HandleEvent(remote.AuthEvent{Kind: remote.TokenRefreshed, Session: sess})
	assert.Equal(t, 1, svc.Calls("GetProfile"), "same identity is not reloaded")
	assert.Equal(t, snap.Generation, store.Snapshot().Generation)

	require.NoError(t, svc.SignOut(ctx))
	assert.Equal(t, StateAnonymous, store.Snapshot().State)

	store.HandleEvent(remote.AuthEvent{Kind: remote.SignedOut})
	assert.Equal(t, StateAnonymous, store.Snapshot().State)
}

func TestSignOut_ClearsOnRemoteFailure(t *testing.T) {
	h, svc, store := setupStore(t)
	h.SeedUser(t, "Reader", "reader@example.com")
	ctx := context.Background()
	require.NoError(t, store.SignIn(ctx, "reader@example.com", backendtest.Password))

	svc.FailNext("SignOut", offline())
	store.SignOut(ctx)

	snap := store.Snapshot()
	assert.Equal(t, StateAnonymous, snap.State)
	assert.Nil(t, snap.Identity)
}

func TestUpdateReadingProgress(t *testing.T) {
	ctx := context.Background()

	t.Run("writes the relationship", func(t *testing.T) {
		h, _, store := setupStore(t)
		user := h.SeedUser(t, "Reader", "reader@example.com")
		book := h.SeedBook(t, "Go")
		require.NoError(t, store.SignIn(ctx, "reader@example.com", backendtest.Password))
		before := store.Snapshot()

		require.NoError(t, store.UpdateReadingProgress(ctx, book.ID, 55, "Chapter 1"))

		reading := store.Snapshot().Identity.CurrentlyReading
		require.NotNil(t, reading)
		assert.Equal(t, Reading{BookID: book.ID, Progress: 55, Position: "Chapter 1", Sync: SyncConfirmed}, *reading)
		assert.Contains(t, store.Snapshot().Identity.BorrowedBooks, book.ID)
		assert.Nil(t, before.Identity.CurrentlyReading, "published snapshots do not change")

		var row entities.UserBook
		require.NoError(t, h.DB.DB.Where("user_id = ? AND book_id = ?", user.ID, book.ID).First(&row).Error)
		assert.Equal(t, 55, row.Progress)
		assert.Equal(t, entities.RelationshipActive, row.Status)
		require.NotNil(t, row.LastPosition)
		assert.Equal(t, "Chapter 1", *row.LastPosition)

		require.NoError(t, store.UpdateReadingProgress(ctx, book.ID, 100, "Chapter 2"))
		require.NoError(t, h.DB.DB.Where("user_id = ? AND book_id = ?", user.ID, book.ID).First(&row).Error)
		assert.Equal(t, entities.RelationshipCompleted, row.Status)
	})

	t.Run("keeps the local value when the write fails", func(t *testing.T) {
		h, svc, store := setupStore(t)
		h.SeedUser(t, "Reader", "reader@example.com")
		book := h.SeedBook(t, "Go")
		require.NoError(t, store.SignIn(ctx, "reader@example.com", backendtest.Password))

		svc.FailNext("UpsertUserBook", offline())
		require.NoError(t, store.UpdateReadingProgress(ctx, book.ID, 30, "Introduction"))

		reading := store.Snapshot().Identity.CurrentlyReading
		require.NotNil(t, reading)
		assert.Equal(t, 30, reading.Progress)
		assert.Equal(t, SyncFailed, reading.Sync)
	})

	t.Run("validation", func(t *testing.T) {
		_, _, store := setupStore(t)

		assert.ErrorIs(t, store.UpdateReadingProgress(ctx, "", 10, ""), ErrBookRequired)
		assert.ErrorIs(t, store.UpdateReadingProgress(ctx, "b", 101, ""), ErrInvalidProgress)
		assert.ErrorIs(t, store.UpdateReadingProgress(ctx, "b", 10, ""), ErrNotSignedIn)
	})
}

func TestMarkNotificationRead(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T) (*backendtest.Harness, *remotetest.Faulty, *Store, *entities.Notification) {
		h, svc, store := setupStore(t)
		user := h.SeedUser(t, "Reader", "reader@example.com")
		n := h.SeedNotification(t, &entities.Notification{
			UserID: user.ID, Type: entities.NotificationDueDate, Title: "Due soon", Message: "Return it",
		})
		require.NoError(t, store.SignIn(ctx, "reader@example.com", backendtest.Password))
		return h, svc, store, n
	}

	t.Run("marks locally and remotely", func(t *testing.T) {
		h, _, store, n := seed(t)

		require.NoError(t, store.MarkNotificationRead(ctx, n.ID))

		snap := store.Snapshot()
		assert.True(t, snap.Notifications[0].IsRead)
		assert.Equal(t, SyncConfirmed, snap.Notifications[0].Sync)
		assert.Equal(t, 0, snap.Unread())

		var row entities.Notification
		require.NoError(t, h.DB.DB.First(&row, "id = ?", n.ID).Error)
		assert.True(t, row.IsRead)
	})

	t.Run("stays read when the service fails", func(t *testing.T) {
		_, svc, store, n := seed(t)
		svc.FailNext("MarkNotificationRead", offline())

		require.NoError(t, store.MarkNotificationRead(ctx, n.ID))

		note := store.Snapshot().Notifications[0]
		assert.True(t, note.IsRead)
		assert.Equal(t, SyncFailed, note.Sync)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, _, store, _ := seed(t)
		assert.ErrorIs(t, store.MarkNotificationRead(ctx, "missing"), ErrNotificationNotFound)
	})
}

func TestConfirmEmailAndRoles(t *testing.T) {
	ctx := context.Background()
	h, _, store := setupStore(t)
	h.SeedAdmin(t, "Admin", "admin@example.com")

	require.NoError(t, store.SignIn(ctx, "admin@example.com", backendtest.Password))
	assert.True(t, store.IsAdmin())

	store.SignOut(ctx)
	assert.False(t, store.IsAdmin())

	require.NoError(t, store.SignUp(ctx, "Jane", "jane@x.com", "Secret1"))
	assert.False(t, store.IsAdmin())

	store.ConfirmEmail("other@x.com")
	assert.False(t, store.Snapshot().Identity.EmailConfirmed)

	store.ConfirmEmail("JANE@x.com")
	assert.True(t, store.Snapshot().Identity.EmailConfirmed)
}
