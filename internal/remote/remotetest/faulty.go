// Package remotetest wraps a remote.Service with injectable failures and
// gates for exercising the core's error and concurrency paths.
package remotetest

import (
	"context"
	"sync"

	"github.com/mrlokans/libris/internal/entities"
	"github.com/mrlokans/libris/internal/remote"
)

// Faulty forwards every call to the wrapped service unless a failure is
// queued for the operation or a gate holds it.
type Faulty struct {
	remote.Service

	mu       sync.Mutex
	failures map[string][]error
	gates    map[string]*Gate
	calls    map[string]int
}

func Wrap(svc remote.Service) *Faulty {
	return &Faulty{
		Service:  svc,
		failures: make(map[string][]error),
		gates:    make(map[string]*Gate),
		calls:    make(map[string]int),
	}
}

// FailNext makes the next call to op return err without reaching the
// service. Queued failures are consumed in order.
func (f *Faulty) FailNext(op string, err error) {
	f.mu.Lock()
	f.failures[op] = append(f.failures[op], err)
	f.mu.Unlock()
}

// Hold blocks every call to op until the returned gate is opened or the
// call's context ends.
func (f *Faulty) Hold(op string) *Gate {
	g := &Gate{entered: make(chan struct{}, 16), release: make(chan struct{})}
	f.mu.Lock()
	f.gates[op] = g
	f.mu.Unlock()
	return g
}

// Calls reports how many times op was invoked.
func (f *Faulty) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *Faulty) enter(ctx context.Context, op string) error {
	f.mu.Lock()
	f.calls[op]++
	var err error
	if queue := f.failures[op]; len(queue) > 0 {
		err = queue[0]
		f.failures[op] = queue[1:]
	}
	gate := f.gates[op]
	f.mu.Unlock()

	if gate != nil {
		gate.entered <- struct{}{}
		select {
		case <-gate.release:
		case <-ctx.Done():
			return remote.Classify(ctx.Err())
		}
	}
	return err
}

// Gate holds calls until opened.
type Gate struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

// Entered is signalled once per call that reached the gate.
func (g *Gate) Entered() <-chan struct{} {
	return g.entered
}

// Open releases held and future calls.
func (g *Gate) Open() {
	g.once.Do(func() { close(g.release) })
}

func (f *Faulty) SignUp(ctx context.Context, email, password string) (*remote.Session, error) {
	if err := f.enter(ctx, "SignUp"); err != nil {
		return nil, err
	}
	return f.Service.SignUp(ctx, email, password)
}

func (f *Faulty) SignIn(ctx context.Context, email, password string) (*remote.Session, error) {
	if err := f.enter(ctx, "SignIn"); err != nil {
		return nil, err
	}
	return f.Service.SignIn(ctx, email, password)
}

func (f *Faulty) SignOut(ctx context.Context) error {
	if err := f.enter(ctx, "SignOut"); err != nil {
		return err
	}
	return f.Service.SignOut(ctx)
}

func (f *Faulty) CurrentSession(ctx context.Context) (*remote.Session, error) {
	if err := f.enter(ctx, "CurrentSession"); err != nil {
		return nil, err
	}
	return f.Service.CurrentSession(ctx)
}

func (f *Faulty) UpdatePassword(ctx context.Context, email, password string) error {
	if err := f.enter(ctx, "UpdatePassword"); err != nil {
		return err
	}
	return f.Service.UpdatePassword(ctx, email, password)
}

func (f *Faulty) ConfirmEmail(ctx context.Context, email string) error {
	if err := f.enter(ctx, "ConfirmEmail"); err != nil {
		return err
	}
	return f.Service.ConfirmEmail(ctx, email)
}

func (f *Faulty) DeleteAccount(ctx context.Context) error {
	if err := f.enter(ctx, "DeleteAccount"); err != nil {
		return err
	}
	return f.Service.DeleteAccount(ctx)
}

func (f *Faulty) ListBooks(ctx context.Context) ([]entities.Book, error) {
	if err := f.enter(ctx, "ListBooks"); err != nil {
		return nil, err
	}
	return f.Service.ListBooks(ctx)
}

func (f *Faulty) GetBook(ctx context.Context, id string) (*entities.Book, error) {
	if err := f.enter(ctx, "GetBook"); err != nil {
		return nil, err
	}
	return f.Service.GetBook(ctx, id)
}

func (f *Faulty) InsertBook(ctx context.Context, book *entities.Book) (*entities.Book, error) {
	if err := f.enter(ctx, "InsertBook"); err != nil {
		return nil, err
	}
	return f.Service.InsertBook(ctx, book)
}

func (f *Faulty) UpdateBook(ctx context.Context, book *entities.Book) (*entities.Book, error) {
	if err := f.enter(ctx, "UpdateBook"); err != nil {
		return nil, err
	}
	return f.Service.UpdateBook(ctx, book)
}

func (f *Faulty) DeleteBook(ctx context.Context, id string) error {
	if err := f.enter(ctx, "DeleteBook"); err != nil {
		return err
	}
	return f.Service.DeleteBook(ctx, id)
}

func (f *Faulty) GetProfile(ctx context.Context, id string) (*entities.User, error) {
	if err := f.enter(ctx, "GetProfile"); err != nil {
		return nil, err
	}
	return f.Service.GetProfile(ctx, id)
}

func (f *Faulty) InsertProfile(ctx context.Context, user *entities.User) (*entities.User, error) {
	if err := f.enter(ctx, "InsertProfile"); err != nil {
		return nil, err
	}
	return f.Service.InsertProfile(ctx, user)
}

func (f *Faulty) ListUserBooks(ctx context.Context, userID string) ([]entities.UserBook, error) {
	if err := f.enter(ctx, "ListUserBooks"); err != nil {
		return nil, err
	}
	return f.Service.ListUserBooks(ctx, userID)
}

func (f *Faulty) UpsertUserBook(ctx context.Context, row *entities.UserBook) (*entities.UserBook, error) {
	if err := f.enter(ctx, "UpsertUserBook"); err != nil {
		return nil, err
	}
	return f.Service.UpsertUserBook(ctx, row)
}

func (f *Faulty) ListNotifications(ctx context.Context, userID string) ([]entities.Notification, error) {
	if err := f.enter(ctx, "ListNotifications"); err != nil {
		return nil, err
	}
	return f.Service.ListNotifications(ctx, userID)
}

func (f *Faulty) MarkNotificationRead(ctx context.Context, id string) error {
	if err := f.enter(ctx, "MarkNotificationRead"); err != nil {
		return err
	}
	return f.Service.MarkNotificationRead(ctx, id)
}

func (f *Faulty) UpsertPasscode(ctx context.Context, p remote.PasscodeUpsert) error {
	if err := f.enter(ctx, "UpsertPasscode"); err != nil {
		return err
	}
	return f.Service.UpsertPasscode(ctx, p)
}

func (f *Faulty) FindPasscode(ctx context.Context, email, code string, purpose entities.PasscodePurpose) (*remote.PasscodeRecord, error) {
	if err := f.enter(ctx, "FindPasscode"); err != nil {
		return nil, err
	}
	return f.Service.FindPasscode(ctx, email, code, purpose)
}

func (f *Faulty) MarkPasscodeUsed(ctx context.Context, id string) error {
	if err := f.enter(ctx, "MarkPasscodeUsed"); err != nil {
		return err
	}
	return f.Service.MarkPasscodeUsed(ctx, id)
}

func (f *Faulty) DispatchPasscode(ctx context.Context, email, code string, purpose entities.PasscodePurpose) error {
	if err := f.enter(ctx, "DispatchPasscode"); err != nil {
		return err
	}
	return f.Service.DispatchPasscode(ctx, email, code, purpose)
}
