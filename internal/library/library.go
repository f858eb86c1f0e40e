// Package library wires the session store, the book catalog and the
// passcode flows for one client process.
//
// # Usage
//
//	lib := library.New(client, library.ConfigFrom(cfg))
//	if err := lib.Start(ctx); err != nil { ... }
//	defer lib.Close()
package library

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/mrlokans/libris/internal/authflow"
	"github.com/mrlokans/libris/internal/catalog"
	"github.com/mrlokans/libris/internal/config"
	"github.com/mrlokans/libris/internal/entities"
	"github.com/mrlokans/libris/internal/remote"
	"github.com/mrlokans/libris/internal/session"
)

type Config struct {
	RequestTimeout time.Duration
	PasscodeTTL    time.Duration
	ResendCooldown time.Duration
	Now            func() time.Time // Clock for passcode flows; time.Now when nil
}

// ConfigFrom picks the client settings out of the process configuration.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		RequestTimeout: cfg.Remote.RequestTimeout,
		PasscodeTTL:    cfg.Passcode.TTL,
		ResendCooldown: cfg.Passcode.ResendCooldown,
	}
}

type Library struct {
	Session *session.Store
	Catalog *catalog.Store

	svc  remote.Service
	cfg  Config
	stop func()
}

func New(svc remote.Service, cfg Config) *Library {
	return &Library{
		Session: session.New(svc, session.Config{RequestTimeout: cfg.RequestTimeout}),
		Catalog: catalog.New(svc, catalog.Config{RequestTimeout: cfg.RequestTimeout}),
		svc:     svc,
		cfg:     cfg,
	}
}

// Start subscribes to session changes, resumes a saved session and loads
// the catalog. Both steps are attempted even when the first one fails.
func (l *Library) Start(ctx context.Context) error {
	if l.stop == nil {
		l.stop = l.Session.Listen()
	}

	_, resumeErr := l.Session.ResumeSession(ctx)
	if resumeErr != nil {
		log.Printf("[LIBRARY] Could not resume session: %v", resumeErr)
	}
	loadErr := l.Catalog.Load(ctx)
	if loadErr != nil {
		log.Printf("[LIBRARY] Could not load catalog: %v", loadErr)
	}
	return errors.Join(resumeErr, loadErr)
}

func (l *Library) Close() {
	if l.stop != nil {
		l.stop()
		l.stop = nil
	}
}

// NewFlow starts an idle passcode flow whose verifications update the
// session store.
func (l *Library) NewFlow() *authflow.Controller {
	return authflow.New(l.svc, l.Session, authflow.Config{
		TTL:            l.cfg.PasscodeTTL,
		ResendCooldown: l.cfg.ResendCooldown,
		RequestTimeout: l.cfg.RequestTimeout,
		Now:            l.cfg.Now,
	})
}

// SignUp creates the account and sends the verification code. The flow is
// returned even when sending fails, so the caller can offer a resend.
func (l *Library) SignUp(ctx context.Context, name, email, password string) (*authflow.Controller, error) {
	if err := l.Session.SignUp(ctx, name, email, password); err != nil {
		return nil, err
	}
	flow := l.NewFlow()
	return flow, flow.SendCode(ctx, email, entities.PasscodeVerification)
}

// BeginVerification sends a new verification code to email.
func (l *Library) BeginVerification(ctx context.Context, email string) (*authflow.Controller, error) {
	flow := l.NewFlow()
	return flow, flow.SendCode(ctx, email, entities.PasscodeVerification)
}

// BeginPasswordReset sends a reset code to email.
func (l *Library) BeginPasswordReset(ctx context.Context, email string) (*authflow.Controller, error) {
	flow := l.NewFlow()
	return flow, flow.SendCode(ctx, email, entities.PasscodeReset)
}

func (l *Library) AddBook(ctx context.Context, draft *entities.Book) (*entities.Book, error) {
	if !l.Session.IsAdmin() {
		return nil, catalog.ErrNotAllowed
	}
	return l.Catalog.Add(ctx, draft)
}

func (l *Library) UpdateBook(ctx context.Context, id string, draft *entities.Book) (*entities.Book, error) {
	if !l.Session.IsAdmin() {
		return nil, catalog.ErrNotAllowed
	}
	return l.Catalog.Update(ctx, id, draft)
}

func (l *Library) DeleteBook(ctx context.Context, id string) error {
	if !l.Session.IsAdmin() {
		return catalog.ErrNotAllowed
	}
	return l.Catalog.Delete(ctx, id)
}

// ReadBook records progress and defaults the position to the chapter the
// progress falls in.
func (l *Library) ReadBook(ctx context.Context, bookID string, progress int, position string) error {
	if position == "" {
		if book, ok := l.Catalog.Get(bookID); ok {
			position = chapterAt(book.Content, progress)
		}
	}
	return l.Session.UpdateReadingProgress(ctx, bookID, progress, position)
}

// chapterAt maps a 0-100 progress onto an ordered chapter list.
func chapterAt(chapters []string, progress int) string {
	if len(chapters) == 0 {
		return ""
	}
	i := progress * len(chapters) / 100
	if i >= len(chapters) {
		i = len(chapters) - 1
	}
	if i < 0 {
		i = 0
	}
	return chapters[i]
}
