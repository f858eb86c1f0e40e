// Package catalog mirrors the books table into an in-memory list, newest
// first, and mediates writes to it.
//
// A failed refresh keeps the last list that loaded and only sets the error.
// Writes to one book are serialized: a second Update or Delete for an id
// that is still being written fails with ErrBusy.
package catalog

import (
	"context"
	"errors"
	"log"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/mrlokans/libris/internal/entities"
	"github.com/mrlokans/libris/internal/keylock"
	"github.com/mrlokans/libris/internal/remote"
)

var (
	ErrBusy       = errors.New("This book is already being saved.")
	ErrNotFound   = errors.New("not found")
	ErrNotAllowed = errors.New("Only administrators can change the catalog.")
)

type Config struct {
	// RequestTimeout bounds every call to the data service. Zero disables
	// the bound.
	RequestTimeout time.Duration
}

// State is what the presentation layer renders. Books must be treated as
// read-only.
type State struct {
	Books    []entities.Book
	Loading  bool
	Err      error
	LoadedAt time.Time
}

type loadCall struct {
	done chan struct{}
	err  error
}

type writeKind int

const (
	wroteAdd writeKind = iota
	wroteUpdate
	wroteDelete
)

// write is a confirmed change made while a load was in flight. The load
// applies it again to the list it fetched.
type write struct {
	kind writeKind
	book entities.Book
}

type Store struct {
	svc   remote.Books
	cfg   Config
	locks keylock.Set
	now   func() time.Time

	mu       sync.RWMutex
	books    []entities.Book
	loading  bool
	err      error
	loadedAt time.Time
	inflight *loadCall
	pending  []write
}

func New(svc remote.Books, cfg Config) *Store {
	return &Store{
		svc: svc,
		cfg: cfg,
		now: time.Now,
	}
}

func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return State{
		Books:    s.books,
		Loading:  s.loading,
		Err:      s.err,
		LoadedAt: s.loadedAt,
	}
}

// Books returns the current list, newest first.
func (s *Store) Books() []entities.Book {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.books)
}

// Get looks a book up in the local list. It never calls the service.
func (s *Store) Get(id string) (entities.Book, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.books {
		if b.ID == id {
			return b, true
		}
	}
	return entities.Book{}, false
}

// Load fetches the whole catalog. Callers that arrive while a load is
// running wait for it and share its result.
func (s *Store) Load(ctx context.Context) error {
	s.mu.Lock()
	if c := s.inflight; c != nil {
		s.mu.Unlock()
		select {
		case <-c.done:
			return c.err
		case <-ctx.Done():
			return remote.Unavailable(remote.Classify(ctx.Err()))
		}
	}
	c := &loadCall{done: make(chan struct{})}
	s.inflight = c
	s.loading = true
	s.mu.Unlock()

	var list []entities.Book
	err := s.call(ctx, func(ctx context.Context) (err error) {
		list, err = s.svc.ListBooks(ctx)
		return err
	})

	s.mu.Lock()
	s.inflight = nil
	s.loading = false
	if err != nil {
		log.Printf("[CATALOG] Load failed, keeping %d books: %v", len(s.books), err)
		c.err = translate(err)
		s.err = c.err
	} else {
		sortNewestFirst(list)
		s.books = replay(list, s.pending)
		s.err = nil
		s.loadedAt = s.now()
	}
	s.pending = nil
	s.mu.Unlock()

	close(c.done)
	return c.err
}

// record keeps a confirmed write for the running load. Caller holds mu.
func (s *Store) record(kind writeKind, book entities.Book) {
	if s.inflight != nil {
		s.pending = append(s.pending, write{kind: kind, book: book})
	}
}

// replay applies writes that finished during a load to the fetched list.
// A fetch that already saw a write is left as it is.
func replay(list []entities.Book, writes []write) []entities.Book {
	for _, w := range writes {
		i := slices.IndexFunc(list, func(b entities.Book) bool { return b.ID == w.book.ID })
		switch w.kind {
		case wroteAdd:
			if i < 0 {
				list = append([]entities.Book{w.book}, list...)
			}
		case wroteUpdate:
			if i >= 0 {
				list[i] = w.book
			}
		case wroteDelete:
			if i >= 0 {
				list = slices.Delete(list, i, i+1)
			}
		}
	}
	return list
}

// Refresh reloads the catalog.
func (s *Store) Refresh(ctx context.Context) error {
	return s.Load(ctx)
}

// Add inserts a book and puts the stored row at the front of the list.
// Rating and reviews start at zero whatever the draft says.
func (s *Store) Add(ctx context.Context, draft *entities.Book) (*entities.Book, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	in := *draft
	in.ID = ""
	in.Rating = 0
	in.Reviews = 0

	var created *entities.Book
	err := s.call(ctx, func(ctx context.Context) (err error) {
		created, err = s.svc.InsertBook(ctx, &in)
		return err
	})
	if err != nil {
		return nil, s.fail("add", err)
	}

	s.mu.Lock()
	books := make([]entities.Book, 0, len(s.books)+1)
	books = append(books, *created)
	s.books = append(books, s.books...)
	s.err = nil
	s.record(wroteAdd, *created)
	s.mu.Unlock()

	log.Printf("[CATALOG] Added %q (%s)", created.Title, created.ID)
	return created, nil
}

// Update replaces every field of the book except id, rating and reviews.
// A missing id fails with ErrNotFound.
func (s *Store) Update(ctx context.Context, id string, draft *entities.Book) (*entities.Book, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	release, err := s.locks.TryAcquire(id)
	if err != nil {
		return nil, ErrBusy
	}
	defer release()

	in := *draft
	in.ID = id

	var updated *entities.Book
	err = s.call(ctx, func(ctx context.Context) (err error) {
		updated, err = s.svc.UpdateBook(ctx, &in)
		return err
	})
	if err != nil {
		return nil, s.fail("update", err)
	}

	s.mu.Lock()
	books := slices.Clone(s.books)
	for i := range books {
		if books[i].ID == id {
			books[i] = *updated
		}
	}
	s.books = books
	s.err = nil
	s.record(wroteUpdate, *updated)
	s.mu.Unlock()

	return updated, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	release, err := s.locks.TryAcquire(id)
	if err != nil {
		return ErrBusy
	}
	defer release()

	err = s.call(ctx, func(ctx context.Context) error {
		return s.svc.DeleteBook(ctx, id)
	})
	if err != nil {
		return s.fail("delete", err)
	}

	s.mu.Lock()
	s.books = slices.DeleteFunc(slices.Clone(s.books), func(b entities.Book) bool { return b.ID == id })
	s.err = nil
	s.record(wroteDelete, entities.Book{ID: id})
	s.mu.Unlock()

	log.Printf("[CATALOG] Deleted %s", id)
	return nil
}

// Filter narrows the local list. Empty fields match everything; Query
// matches title or author, ignoring case.
type Filter struct {
	Type     entities.BookType
	Category string
	Genre    string
	Query    string
}

func (s *Store) Filter(f Filter) []entities.Book {
	query := strings.ToLower(strings.TrimSpace(f.Query))

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []entities.Book
	for _, b := range s.books {
		if f.Type != "" && b.Type != f.Type {
			continue
		}
		if f.Category != "" && b.Category != f.Category {
			continue
		}
		if f.Genre != "" && b.Genre != f.Genre {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(b.Title), query) &&
			!strings.Contains(strings.ToLower(b.Author), query) {
			continue
		}
		out = append(out, b)
	}
	return out
}

func (s *Store) fail(op string, err error) error {
	log.Printf("[CATALOG] %s failed: %v", op, err)
	err = translate(err)
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	return err
}

func (s *Store) call(ctx context.Context, fn func(context.Context) error) error {
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}
	return remote.Classify(fn(ctx))
}

func sortNewestFirst(books []entities.Book) {
	slices.SortStableFunc(books, func(a, b entities.Book) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
}

func translate(err error) error {
	switch {
	case remote.IsTransport(err):
		return remote.Unavailable(err)
	case errors.Is(err, remote.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, remote.ErrForbidden), errors.Is(err, remote.ErrUnauthorized):
		return ErrNotAllowed
	}
	return err
}
