// Package keylock serializes operations that share a logical key, such as
// one book id or one email and purpose pair.
package keylock

import (
	"context"
	"errors"
	"sync"
)

// ErrBusy reports that another operation holds the key.
var ErrBusy = errors.New("another operation on this item is still in progress")

// Set is a set of held keys. The zero value is ready to use.
type Set struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

// TryAcquire takes key or fails with ErrBusy. The returned release must be
// called exactly once.
func (s *Set) TryAcquire(key string) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.held[key]; busy {
		return nil, ErrBusy
	}
	return s.take(key), nil
}

// Acquire waits for key until ctx ends.
func (s *Set) Acquire(ctx context.Context, key string) (func(), error) {
	for {
		s.mu.Lock()
		done, busy := s.held[key]
		if !busy {
			release := s.take(key)
			s.mu.Unlock()
			return release, nil
		}
		s.mu.Unlock()

		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Held reports whether key is currently taken.
func (s *Set) Held(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, busy := s.held[key]
	return busy
}

// take must be called with s.mu held.
func (s *Set) take(key string) func() {
	if s.held == nil {
		s.held = make(map[string]chan struct{})
	}
	done := make(chan struct{})
	s.held[key] = done

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.held, key)
			s.mu.Unlock()
			close(done)
		})
	}
}
