package remote

import "sync"

// Broadcaster fans auth events out to subscribers in registration order.
// Implementations of Identity embed it.
type Broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(AuthEvent)
	order  []int
}

// Subscribe registers fn and returns a function that removes it.
func (b *Broadcaster) Subscribe(fn func(AuthEvent)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs == nil {
		b.subs = make(map[int]func(AuthEvent))
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = fn
	b.order = append(b.order, id)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs, id)
			for i, v := range b.order {
				if v == id {
					b.order = append(b.order[:i], b.order[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish delivers ev to every subscriber synchronously, in the calling
// goroutine.
func (b *Broadcaster) Publish(ev AuthEvent) {
	b.mu.Lock()
	fns := make([]func(AuthEvent), 0, len(b.order))
	for _, id := range b.order {
		fns = append(fns, b.subs[id])
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
