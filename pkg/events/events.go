// Package events implements the per-Collection change-notification bus.
//
// Unlike a cluster-wide async broker, a Collection's bus must deliver
// synchronously, in registration order, and must isolate a misbehaving
// subscriber from the rest of the list and from the write path that
// triggered it. The subscriber list itself is still guarded the way a
// broker's subscriber set normally is: append under lock, snapshot under
// lock, iterate out of lock.
package events

import (
	"sync"

	"github.com/cuemby/acorndb/pkg/log"
)

// Callback is invoked with the affected document after a Put that changed
// state, or a Delete of a record that existed.
type Callback[T any] func(doc T)

// Bus is a synchronous, panic-isolated multicast of document changes.
type Bus[T any] struct {
	mu          sync.RWMutex
	subscribers []Callback[T]
}

// New creates an empty Bus.
func New[T any]() *Bus[T] {
	return &Bus[T]{}
}

// Subscribe registers cb. The subscriber list is append-only until the owning
// Collection is disposed.
func (b *Bus[T]) Subscribe(cb Callback[T]) {
	if cb == nil {
		return
	}
	b.mu.Lock()
	b.subscribers = append(b.subscribers, cb)
	b.mu.Unlock()
}

// Publish calls every subscriber, in registration order, with doc. Subscriber
// panics are recovered so one bad callback cannot break the operation that
// triggered it or prevent later subscribers from running.
func (b *Bus[T]) Publish(doc T) {
	b.mu.RLock()
	subs := make([]Callback[T], len(b.subscribers))
	copy(subs, b.subscribers)
	b.mu.RUnlock()

	for _, cb := range subs {
		invokeSafely(cb, doc)
	}
}

func invokeSafely[T any](cb Callback[T], doc T) {
	defer func() {
		if r := recover(); r != nil {
			log.WithComponent("events").Error().Interface("panic", r).Msg("event subscriber panicked")
		}
	}()
	cb(doc)
}

// Count returns the number of registered subscribers.
func (b *Bus[T]) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Reset clears all subscribers. Used on Collection disposal.
func (b *Bus[T]) Reset() {
	b.mu.Lock()
	b.subscribers = nil
	b.mu.Unlock()
}
