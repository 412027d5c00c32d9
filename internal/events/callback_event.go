// Package events provides small typed pub/sub primitives used to fan engine
// notifications out to observers such as the control server.
package events

import (
	"sync"
)

type callbackListener[T any] struct {
	id uint64
	fn func(T)
}

// CallbackEvent delivers each notified value to every listener, in the order
// the listeners registered. Listeners run on the notifying goroutine.
type CallbackEvent[T any] struct {
	mu        sync.RWMutex
	listeners []callbackListener[T]
	nextID    uint64
	replay    bool
	last      T
	hasLast   bool
}

// NewCallbackEvent creates an event. With replay set, a listener registering
// after the first Notify is immediately called with the most recent value.
func NewCallbackEvent[T any](replay bool) *CallbackEvent[T] {
	return &CallbackEvent[T]{replay: replay}
}

// Listen registers fn and returns a function that removes it. The returned
// function is safe to call more than once and from inside fn.
func (e *CallbackEvent[T]) Listen(fn func(T)) func() {
	if fn == nil {
		panic("events: callback cannot be nil")
	}

	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners = append(e.listeners, callbackListener[T]{id: id, fn: fn})
	last, send := e.last, e.replay && e.hasLast
	e.mu.Unlock()

	if send {
		fn(last)
	}

	return func() { e.remove(id) }
}

// Notify calls every listener with value. Listeners are called outside the lock.
func (e *CallbackEvent[T]) Notify(value T) {
	e.mu.Lock()
	if e.replay {
		e.last = value
		e.hasLast = true
	}
	snapshot := make([]callbackListener[T], len(e.listeners))
	copy(snapshot, e.listeners)
	e.mu.Unlock()

	for _, l := range snapshot {
		if e.registered(l.id) {
			l.fn(value)
		}
	}
}

// ListenerCount returns the number of registered listeners.
func (e *CallbackEvent[T]) ListenerCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners)
}

func (e *CallbackEvent[T]) registered(id uint64) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, l := range e.listeners {
		if l.id == id {
			return true
		}
	}
	return false
}

func (e *CallbackEvent[T]) remove(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, l := range e.listeners {
		if l.id == id {
			e.listeners = append(e.listeners[:i], e.listeners[i+1:]...)
			return
		}
	}
}
