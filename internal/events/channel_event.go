package events

import (
	"sync"
)

// ChannelEvent forwards notified values to subscriber channels without ever
// blocking the notifier: a subscriber whose channel is full misses the value.
type ChannelEvent[T any] struct {
	mu       sync.RWMutex
	channels map[uint64]chan<- T
	nextID   uint64
	replay   bool
	last     T
	hasLast  bool
	dropped  uint64
}

// NewChannelEvent creates a channel event. With replay set, a channel
// subscribing after the first Notify receives the most recent value.
func NewChannelEvent[T any](replay bool) *ChannelEvent[T] {
	return &ChannelEvent[T]{
		channels: make(map[uint64]chan<- T),
		replay:   replay,
	}
}

// Listen subscribes ch and returns an unsubscribe function.
func (e *ChannelEvent[T]) Listen(ch chan<- T) func() {
	if ch == nil {
		panic("events: channel cannot be nil")
	}

	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.channels[id] = ch
	last, send := e.last, e.replay && e.hasLast
	e.mu.Unlock()

	if send {
		e.trySend(ch, last)
	}

	return func() {
		e.mu.Lock()
		delete(e.channels, id)
		e.mu.Unlock()
	}
}

// Notify sends value to every subscribed channel.
func (e *ChannelEvent[T]) Notify(value T) {
	e.mu.Lock()
	if e.replay {
		e.last = value
		e.hasLast = true
	}
	targets := make([]chan<- T, 0, len(e.channels))
	for _, ch := range e.channels {
		targets = append(targets, ch)
	}
	e.mu.Unlock()

	for _, ch := range targets {
		e.trySend(ch, value)
	}
}

// ListenerCount returns the number of subscribed channels.
func (e *ChannelEvent[T]) ListenerCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.channels)
}

// Dropped returns how many deliveries were skipped because a channel was full.
func (e *ChannelEvent[T]) Dropped() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.dropped
}

func (e *ChannelEvent[T]) trySend(ch chan<- T, value T) {
	select {
	case ch <- value:
	default:
		e.mu.Lock()
		e.dropped++
		e.mu.Unlock()
	}
}
