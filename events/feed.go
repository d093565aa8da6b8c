// Package events provides typed in-process feeds for log notifications.
package events

import (
	"sync"
	"sync/atomic"
)

// Subscription is returned by Subscribe. Unsubscribe is idempotent and safe
// to call from within the subscribed handler.
type Subscription interface {
	Unsubscribe()
}

type handler[T any] struct {
	fn     func(T)
	active atomic.Bool
}

// Feed is a typed publish/subscribe channel.
//
// Publish delivers one event at a time to every subscriber in registration
// order. Handlers run on the publishing goroutine without holding the
// subscriber list lock, they must not block and must not publish to the same feed.
type Feed[T any] struct {
	deliver sync.Mutex

	mu       sync.Mutex
	handlers []*handler[T]
}

// Subscribe registers fn to receive every event published after the call returns.
func (f *Feed[T]) Subscribe(fn func(T)) Subscription {
	h := &handler[T]{fn: fn}
	h.active.Store(true)
	f.mu.Lock()
	handlers := make([]*handler[T], 0, len(f.handlers)+1)
	handlers = append(handlers, f.handlers...)
	f.handlers = append(handlers, h)
	f.mu.Unlock()
	return &subscription[T]{feed: f, h: h}
}

// Publish delivers ev to the current subscribers.
func (f *Feed[T]) Publish(ev T) {
	f.deliver.Lock()
	defer f.deliver.Unlock()
	f.mu.Lock()
	handlers := f.handlers
	f.mu.Unlock()
	for _, h := range handlers {
		if h.active.Load() {
			h.fn(ev)
		}
	}
}

// Len returns the number of active subscriptions.
func (f *Feed[T]) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handlers)
}

// Reset drops every subscription. Unsubscribe on a dropped subscription is a no-op.
func (f *Feed[T]) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, h := range f.handlers {
		h.active.Store(false)
	}
	f.handlers = nil
}

func (f *Feed[T]) remove(h *handler[T]) {
	f.mu.Lock()
	defer f.mu.Unlock()
	handlers := make([]*handler[T], 0, len(f.handlers))
	for _, other := range f.handlers {
		if other != h {
			handlers = append(handlers, other)
		}
	}
	f.handlers = handlers
}

type subscription[T any] struct {
	once sync.Once
	feed *Feed[T]
	h    *handler[T]
}

func (s *subscription[T]) Unsubscribe() {
	s.once.Do(func() {
		s.h.active.Store(false)
		s.feed.remove(s.h)
	})
}
