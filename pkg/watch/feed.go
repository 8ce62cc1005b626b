// Package watch delivers store change notifications to readers.
//
// A Feed fans a value out to every subscriber without ever blocking the
// publisher. When a subscriber's buffer is full the oldest pending value is
// discarded in favour of the new one, so a slow reader always ends up with
// the latest state rather than a stale backlog.
package watch

import (
	"context"
	"sync"
)

// Subscription receives values published to a Feed.
type Subscription[T any] struct {
	ch     chan T
	feed   *Feed[T]
	closed bool
	mu     sync.Mutex
}

// C returns the receive channel. It is closed when the subscription or the
// feed is closed.
func (s *Subscription[T]) C() <-chan T {
	return s.ch
}

// Close unsubscribes. It is idempotent.
func (s *Subscription[T]) Close() {
	if s.feed != nil {
		s.feed.remove(s)
		return
	}
	s.close()
}

func (s *Subscription[T]) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

func (s *Subscription[T]) send(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	for {
		select {
		case s.ch <- v:
			return
		default:
		}
		select {
		case <-s.ch:
		default:
		}
	}
}

// Feed is a non-blocking one-to-many publisher. Safe for concurrent use.
type Feed[T any] struct {
	subs       map[*Subscription[T]]struct{}
	bufferSize int
	closed     bool
	mu         sync.RWMutex
}

// NewFeed creates a feed whose subscribers buffer up to bufferSize values.
// A minimum of 1 is enforced.
func NewFeed[T any](bufferSize int) *Feed[T] {
	return &Feed[T]{
		subs:       make(map[*Subscription[T]]struct{}),
		bufferSize: max(bufferSize, 1),
	}
}

// Subscribe registers a subscriber that is removed when ctx is done.
// Subscribing to a closed feed returns an already closed subscription.
func (f *Feed[T]) Subscribe(ctx context.Context) *Subscription[T] {
	sub := &Subscription[T]{ch: make(chan T, f.bufferSize)}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		sub.close()
		return sub
	}
	sub.feed = f
	f.subs[sub] = struct{}{}
	f.mu.Unlock()

	if ctx.Done() != nil {
		go func() {
			<-ctx.Done()
			f.remove(sub)
		}()
	}
	return sub
}

// Publish delivers v to every current subscriber.
func (f *Feed[T]) Publish(v T) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.closed {
		return
	}
	for sub := range f.subs {
		sub.send(v)
	}
}

// Len returns the number of active subscribers.
func (f *Feed[T]) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

// Close closes every subscription. Later Publish calls are no-ops.
func (f *Feed[T]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for sub := range f.subs {
		sub.close()
	}
	clear(f.subs)
}

func (f *Feed[T]) remove(sub *Subscription[T]) {
	f.mu.Lock()
	delete(f.subs, sub)
	f.mu.Unlock()
	sub.close()
}
