// Package eventloop runs store mutations on a single goroutine.
//
// Transport goroutines Post typed events; the loop hands them one at a
// time, in arrival order, to a handler. Every handler call runs to
// completion before the next event is taken, so the state it mutates needs
// no further coordination between writers.
package eventloop

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dmitrymomot/roomsync/pkg/logger"
)

const defaultQueueSize = 256

// Handler processes a single event.
type Handler[E any] func(ctx context.Context, event E)

type envelope[E any] struct {
	event   E
	barrier chan struct{}
}

// Loop is a single-consumer FIFO event queue.
type Loop[E any] struct {
	handle    Handler[E]
	queue     chan envelope[E]
	done      chan struct{}
	closeOnce sync.Once
	logger    *slog.Logger
}

// Option configures a Loop.
type Option func(*options)

type options struct {
	queueSize int
	logger    *slog.Logger
}

// WithQueueSize sets the queue capacity. Post blocks while the queue is full.
func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// New creates a loop. Call Run (usually in its own goroutine) to start it.
func New[E any](handle Handler[E], opts ...Option) *Loop[E] {
	o := options{queueSize: defaultQueueSize, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Loop[E]{
		handle: handle,
		queue:  make(chan envelope[E], o.queueSize),
		done:   make(chan struct{}),
		logger: o.logger,
	}
}

// Run processes events until ctx is cancelled or Close is called.
func (l *Loop[E]) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return nil
		case env := <-l.queue:
			if env.barrier != nil {
				close(env.barrier)
				continue
			}
			l.dispatch(ctx, env.event)
		}
	}
}

// Post enqueues an event. It returns false if the loop is closed.
func (l *Loop[E]) Post(event E) bool {
	select {
	case <-l.done:
		return false
	default:
	}

	select {
	case l.queue <- envelope[E]{event: event}:
		return true
	case <-l.done:
		return false
	}
}

// Flush blocks until every event posted before the call has been handled.
func (l *Loop[E]) Flush(ctx context.Context) error {
	barrier := make(chan struct{})
	select {
	case l.queue <- envelope[E]{barrier: barrier}:
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-barrier:
		return nil
	case <-l.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the loop. Events still queued are discarded.
func (l *Loop[E]) Close() {
	l.closeOnce.Do(func() { close(l.done) })
}

func (l *Loop[E]) dispatch(ctx context.Context, event E) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.LogAttrs(ctx, slog.LevelError, "event handler panicked",
				logger.Component("eventloop"),
				logger.EventType(fmt.Sprintf("%T", event)),
				slog.Any("panic", r),
			)
		}
	}()
	l.handle(ctx, event)
}
