package rooms

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/dmitrymomot/roomsync/pkg/logger"
	"github.com/dmitrymomot/roomsync/pkg/watch"
)

// Store is the authoritative in-memory room collection.
//
// Apply is meant to be called from a single goroutine (the client's event
// loop). Readers may call the accessors from any goroutine; they get
// copies.
type Store struct {
	state  State
	feed   *watch.Feed[State]
	logger *slog.Logger
	mu     sync.RWMutex
}

// StoreOption configures a Store.
type StoreOption func(*Store)

func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewStore creates an empty store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		feed:   watch.NewFeed[State](1),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Apply reduces e into the store and notifies watchers on change.
func (s *Store) Apply(ctx context.Context, e Event) Outcome {
	s.mu.Lock()
	next, out := Reduce(s.state, e)
	s.state = next
	snapshot := cloneState(next)
	s.mu.Unlock()

	s.logger.LogAttrs(ctx, slog.LevelDebug, "room event applied",
		logger.Component("rooms"),
		logger.EventType(fmt.Sprintf("%T", e)),
		slog.Bool("changed", out.Changed),
		slog.Bool("refetch", out.Refetch),
	)

	if out.Changed {
		s.feed.Publish(snapshot)
	}
	return out
}

// Rooms returns the ordered room collection.
func (s *Store) Rooms() []Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.state.Rooms)
}

// Room returns the room with the given id.
func (s *Store) Room(id int64) (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.state.index(id); i >= 0 {
		return s.state.Rooms[i], true
	}
	return Snapshot{}, false
}

// Viewing returns the id of the room being viewed, if any.
func (s *Store) Viewing() (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.ViewingID, s.state.Viewing
}

// TotalUnread sums unread counts across rooms.
func (s *Store) TotalUnread() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := 0
	for _, r := range s.state.Rooms {
		total += r.UnreadCount
	}
	return total
}

// State returns a copy of the full state.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneState(s.state)
}

// Watch subscribes to state changes. Slow readers only see the latest state.
func (s *Store) Watch(ctx context.Context) *watch.Subscription[State] {
	return s.feed.Subscribe(ctx)
}

// Close ends every watch subscription.
func (s *Store) Close() {
	s.feed.Close()
}

func cloneState(st State) State {
	st.Rooms = slices.Clone(st.Rooms)
	return st
}
