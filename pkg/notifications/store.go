package notifications

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/dmitrymomot/roomsync/pkg/logger"
	"github.com/dmitrymomot/roomsync/pkg/querycache"
	"github.com/dmitrymomot/roomsync/pkg/watch"
)

// Query keys.
var (
	ListKey   = querycache.Key{"notifications", "list"}
	UnreadKey = querycache.Key{"notifications", "unread"}
)

// PageKey is the cache key of one notification list page.
func PageKey(page int) querycache.Key {
	return append(querycache.Key{"notifications", "list"}, strconv.Itoa(page))
}

// Page is one page of the notification list.
type Page struct {
	Events  []Event
	Page    int
	HasNext bool
}

// Change is published to watchers after every mutation.
type Change struct {
	Unread bool
	// Stale is set when the unread flag must be refetched.
	Stale bool
	// ListsPurged is set when cached list pages were dropped.
	ListsPurged bool
}

// Store is the notification state: the unread flag and cached list pages.
// Mutations are expected from a single goroutine; reads are safe from any.
type Store struct {
	pages  *querycache.Cache[Page]
	flags  *querycache.Cache[bool]
	feed   *watch.Feed[Change]
	logger *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*storeOptions)

type storeOptions struct {
	cacheSize int
	logger    *slog.Logger
}

// WithCacheSize bounds the number of cached list pages.
func WithCacheSize(n int) StoreOption {
	return func(o *storeOptions) {
		if n > 0 {
			o.cacheSize = n
		}
	}
}

func WithLogger(l *slog.Logger) StoreOption {
	return func(o *storeOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewStore creates an empty store.
func NewStore(opts ...StoreOption) *Store {
	o := storeOptions{cacheSize: 64, logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Store{
		pages:  querycache.New[Page](o.cacheSize),
		flags:  querycache.New[bool](1),
		feed:   watch.NewFeed[Change](1),
		logger: o.logger,
	}
}

// ApplyPush records a pushed event. An unread event raises the unread
// flag. Every push purges the cached list pages and marks the unread
// query stale.
func (s *Store) ApplyPush(ctx context.Context, e Event) {
	if !e.IsRead {
		s.flags.Set(UnreadKey, true)
	}
	purged := s.pages.Remove(ListKey)
	s.flags.Invalidate(UnreadKey)
	change := s.change()
	change.ListsPurged = true

	s.logger.LogAttrs(ctx, slog.LevelDebug, "notification applied",
		logger.Component("notifications"),
		logger.NotificationID(e.ID),
		logger.EventType(string(e.Type)),
		slog.Bool("read", e.IsRead),
		slog.Int("purged_pages", purged),
	)
	s.feed.Publish(change)
}

// SetUnread stores a freshly fetched unread flag.
func (s *Store) SetUnread(v bool) {
	prev, ok := s.flags.Get(UnreadKey)
	s.flags.Set(UnreadKey, v)
	change := s.change()

	if !ok || prev.Value != v || prev.Stale {
		s.feed.Publish(change)
	}
}

// Unread returns the unread flag. fresh is false when the flag was never
// fetched or was invalidated since.
func (s *Store) Unread() (unread, fresh bool) {
	e, ok := s.flags.Get(UnreadKey)
	if !ok {
		return false, false
	}
	return e.Value, !e.Stale
}

// Page returns a cached list page.
func (s *Store) Page(page int) (Page, bool) {
	e, ok := s.pages.Get(PageKey(page))
	if !ok || e.Stale {
		return Page{}, false
	}
	return e.Value, true
}

// StorePage caches a fetched list page.
func (s *Store) StorePage(p Page) {
	s.pages.Set(PageKey(p.Page), p)
}

// InvalidateLists marks every cached page stale without dropping it.
func (s *Store) InvalidateLists() int {
	return s.pages.Invalidate(ListKey)
}

// OnUnreadInvalidated registers fn to run whenever the unread query is
// marked stale.
func (s *Store) OnUnreadInvalidated(fn func()) {
	s.flags.OnInvalidate(func(querycache.Key) { fn() })
}

// Clear drops all state, as on logout.
func (s *Store) Clear() {
	s.pages.Clear()
	s.flags.Clear()
	change := s.change()
	s.feed.Publish(change)
}

// Watch subscribes to changes. Slow readers only see the latest change.
func (s *Store) Watch(ctx context.Context) *watch.Subscription[Change] {
	return s.feed.Subscribe(ctx)
}

// Close ends every watch subscription.
func (s *Store) Close() {
	s.feed.Close()
}

func (s *Store) change() Change {
	e, ok := s.flags.Get(UnreadKey)
	return Change{Unread: ok && e.Value, Stale: !ok || e.Stale}
}
