package querycache

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

// Key identifies a query. Keys are compared element by element.
type Key []string

func (k Key) String() string {
	return strings.Join(k, "/")
}

// HasPrefix reports whether k starts with prefix.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

func (k Key) id() string {
	return strings.Join(k, "\x00")
}

// Entry is a cached query result.
type Entry[V any] struct {
	Key       Key
	Value     V
	Stale     bool
	UpdatedAt time.Time
}

// Cache is a thread-safe LRU cache of query results.
type Cache[V any] struct {
	capacity     int
	items        map[string]*list.Element
	order        *list.List
	onInvalidate []func(prefix Key)
	now          func() time.Time
	mu           sync.Mutex
}

// New creates a cache holding at most capacity entries.
// The capacity must be positive, otherwise it panics.
func New[V any](capacity int) *Cache[V] {
	if capacity <= 0 {
		panic("querycache: capacity must be positive")
	}
	return &Cache[V]{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
		now:      time.Now,
	}
}

// OnInvalidate registers a callback fired by Invalidate with the prefix
// that was invalidated. Callbacks run after the cache lock is released.
func (c *Cache[V]) OnInvalidate(fn func(prefix Key)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fn != nil {
		c.onInvalidate = append(c.onInvalidate, fn)
	}
}

// Get returns the entry and marks it as recently used.
func (c *Cache[V]) Get(key Key) (Entry[V], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key.id()]; ok {
		c.order.MoveToFront(elem)
		return *elem.Value.(*Entry[V]), true
	}
	return Entry[V]{}, false
}

// Set stores a fresh value for key.
func (c *Cache[V]) Set(key Key, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := key.id()
	if elem, ok := c.items[id]; ok {
		c.order.MoveToFront(elem)
		entry := elem.Value.(*Entry[V])
		entry.Value = value
		entry.Stale = false
		entry.UpdatedAt = c.now()
		return
	}

	entry := &Entry[V]{
		Key:       append(Key(nil), key...),
		Value:     value,
		UpdatedAt: c.now(),
	}
	c.items[id] = c.order.PushFront(entry)

	if c.order.Len() > c.capacity {
		c.removeElement(c.order.Back())
	}
}

// Remove purges every entry under prefix and returns how many were removed.
func (c *Cache[V]) Remove(prefix Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for elem := c.order.Front(); elem != nil; {
		next := elem.Next()
		if elem.Value.(*Entry[V]).Key.HasPrefix(prefix) {
			c.removeElement(elem)
			removed++
		}
		elem = next
	}
	return removed
}

// Invalidate marks every entry under prefix stale and notifies listeners.
// Listeners are notified even when nothing is cached under the prefix, so
// a query that was never loaded still gets fetched.
func (c *Cache[V]) Invalidate(prefix Key) int {
	c.mu.Lock()
	marked := 0
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		entry := elem.Value.(*Entry[V])
		if entry.Key.HasPrefix(prefix) {
			entry.Stale = true
			marked++
		}
	}
	listeners := append([]func(Key)(nil), c.onInvalidate...)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(prefix)
	}
	return marked
}

func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Clear removes all entries. Listeners stay registered.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.items)
	c.order.Init()
}

// Must be called with lock held.
func (c *Cache[V]) removeElement(elem *list.Element) {
	c.order.Remove(elem)
	delete(c.items, elem.Value.(*Entry[V]).Key.id())
}
