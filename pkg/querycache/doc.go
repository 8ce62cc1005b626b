// Package querycache caches the results of read queries keyed by a path of
// strings, such as {"notifications", "list", "0"}.
//
// Two invalidation operations mirror how the sync client reacts to pushes:
//
//   - Remove(prefix) purges every entry under the prefix, so the next read
//     refetches from scratch.
//   - Invalidate(prefix) keeps the entries but marks them stale and notifies
//     listeners, so readers can show the cached value while refetching.
//
// The cache is bounded; the least recently used entry is evicted when the
// capacity is exceeded.
package querycache
