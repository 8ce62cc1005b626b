// Package rooms holds the client-side snapshot of chat rooms and the
// reconciliation rules that fold server deltas into it.
//
// Merge and Reduce are pure: they take a value and return a new one, so
// every rule can be tested without transports. Store wraps the reduced
// State for concurrent readers and publishes a change signal on every
// mutation.
//
// Two rules hold after every operation:
//
//   - The room being viewed always has an unread count of 0.
//   - A room's last message time never moves backward.
//
// Both push and refetch deltas are idempotent, so a duplicate delivery has
// no effect.
package rooms
