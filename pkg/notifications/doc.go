// Package notifications models pushed notification events and keeps the
// client's notification state.
//
// Events arrive as JSON with a payload whose shape depends on the event
// type. Reservation lifecycle types decode into ReservationPayload; any
// other type keeps its payload as raw JSON in OpaquePayload.
//
// Store holds the "has unread notifications" flag together with cached
// pages of the notification list. A pushed event purges every cached page
// (the list is offset paginated, so splicing a new head item into cached
// pages would shift every offset) and marks the unread flag stale so the
// next read refetches it.
//
// Formatter renders an event as a localized sentence.
package notifications
