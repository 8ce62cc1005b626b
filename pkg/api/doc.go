// Package api is the request/response client for the data the sync layer
// reads: room list pages, the unread notification flag and notification
// list pages.
//
// Every method degrades instead of failing hard: on any error it logs a
// warning and returns an empty page or false, together with the error so
// callers can decide not to cache the neutral value.
package api
