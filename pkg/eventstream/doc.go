// Package eventstream is the server-push notification client.
//
// A Client holds one long-lived GET against the notification endpoint and
// reads Server-Sent Events from it. The reserved "connected" frame is
// discarded; every other frame is decoded as a notifications.Event and
// handed to the Handler in delivery order. Frames that fail to decode are
// logged and dropped without touching the connection.
//
// Lifecycle:
//
//	Idle -> Connecting -> Open
//	Connecting|Open --failure--> Reconnecting --timer--> Connecting
//	Connecting|Open --failure, budget spent--> GivenUp
//	any --Close--> Closed
//
// The delay before reconnect attempt k is k times the base delay (3s by
// default) and at most five attempts are made. A successful open resets
// the attempt counter. GivenUp is terminal; only a new Client (a new login)
// connects again.
package eventstream
