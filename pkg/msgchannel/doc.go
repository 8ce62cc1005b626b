// Package msgchannel is a STOMP 1.2 publish/subscribe client over a
// WebSocket.
//
// The client keeps one socket per session. When the socket drops it waits
// a fixed delay and dials again, forever, until Close. Subscriptions are
// bound to a socket: after every (re)connect the OnConnect callbacks run so
// consumers can subscribe again.
//
// Subscribe and Publish never queue. While the socket is not connected
// they log a warning and return ErrNotConnected; retrying is up to the
// caller.
//
// Heart-beats are negotiated per STOMP 1.2. The client sends a bare
// newline at the outgoing interval and drops the socket when the server
// stays silent for twice the incoming interval.
package msgchannel
