package roomsync

import "errors"

var (
	ErrInvalidConfig = errors.New("roomsync: invalid config")
	ErrNotLoggedIn   = errors.New("roomsync: no active session")
	ErrShutdown      = errors.New("roomsync: client is shut down")
)
