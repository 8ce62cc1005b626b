package msgchannel

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected     = errors.New("msgchannel: not connected")
	ErrClosed           = errors.New("msgchannel: client closed")
	ErrAlreadyStarted   = errors.New("msgchannel: already started")
	ErrUnexpectedFrame  = errors.New("msgchannel: unexpected frame")
	ErrHeartbeatTimeout = errors.New("msgchannel: heart-beat timeout")
)

// ServerError is an ERROR frame sent by the broker.
type ServerError struct {
	Message string
	Body    string
}

func (e *ServerError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("msgchannel: server error: %s", e.Message)
	}
	return fmt.Sprintf("msgchannel: server error: %s: %s", e.Message, e.Body)
}

// IsServerError reports whether err is an ERROR frame from the broker.
func IsServerError(err error) bool {
	var se *ServerError
	return errors.As(err, &se)
}
