package eventstream

import (
	"errors"
	"fmt"
)

var (
	ErrStreamEnded    = errors.New("eventstream: stream ended")
	ErrAlreadyStarted = errors.New("eventstream: already started")
	ErrClosed         = errors.New("eventstream: client closed")
)

// StatusError is returned by the HTTP dialer for a non-2xx response.
type StatusError struct {
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("eventstream: unexpected status %s", e.Status)
}

// IsStatusError reports whether err carries a non-2xx response.
func IsStatusError(err error) bool {
	var se *StatusError
	return errors.As(err, &se)
}
