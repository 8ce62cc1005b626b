package connection

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownKind = errors.New("connection: no connector registered for kind")
	ErrTornDown    = errors.New("connection: torn down while connecting")
)

// ConnectError reports a connector failure.
type ConnectError struct {
	Kind Kind
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("connection: connect %s: %v", e.Kind, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// IsConnectError reports whether err is a connector failure.
func IsConnectError(err error) bool {
	var ce *ConnectError
	return errors.As(err, &ce)
}
