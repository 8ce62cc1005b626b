package eventloop

import "errors"

// ErrClosed is returned by Flush after Close.
var ErrClosed = errors.New("eventloop: closed")
