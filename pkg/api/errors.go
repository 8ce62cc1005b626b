package api

import (
	"errors"
	"fmt"
)

var ErrDecode = errors.New("api: decode response")

// StatusError is a non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api: %s %s: status %d", e.Method, e.Path, e.Code)
}

// IsUnauthorized reports whether err is a 401 or 403 response.
func IsUnauthorized(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == 401 || se.Code == 403
	}
	return false
}
