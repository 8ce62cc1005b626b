package notifications

import "errors"

var (
	ErrMalformedEvent = errors.New("notifications: malformed event")
	ErrMissingType    = errors.New("notifications: event type is missing")
)
