package config

import "errors"

var (
	ErrParsingConfig = errors.New("config: parse environment")
	// ErrNilPointer is returned by Load for a nil target.
	ErrNilPointer    = errors.New("config: nil target")
)
