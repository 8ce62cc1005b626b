package connstate

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyState        = errors.New("connstate: initial state cannot be empty")
	ErrInvalidTransition = errors.New("connstate: from, to and event are required")
)

// ErrNoTransition indicates the event is not defined for the current state.
type ErrNoTransition struct {
	State State
	Event Event
}

func (e *ErrNoTransition) Error() string {
	return fmt.Sprintf("connstate: no transition from %q on %q", e.State, e.Event)
}

// ErrRejected indicates every candidate transition was vetoed by its guards.
type ErrRejected struct {
	State State
	Event Event
}

func (e *ErrRejected) Error() string {
	return fmt.Sprintf("connstate: transition from %q on %q rejected by guards", e.State, e.Event)
}

func IsNoTransition(err error) bool {
	var e *ErrNoTransition
	return errors.As(err, &e)
}

func IsRejected(err error) bool {
	var e *ErrRejected
	return errors.As(err, &e)
}
