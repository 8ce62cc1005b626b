package connstate

import (
	"context"
	"fmt"
	"sync"
)

// State is a named connection state.
type State string

func (s State) String() string { return string(s) }

// Event triggers a transition.
type Event string

func (e Event) String() string { return string(e) }

// Guard vetoes a transition when it returns false.
type Guard func(ctx context.Context, from State, event Event, data any) bool

// Action runs a side effect during a transition. Returning an error aborts it.
type Action func(ctx context.Context, from, to State, event Event, data any) error

// Listener observes a completed transition.
type Listener func(from, to State, event Event)

type transition struct {
	to      State
	guards  []Guard
	actions []Action
}

// Machine is a concurrency-safe state machine. Guards, actions and
// listeners run while the machine is locked and must not call back into it.
type Machine struct {
	initial     State
	current     State
	transitions map[State]map[Event][]transition
	listeners   []Listener
	mu          sync.Mutex
}

// Option configures a Machine during construction.
type Option func(*Machine) error

// TransitionOption configures guards and actions of one transition.
type TransitionOption func(*transition)

// New creates a machine in the initial state.
func New(initial State, opts ...Option) (*Machine, error) {
	if initial == "" {
		return nil, ErrEmptyState
	}
	m := &Machine{
		initial:     initial,
		current:     initial,
		transitions: make(map[State]map[Event][]transition),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MustNew is like New but panics on a malformed definition.
func MustNew(initial State, opts ...Option) *Machine {
	m, err := New(initial, opts...)
	if err != nil {
		panic(fmt.Sprintf("connstate: failed to build machine: %v", err))
	}
	return m
}

// WithTransition registers from --event--> to.
func WithTransition(from, to State, event Event, opts ...TransitionOption) Option {
	return func(m *Machine) error {
		if from == "" || to == "" || event == "" {
			return ErrInvalidTransition
		}
		t := transition{to: to}
		for _, opt := range opts {
			opt(&t)
		}
		if m.transitions[from] == nil {
			m.transitions[from] = make(map[Event][]transition)
		}
		m.transitions[from][event] = append(m.transitions[from][event], t)
		return nil
	}
}

// WithTransitionFromAny registers the transition for every listed source state.
func WithTransitionFromAny(from []State, to State, event Event, opts ...TransitionOption) Option {
	return func(m *Machine) error {
		for _, f := range from {
			if err := WithTransition(f, to, event, opts...)(m); err != nil {
				return err
			}
		}
		return nil
	}
}

// WithListener registers a callback invoked after each successful transition.
func WithListener(l Listener) Option {
	return func(m *Machine) error {
		if l != nil {
			m.listeners = append(m.listeners, l)
		}
		return nil
	}
}

func WithGuard(g Guard) TransitionOption {
	return func(t *transition) {
		if g != nil {
			t.guards = append(t.guards, g)
		}
	}
}

func WithAction(a Action) TransitionOption {
	return func(t *transition) {
		if a != nil {
			t.actions = append(t.actions, a)
		}
	}
}

func (m *Machine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Is reports whether the machine is currently in any of the given states.
func (m *Machine) Is(states ...State) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range states {
		if m.current == s {
			return true
		}
	}
	return false
}

// Fire applies event to the current state.
func (m *Machine) Fire(ctx context.Context, event Event, data any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.current
	candidates := m.transitions[from][event]
	if len(candidates) == 0 {
		return &ErrNoTransition{State: from, Event: event}
	}

	chosen := -1
	for i, t := range candidates {
		if allow(ctx, t.guards, from, event, data) {
			chosen = i
			break
		}
	}
	if chosen < 0 {
		return &ErrRejected{State: from, Event: event}
	}

	t := candidates[chosen]
	for _, action := range t.actions {
		if err := action(ctx, from, t.to, event, data); err != nil {
			return fmt.Errorf("connstate: action %s -> %s failed: %w", from, t.to, err)
		}
	}

	m.current = t.to
	for _, l := range m.listeners {
		l(from, t.to, event)
	}
	return nil
}

// CanFire reports whether Fire would find an allowed transition.
func (m *Machine) CanFire(ctx context.Context, event Event, data any) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.transitions[m.current][event] {
		if allow(ctx, t.guards, m.current, event, data) {
			return true
		}
	}
	return false
}

// Reset moves the machine back to its initial state without running
// actions or listeners.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = m.initial
}

func allow(ctx context.Context, guards []Guard, from State, event Event, data any) bool {
	for _, g := range guards {
		if !g(ctx, from, event, data) {
			return false
		}
	}
	return true
}
