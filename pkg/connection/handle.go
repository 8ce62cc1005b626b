package connection

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
)

// Kind names a transport.
type Kind string

const (
	KindEventStream    Kind = "event-stream"
	KindMessageChannel Kind = "message-channel"
)

func (k Kind) String() string { return string(k) }

// State is the coarse lifecycle of a handle.
type State string

const (
	StateConnecting State = "CONNECTING"
	StateOpen       State = "OPEN"
	StateClosed     State = "CLOSED"
)

func (s State) String() string { return string(s) }

// Credentials identify the session a transport is opened for.
type Credentials struct {
	UserID        string
	Authenticated bool
	Cookies       []*http.Cookie
	Token         string
}

// Transport is a live connection owned by the registry.
type Transport interface {
	State() State
	Close() error
}

// Connector starts a transport. Connect must return promptly; the
// transport keeps connecting and reconnecting in the background. ctx only
// bounds the start-up call.
type Connector interface {
	Connect(ctx context.Context, creds Credentials) (Transport, error)
}

// ConnectorFunc adapts a function to Connector.
type ConnectorFunc func(ctx context.Context, creds Credentials) (Transport, error)

func (f ConnectorFunc) Connect(ctx context.Context, creds Credentials) (Transport, error) {
	return f(ctx, creds)
}

// Handle is a shared reference to a transport. Every consumer of a kind
// holds the same *Handle.
type Handle struct {
	id        uuid.UUID
	kind      Kind
	transport Transport
	refs      int
	closed    bool
	mu        sync.Mutex
}

func (h *Handle) ID() uuid.UUID        { return h.id }
func (h *Handle) Kind() Kind           { return h.kind }
func (h *Handle) Transport() Transport { return h.transport }

// State returns CLOSED after teardown, otherwise the transport state.
func (h *Handle) State() State {
	h.mu.Lock()
	closed := h.closed
	h.mu.Unlock()
	if closed {
		return StateClosed
	}
	return h.transport.State()
}

// Refs returns the number of consumers holding the handle.
func (h *Handle) Refs() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.refs
}

func (h *Handle) acquire() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.refs++
	return true
}

func (h *Handle) release() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.refs > 0 {
		h.refs--
	}
	return h.refs
}

func (h *Handle) close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	h.refs = 0
	h.mu.Unlock()
	return h.transport.Close()
}
