package connection

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/dmitrymomot/roomsync/pkg/logger"
)

// Registry owns one handle per transport kind.
type Registry struct {
	connectors map[Kind]Connector
	handles    map[Kind]*Handle
	epochs     map[Kind]uint64
	group      singleflight.Group
	logger     *slog.Logger
	mu         sync.Mutex
}

// Option configures a Registry.
type Option func(*Registry)

// WithConnector registers the connector for kind.
func WithConnector(kind Kind, c Connector) Option {
	return func(r *Registry) {
		r.connectors[kind] = c
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		connectors: make(map[Kind]Connector),
		handles:    make(map[Kind]*Handle),
		epochs:     make(map[Kind]uint64),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register sets the connector for kind, replacing any previous one.
func (r *Registry) Register(kind Kind, c Connector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectors[kind] = c
}

// Acquire returns the shared handle for kind, connecting on first use, and
// takes a reference on it. Unauthenticated credentials yield (nil, nil).
func (r *Registry) Acquire(ctx context.Context, kind Kind, creds Credentials) (*Handle, error) {
	if !creds.Authenticated {
		r.logger.LogAttrs(ctx, slog.LevelDebug, "acquire skipped: not authenticated",
			logger.Component("connection"),
			logger.Transport(kind.String()),
		)
		return nil, nil
	}

	for {
		if h := r.lookup(kind); h != nil {
			if h.acquire() {
				return h, nil
			}
			// Torn down between lookup and acquire; dial again.
			continue
		}

		v, err, shared := r.group.Do(kind.String(), func() (any, error) {
			return r.connect(ctx, kind, creds)
		})
		if err != nil {
			return nil, err
		}

		h := v.(*Handle)
		if !h.acquire() {
			return nil, ErrTornDown
		}
		r.logger.LogAttrs(ctx, slog.LevelDebug, "connection acquired",
			logger.Component("connection"),
			logger.Transport(kind.String()),
			slog.Bool("shared", shared),
			slog.Int("refs", h.Refs()),
		)
		return h, nil
	}
}

func (r *Registry) lookup(kind Kind) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handles[kind]
}

func (r *Registry) connect(ctx context.Context, kind Kind, creds Credentials) (*Handle, error) {
	r.mu.Lock()
	if h := r.handles[kind]; h != nil {
		r.mu.Unlock()
		return h, nil
	}
	c, ok := r.connectors[kind]
	epoch := r.epochs[kind]
	r.mu.Unlock()

	if !ok {
		return nil, ErrUnknownKind
	}

	t, err := c.Connect(ctx, creds)
	if err != nil {
		r.logger.LogAttrs(ctx, slog.LevelWarn, "connect failed",
			logger.Component("connection"),
			logger.Transport(kind.String()),
			logger.Error(err),
		)
		return nil, &ConnectError{Kind: kind, Err: err}
	}

	h := &Handle{id: uuid.New(), kind: kind, transport: t}

	r.mu.Lock()
	if r.epochs[kind] != epoch {
		r.mu.Unlock()
		_ = t.Close()
		return nil, ErrTornDown
	}
	r.handles[kind] = h
	r.mu.Unlock()

	r.logger.LogAttrs(ctx, slog.LevelInfo, "connection created",
		logger.Component("connection"),
		logger.Transport(kind.String()),
		slog.String("handle_id", h.id.String()),
	)
	return h, nil
}

// Release drops one reference. It never closes the transport.
func (r *Registry) Release(h *Handle) {
	if h == nil {
		return
	}
	refs := h.release()
	r.logger.LogAttrs(context.Background(), slog.LevelDebug, "connection released",
		logger.Component("connection"),
		logger.Transport(h.kind.String()),
		slog.Int("refs", refs),
	)
}

// Handle returns the current handle for kind without taking a reference.
func (r *Registry) Handle(kind Kind) (*Handle, bool) {
	h := r.lookup(kind)
	return h, h != nil
}

// Teardown closes and forgets the transport of kind. Dials in flight are
// discarded when they complete.
func (r *Registry) Teardown(kind Kind) error {
	r.mu.Lock()
	h := r.handles[kind]
	delete(r.handles, kind)
	r.epochs[kind]++
	r.mu.Unlock()

	if h == nil {
		return nil
	}

	r.logger.LogAttrs(context.Background(), slog.LevelInfo, "connection torn down",
		logger.Component("connection"),
		logger.Transport(kind.String()),
		slog.Int("refs", h.Refs()),
	)
	return h.close()
}

// TeardownAll tears down every kind.
func (r *Registry) TeardownAll() error {
	r.mu.Lock()
	kinds := make([]Kind, 0, len(r.handles)+len(r.connectors))
	seen := make(map[Kind]bool)
	for k := range r.handles {
		kinds = append(kinds, k)
		seen[k] = true
	}
	for k := range r.connectors {
		if !seen[k] {
			kinds = append(kinds, k)
		}
	}
	r.mu.Unlock()

	var errs []error
	for _, k := range kinds {
		if err := r.Teardown(k); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
