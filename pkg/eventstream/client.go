package eventstream

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/dmitrymomot/roomsync/pkg/connection"
	"github.com/dmitrymomot/roomsync/pkg/connstate"
	"github.com/dmitrymomot/roomsync/pkg/logger"
	"github.com/dmitrymomot/roomsync/pkg/notifications"
	"github.com/dmitrymomot/roomsync/pkg/reconnect"
)

// Lifecycle states.
const (
	StateIdle         connstate.State = "idle"
	StateConnecting   connstate.State = "connecting"
	StateOpen         connstate.State = "open"
	StateReconnecting connstate.State = "reconnecting"
	StateGivenUp      connstate.State = "given_up"
	StateClosed       connstate.State = "closed"
)

const (
	evStart  connstate.Event = "start"
	evOpened connstate.Event = "opened"
	evFailed connstate.Event = "failed"
	evRetry  connstate.Event = "retry"
	evClose  connstate.Event = "close"
)

const (
	DefaultMaxAttempts = 5
	DefaultBaseDelay   = 3 * time.Second
)

// Handler receives decoded events in delivery order.
type Handler func(ctx context.Context, e notifications.Event)

// StateListener observes lifecycle transitions. It runs while the state
// machine is locked and must not call back into the Client.
type StateListener func(from, to connstate.State)

// Option configures a Client.
type Option func(*Client)

// WithPolicy replaces the reconnect policy.
func WithPolicy(p *reconnect.Policy) Option {
	return func(c *Client) {
		if p != nil {
			c.policy = p
		}
	}
}

// WithBackoff sets a linear backoff of base per attempt and an attempt
// budget.
func WithBackoff(base time.Duration, maxAttempts int) Option {
	return func(c *Client) {
		c.policy = reconnect.NewPolicy(reconnect.LinearBackoff{Interval: base}, maxAttempts)
	}
}

// WithScheduler replaces the timer source.
func WithScheduler(s Scheduler) Option {
	return func(c *Client) {
		if s != nil {
			c.scheduler = s
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

func WithStateListener(l StateListener) Option {
	return func(c *Client) {
		if l != nil {
			c.listeners = append(c.listeners, l)
		}
	}
}

// Client is the event stream client. It is safe for concurrent use.
type Client struct {
	dialer    Dialer
	handler   Handler
	policy    *reconnect.Policy
	scheduler Scheduler
	machine   *connstate.Machine
	listeners []StateListener
	logger    *slog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	timer   Timer
	started bool
	closed  bool
}

// New creates an idle client. Call Start to connect.
func New(dialer Dialer, handler Handler, opts ...Option) *Client {
	c := &Client{
		dialer:    dialer,
		handler:   handler,
		policy:    reconnect.NewPolicy(reconnect.LinearBackoff{Interval: DefaultBaseDelay}, DefaultMaxAttempts),
		scheduler: clock{},
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.handler == nil {
		c.handler = func(context.Context, notifications.Event) {}
	}

	granted := func(_ context.Context, _ connstate.State, _ connstate.Event, data any) bool {
		ok, _ := data.(bool)
		return ok
	}
	live := []connstate.State{StateConnecting, StateOpen}

	c.machine = connstate.MustNew(StateIdle,
		connstate.WithTransition(StateIdle, StateConnecting, evStart),
		connstate.WithTransition(StateConnecting, StateOpen, evOpened),
		connstate.WithTransitionFromAny(live, StateReconnecting, evFailed, connstate.WithGuard(granted)),
		connstate.WithTransitionFromAny(live, StateGivenUp, evFailed),
		connstate.WithTransition(StateReconnecting, StateConnecting, evRetry),
		connstate.WithTransitionFromAny(
			[]connstate.State{StateIdle, StateConnecting, StateOpen, StateReconnecting, StateGivenUp},
			StateClosed, evClose,
		),
		connstate.WithListener(func(from, to connstate.State, _ connstate.Event) {
			for _, l := range c.listeners {
				l(from, to)
			}
		}),
	)
	return c
}

// Start begins connecting in the background. ctx is only used for logging;
// the connection lives until Close.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.started {
		return ErrAlreadyStarted
	}
	if err := c.machine.Fire(ctx, evStart, nil); err != nil {
		return err
	}
	c.started = true
	c.ctx, c.cancel = context.WithCancel(context.WithoutCancel(ctx))

	go c.run(c.ctx)
	return nil
}

// Phase returns the detailed lifecycle state.
func (c *Client) Phase() connstate.State {
	return c.machine.Current()
}

// State maps the lifecycle to the coarse handle state.
func (c *Client) State() connection.State {
	switch c.machine.Current() {
	case StateOpen:
		return connection.StateOpen
	case StateGivenUp, StateClosed:
		return connection.StateClosed
	default:
		return connection.StateConnecting
	}
}

// Attempt returns the number of consecutive failed attempts.
func (c *Client) Attempt() int {
	return c.policy.Attempt()
}

// Close cancels any pending retry, drops the stream and moves to Closed.
// It is idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()

	err := c.machine.Fire(context.Background(), evClose, nil)
	if connstate.IsNoTransition(err) {
		return nil
	}
	return err
}

func (c *Client) run(ctx context.Context) {
	body, err := c.dialer.Open(ctx)
	if err != nil {
		c.fail(ctx, err)
		return
	}
	defer body.Close()
	stop := context.AfterFunc(ctx, func() { _ = body.Close() })
	defer stop()

	if !c.opened(ctx) {
		return
	}

	sc := NewScanner(body)
	for sc.Next() {
		c.dispatch(ctx, sc.Frame())
	}

	err = sc.Err()
	if err == nil {
		err = ErrStreamEnded
	}
	c.fail(ctx, err)
}

func (c *Client) opened(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || ctx.Err() != nil {
		return false
	}
	if err := c.machine.Fire(ctx, evOpened, nil); err != nil {
		return false
	}
	c.policy.Reset()
	c.logger.LogAttrs(ctx, slog.LevelInfo, "event stream open",
		logger.Component("eventstream"),
	)
	return true
}

func (c *Client) dispatch(ctx context.Context, f Frame) {
	if ctx.Err() != nil {
		return
	}
	if f.IsConnected() {
		c.logger.LogAttrs(ctx, slog.LevelDebug, "event stream acknowledged",
			logger.Component("eventstream"),
		)
		return
	}

	e, err := notifications.Decode([]byte(f.Data))
	if err != nil {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "dropping undecodable frame",
			logger.Component("eventstream"),
			logger.Error(err),
			slog.Int("size", len(f.Data)),
		)
		return
	}

	c.logger.LogAttrs(ctx, slog.LevelDebug, "notification received",
		logger.Component("eventstream"),
		logger.NotificationID(e.ID),
		logger.EventType(string(e.Type)),
	)
	c.handler(ctx, e)
}

func (c *Client) fail(ctx context.Context, cause error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || ctx.Err() != nil {
		return
	}

	delay, ok := c.policy.Next()
	if err := c.machine.Fire(ctx, evFailed, ok); err != nil {
		return
	}

	if !ok {
		c.logger.LogAttrs(ctx, slog.LevelError, "event stream gave up",
			logger.Component("eventstream"),
			logger.Attempt(c.policy.Attempt()),
			logger.Error(cause),
		)
		return
	}

	c.logger.LogAttrs(ctx, slog.LevelInfo, "event stream reconnect scheduled",
		logger.Component("eventstream"),
		logger.Attempt(c.policy.Attempt()),
		logger.Delay(delay),
		logger.Error(cause),
	)
	c.timer = c.scheduler.AfterFunc(delay, func() { c.retry(ctx) })
}

func (c *Client) retry(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.timer = nil
	if c.closed || ctx.Err() != nil {
		return
	}
	if err := c.machine.Fire(ctx, evRetry, nil); err != nil {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "unexpected retry",
			logger.Component("eventstream"),
			logger.State(c.machine.Current().String()),
			logger.Error(err),
		)
		return
	}
	go c.run(ctx)
}

// NewConnector returns a connection.Connector that starts a Client per
// connect, dialing url over HTTP with the session cookies.
func NewConnector(url string, handler Handler, dialOpts []HTTPDialerOption, opts ...Option) connection.Connector {
	return connection.ConnectorFunc(func(ctx context.Context, creds connection.Credentials) (connection.Transport, error) {
		d, err := NewHTTPDialer(url, creds.Cookies, dialOpts...)
		if err != nil {
			return nil, err
		}
		c := New(d, handler, opts...)
		if err := c.Start(ctx); err != nil {
			return nil, errors.Join(err, c.Close())
		}
		return c, nil
	})
}
