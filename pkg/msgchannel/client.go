package msgchannel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/go-stomp/stomp/v3/frame"
	"github.com/google/uuid"

	"github.com/dmitrymomot/roomsync/pkg/connection"
	"github.com/dmitrymomot/roomsync/pkg/connstate"
	"github.com/dmitrymomot/roomsync/pkg/logger"
	"github.com/dmitrymomot/roomsync/pkg/reconnect"
)

// Lifecycle states.
const (
	StateConnecting connstate.State = "connecting"
	StateOpen       connstate.State = "open"
	StateClosed     connstate.State = "closed"
)

const (
	evConnected connstate.Event = "connected"
	evLost      connstate.Event = "lost"
	evClose     connstate.Event = "close"
)

const (
	DefaultHeartbeat      = 4 * time.Second
	DefaultReconnectDelay = 5 * time.Second

	handshakeTimeout = 10 * time.Second
	writeTimeout     = 5 * time.Second
)

// Handler receives messages of one subscription. Handlers run on the
// socket reader goroutine, one at a time, in arrival order.
type Handler func(ctx context.Context, m Message)

// ConnectHook runs after every successful (re)connect.
type ConnectHook func(ctx context.Context, c *Client)

type subscription struct {
	id          string
	destination string
	handler     Handler
}

// Option configures a Client.
type Option func(*Client)

// WithHost sets the STOMP virtual host sent in CONNECT.
func WithHost(host string) Option {
	return func(c *Client) {
		c.host = host
	}
}

// WithToken adds an Authorization bearer header to CONNECT.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithHeartbeat sets the heart-beat interval offered in both directions.
// Zero disables heart-beats.
func WithHeartbeat(d time.Duration) Option {
	return func(c *Client) {
		c.heartbeat = max(d, 0)
	}
}

// WithReconnectDelay sets the fixed delay between reconnect attempts.
func WithReconnectDelay(d time.Duration) Option {
	return func(c *Client) {
		c.policy = reconnect.NewPolicy(reconnect.FixedBackoff{Interval: d}, 0)
	}
}

// WithOnConnect registers a hook that runs after every connect.
func WithOnConnect(h ConnectHook) Option {
	return func(c *Client) {
		if h != nil {
			c.hooks = append(c.hooks, h)
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

// WithStateListener observes lifecycle transitions. It runs while the
// state machine is locked and must not call back into the Client.
func WithStateListener(l func(from, to connstate.State)) Option {
	return func(c *Client) {
		if l != nil {
			c.listeners = append(c.listeners, l)
		}
	}
}

// Client is the message channel client. It is safe for concurrent use.
type Client struct {
	dial      DialFunc
	host      string
	token     string
	heartbeat time.Duration
	policy    *reconnect.Policy
	hooks     []ConnectHook
	listeners []func(from, to connstate.State)
	machine   *connstate.Machine
	logger    *slog.Logger

	mu      sync.Mutex
	conn    Conn
	session uint64
	subs    map[string]*subscription
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
	closed  bool

	writeMu sync.Mutex
}

// New creates a client that dials with dial. Call Start to connect.
func New(dial DialFunc, opts ...Option) *Client {
	c := &Client{
		dial:      dial,
		host:      "/",
		heartbeat: DefaultHeartbeat,
		policy:    reconnect.NewPolicy(reconnect.FixedBackoff{Interval: DefaultReconnectDelay}, 0),
		logger:    slog.Default(),
		subs:      make(map[string]*subscription),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	c.machine = connstate.MustNew(StateConnecting,
		connstate.WithTransition(StateConnecting, StateOpen, evConnected),
		connstate.WithTransition(StateOpen, StateConnecting, evLost),
		connstate.WithTransitionFromAny([]connstate.State{StateConnecting, StateOpen}, StateClosed, evClose),
		connstate.WithListener(func(from, to connstate.State, _ connstate.Event) {
			for _, l := range c.listeners {
				l(from, to)
			}
		}),
	)
	return c
}

// Start runs the connect loop in the background until Close.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.started {
		return ErrAlreadyStarted
	}
	c.started = true

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.cancel = cancel
	go c.loop(runCtx)
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
	case StateClosed:
		return connection.StateClosed
	default:
		return connection.StateConnecting
	}
}

// Connected reports whether a STOMP session is established.
func (c *Client) Connected() bool {
	return c.machine.Is(StateOpen)
}

// Close stops reconnecting and closes the socket. It is idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	started := c.started
	conn := c.conn
	c.conn = nil
	clear(c.subs)
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()

	if conn != nil {
		if data, err := encode(frame.New(frame.DISCONNECT)); err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
			c.writeMu.Lock()
			_ = conn.Write(ctx, websocket.MessageText, data)
			c.writeMu.Unlock()
			cancel()
		}
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
	}

	if started {
		<-c.done
	}

	err := c.machine.Fire(context.Background(), evClose, nil)
	if connstate.IsNoTransition(err) {
		return nil
	}
	return err
}

// Subscribe registers handler for destination on the current socket and
// returns a function that unsubscribes. The subscription ends with the
// socket; re-subscribe from an OnConnect hook.
func (c *Client) Subscribe(ctx context.Context, destination string, handler Handler) (func(), error) {
	c.mu.Lock()
	conn, session := c.conn, c.session
	if conn == nil || !c.machine.Is(StateOpen) {
		c.mu.Unlock()
		c.logger.LogAttrs(ctx, slog.LevelWarn, "subscribe while not connected",
			logger.Component("msgchannel"),
			logger.Destination(destination),
		)
		return func() {}, ErrNotConnected
	}
	sub := &subscription{id: uuid.NewString(), destination: destination, handler: handler}
	c.subs[sub.id] = sub
	c.mu.Unlock()

	if err := c.write(ctx, conn, subscribeFrame(sub.id, destination)); err != nil {
		c.mu.Lock()
		delete(c.subs, sub.id)
		c.mu.Unlock()
		return func() {}, fmt.Errorf("msgchannel: subscribe %s: %w", destination, err)
	}

	c.logger.LogAttrs(ctx, slog.LevelDebug, "subscribed",
		logger.Component("msgchannel"),
		logger.Destination(destination),
		slog.String("subscription", sub.id),
	)

	var once sync.Once
	return func() {
		once.Do(func() { c.unsubscribe(sub.id, session) })
	}, nil
}

func (c *Client) unsubscribe(id string, session uint64) {
	c.mu.Lock()
	_, ok := c.subs[id]
	delete(c.subs, id)
	conn := c.conn
	live := ok && conn != nil && c.session == session
	c.mu.Unlock()

	if !live {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := c.write(ctx, conn, unsubscribeFrame(id)); err != nil {
		c.logger.LogAttrs(ctx, slog.LevelDebug, "unsubscribe failed",
			logger.Component("msgchannel"),
			logger.Error(err),
		)
	}
}

// Publish sends body to destination as JSON.
func (c *Client) Publish(ctx context.Context, destination string, body []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil || !c.machine.Is(StateOpen) {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "publish while not connected",
			logger.Component("msgchannel"),
			logger.Destination(destination),
		)
		return ErrNotConnected
	}

	if err := c.write(ctx, conn, sendFrame(destination, "application/json", body)); err != nil {
		return fmt.Errorf("msgchannel: publish %s: %w", destination, err)
	}
	return nil
}

// Subscriptions returns the number of live subscriptions.
func (c *Client) Subscriptions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

func (c *Client) write(ctx context.Context, conn Conn, f *frame.Frame) error {
	data, err := encode(f)
	if err != nil {
		return err
	}
	return c.writeRaw(ctx, conn, data)
}

func (c *Client) writeRaw(ctx context.Context, conn Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.Write(ctx, websocket.MessageText, data)
}

func (c *Client) loop(ctx context.Context) {
	defer close(c.done)

	for {
		err := c.connectOnce(ctx)
		if ctx.Err() != nil {
			return
		}

		delay, _ := c.policy.Next()
		c.logger.LogAttrs(ctx, slog.LevelInfo, "message channel reconnect scheduled",
			logger.Component("msgchannel"),
			logger.Attempt(c.policy.Attempt()),
			logger.Delay(delay),
			logger.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (c *Client) connectOnce(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}

	out, in, err := c.handshake(ctx, conn)
	if err != nil {
		_ = conn.Close(websocket.StatusProtocolError, "handshake failed")
		return err
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
		return ErrClosed
	}
	c.conn = conn
	c.session++
	c.mu.Unlock()

	if err := c.machine.Fire(ctx, evConnected, nil); err != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
		return err
	}
	c.policy.Reset()
	c.logger.LogAttrs(ctx, slog.LevelInfo, "message channel connected",
		logger.Component("msgchannel"),
		slog.Duration("heartbeat_out", out),
		slog.Duration("heartbeat_in", in),
	)

	sessCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if out > 0 {
		go c.beat(sessCtx, conn, out)
	}

	for _, h := range c.hooks {
		h(sessCtx, c)
	}

	err = c.read(sessCtx, conn, in)
	c.drop(ctx, conn, err)
	return err
}

func (c *Client) handshake(ctx context.Context, conn Conn) (out, in time.Duration, err error) {
	hsCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	if err := c.write(hsCtx, conn, connectFrame(c.host, c.token, c.heartbeat)); err != nil {
		return 0, 0, fmt.Errorf("send CONNECT: %w", err)
	}

	for {
		_, data, err := conn.Read(hsCtx)
		if err != nil {
			return 0, 0, fmt.Errorf("await CONNECTED: %w", err)
		}
		f, err := decode(data)
		if err != nil {
			return 0, 0, fmt.Errorf("decode CONNECTED: %w", err)
		}
		if f == nil {
			continue
		}
		switch f.Command {
		case frame.CONNECTED:
			out, in = negotiate(c.heartbeat, f)
			return out, in, nil
		case frame.ERROR:
			return 0, 0, serverError(f)
		default:
			return 0, 0, fmt.Errorf("%w: %s before CONNECTED", ErrUnexpectedFrame, f.Command)
		}
	}
}

func (c *Client) read(ctx context.Context, conn Conn, in time.Duration) error {
	for {
		readCtx, cancel := ctx, context.CancelFunc(func() {})
		if in > 0 {
			readCtx, cancel = context.WithTimeout(ctx, 2*in)
		}
		_, data, err := conn.Read(readCtx)
		expired := readCtx.Err() != nil && ctx.Err() == nil
		cancel()
		if err != nil {
			if expired {
				return ErrHeartbeatTimeout
			}
			return err
		}

		f, err := decode(data)
		if err != nil {
			c.logger.LogAttrs(ctx, slog.LevelWarn, "dropping undecodable frame",
				logger.Component("msgchannel"),
				logger.Error(err),
			)
			continue
		}
		if f == nil {
			continue
		}

		switch f.Command {
		case frame.MESSAGE:
			c.deliver(ctx, f)
		case frame.ERROR:
			err := serverError(f)
			c.logger.LogAttrs(ctx, slog.LevelWarn, "message channel error frame",
				logger.Component("msgchannel"),
				logger.Error(err),
			)
			return err
		case frame.RECEIPT:
		default:
			c.logger.LogAttrs(ctx, slog.LevelDebug, "ignoring frame",
				logger.Component("msgchannel"),
				slog.String("command", f.Command),
			)
		}
	}
}

func (c *Client) deliver(ctx context.Context, f *frame.Frame) {
	id := f.Header.Get(frame.Subscription)

	c.mu.Lock()
	sub := c.subs[id]
	c.mu.Unlock()

	if sub == nil {
		c.logger.LogAttrs(ctx, slog.LevelDebug, "message for unknown subscription",
			logger.Component("msgchannel"),
			slog.String("subscription", id),
		)
		return
	}

	sub.handler(ctx, Message{
		Destination:  f.Header.Get(frame.Destination),
		Subscription: id,
		ContentType:  f.Header.Get(frame.ContentType),
		Body:         f.Body,
		Header:       f.Header,
	})
}

func (c *Client) beat(ctx context.Context, conn Conn, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.writeRaw(ctx, conn, []byte("\n")); err != nil {
				return
			}
		}
	}
}

// drop forgets conn after its read loop ended.
func (c *Client) drop(ctx context.Context, conn Conn, cause error) {
	c.mu.Lock()
	current := c.conn == conn
	if current {
		c.conn = nil
		clear(c.subs)
	}
	closed := c.closed
	c.mu.Unlock()

	if !current || closed {
		return
	}

	_ = conn.Close(websocket.StatusGoingAway, "reconnecting")
	_ = c.machine.Fire(ctx, evLost, nil)

	if !errors.Is(cause, context.Canceled) {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "message channel lost",
			logger.Component("msgchannel"),
			logger.Error(cause),
		)
	}
}

func serverError(f *frame.Frame) error {
	return &ServerError{Message: f.Header.Get(frame.Message), Body: string(f.Body)}
}

// NewConnector returns a connection.Connector that starts a Client per
// connect, dialing url with the session cookies and token.
func NewConnector(url string, httpClient *http.Client, opts ...Option) connection.Connector {
	return connection.ConnectorFunc(func(ctx context.Context, creds connection.Credentials) (connection.Transport, error) {
		all := append([]Option(nil), opts...)
		if creds.Token != "" {
			all = append(all, WithToken(creds.Token))
		}
		c := New(WebSocketDialer(url, creds.Cookies, httpClient), all...)
		if err := c.Start(ctx); err != nil {
			return nil, errors.Join(err, c.Close())
		}
		return c, nil
	})
}
