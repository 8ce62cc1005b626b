package roomsync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dmitrymomot/roomsync/pkg/api"
	"github.com/dmitrymomot/roomsync/pkg/connection"
	"github.com/dmitrymomot/roomsync/pkg/eventloop"
	"github.com/dmitrymomot/roomsync/pkg/eventstream"
	"github.com/dmitrymomot/roomsync/pkg/logger"
	"github.com/dmitrymomot/roomsync/pkg/msgchannel"
	"github.com/dmitrymomot/roomsync/pkg/notifications"
	"github.com/dmitrymomot/roomsync/pkg/rooms"
)

// Kind names a shared transport.
type Kind = connection.Kind

// Transport kinds a consumer can mount.
const (
	EventStream    = connection.KindEventStream
	MessageChannel = connection.KindMessageChannel
)

// Publisher is implemented by transports that can send to a destination.
type Publisher interface {
	Publish(ctx context.Context, destination string, body []byte) error
}

// Option configures a Client.
type Option func(*Client)

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithHTTPClient sets the client used for API calls and transport dials.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithEventStreamOptions appends options to every event stream client.
func WithEventStreamOptions(opts ...eventstream.Option) Option {
	return func(c *Client) {
		c.streamOpts = append(c.streamOpts, opts...)
	}
}

// WithMessageChannelOptions appends options to every message channel client.
func WithMessageChannelOptions(opts ...msgchannel.Option) Option {
	return func(c *Client) {
		c.channelOpts = append(c.channelOpts, opts...)
	}
}

// WithConnector replaces the connector of a transport kind.
func WithConnector(kind connection.Kind, conn connection.Connector) Option {
	return func(c *Client) {
		c.connectors[kind] = conn
	}
}

type session struct {
	creds connection.Credentials
	api   *api.Client
	epoch uint64
}

// Client is the sync context handed to consumers. It owns both shared
// transports and both stores. Every store mutation is serialized through
// one event loop.
type Client struct {
	cfg        Config
	logger     *slog.Logger
	httpClient *http.Client

	registry  *connection.Registry
	rooms     *rooms.Store
	notes     *notifications.Store
	formatter *notifications.Formatter
	loop      *eventloop.Loop[event]
	fetches   singleflight.Group

	connectors  map[connection.Kind]connection.Connector
	streamOpts  []eventstream.Option
	channelOpts []msgchannel.Option

	mu     sync.Mutex
	sess   *session
	epoch  uint64
	closed bool

	// pushes counts applied notification pushes; fetch results older
	// than the last push are not cached.
	pushes atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a client and starts its event loop. No connection is made
// until a consumer mounts a transport after Login.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Client{
		cfg:        cfg,
		logger:     slog.Default(),
		connectors: make(map[connection.Kind]connection.Connector),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}

	formatter, err := notifications.NewFormatter(nil, cfg.Language)
	if err != nil {
		return nil, fmt.Errorf("roomsync: load notification texts: %w", err)
	}
	c.formatter = formatter

	c.rooms = rooms.NewStore(rooms.WithLogger(c.logger))
	c.notes = notifications.NewStore(
		notifications.WithCacheSize(cfg.NotificationCacheSize),
		notifications.WithLogger(c.logger),
	)
	c.notes.OnUnreadInvalidated(c.refreshUnreadAsync)

	c.registry = connection.NewRegistry(connection.WithLogger(c.logger))
	c.registry.Register(EventStream, c.eventStreamConnector())
	c.registry.Register(MessageChannel, c.messageChannelConnector())
	for kind, conn := range c.connectors {
		c.registry.Register(kind, conn)
	}

	c.loop = eventloop.New(c.handle, eventloop.WithLogger(c.logger))
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		_ = c.loop.Run(c.ctx)
	}()

	return c, nil
}

func (c *Client) eventStreamConnector() connection.Connector {
	opts := append([]eventstream.Option{
		eventstream.WithBackoff(c.cfg.StreamBaseDelay, c.cfg.StreamMaxAttempts),
		eventstream.WithLogger(c.logger),
	}, c.streamOpts...)
	dialOpts := []eventstream.HTTPDialerOption{eventstream.WithHTTPClient(c.httpClient)}
	return eventstream.NewConnector(c.cfg.EventStreamURL(), c.onNotification, dialOpts, opts...)
}

func (c *Client) messageChannelConnector() connection.Connector {
	// The websocket dial is bounded by its context, not a client timeout.
	hc := *c.httpClient
	hc.Timeout = 0
	opts := append([]msgchannel.Option{
		msgchannel.WithHeartbeat(c.cfg.ChannelHeartbeat),
		msgchannel.WithReconnectDelay(c.cfg.ChannelReconnectDelay),
		msgchannel.WithOnConnect(c.subscribeTopic),
		msgchannel.WithLogger(c.logger),
	}, c.channelOpts...)
	return msgchannel.NewConnector(c.cfg.MessageChannelURL(), &hc, opts...)
}

// Login starts a session and loads the room list and unread flag. Any
// previous session is torn down first. Fetch failures leave the stores
// empty and are only logged.
func (c *Client) Login(ctx context.Context, creds connection.Credentials) error {
	if c.isClosed() {
		return ErrShutdown
	}
	if c.current() != nil {
		if err := c.Logout(ctx); err != nil {
			return err
		}
	}

	apiClient, err := api.New(c.cfg.BaseURL,
		api.WithHTTPClient(c.httpClient),
		api.WithTimeout(c.cfg.HTTPTimeout),
		api.WithCookies(creds.Cookies...),
		api.WithLogger(c.logger),
	)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.epoch++
	c.sess = &session{creds: creds, api: apiClient, epoch: c.epoch}
	epoch := c.epoch
	c.mu.Unlock()

	c.post(sessionCleared{stamp(epoch)})

	c.logger.LogAttrs(ctx, slog.LevelInfo, "session started",
		logger.Component("roomsync"),
		logger.UserID(creds.UserID),
		slog.Bool("authenticated", creds.Authenticated),
	)

	if creds.Authenticated {
		_ = c.RefreshRooms(ctx)
		_, _ = c.HasUnreadNotifications(ctx)
	}
	return c.loop.Flush(ctx)
}

// Logout closes both transports, cancels pending reconnects and clears
// both stores.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	prev := c.sess
	c.sess = nil
	c.epoch++
	epoch := c.epoch
	c.mu.Unlock()

	err := c.registry.TeardownAll()
	c.post(sessionCleared{stamp(epoch)})
	if ferr := c.loop.Flush(ctx); ferr != nil && !errors.Is(ferr, eventloop.ErrClosed) {
		err = errors.Join(err, ferr)
	}

	if prev != nil {
		c.logger.LogAttrs(ctx, slog.LevelInfo, "session ended",
			logger.Component("roomsync"),
			logger.UserID(prev.creds.UserID),
		)
	}
	return err
}

// Mount acquires the shared transport of kind for one consumer. The
// returned release function drops the consumer's reference and never
// closes the transport. Without an authenticated session Mount connects
// nothing and returns a no-op release.
func (c *Client) Mount(ctx context.Context, kind connection.Kind) (func(), error) {
	noop := func() {}
	if c.isClosed() {
		return noop, ErrShutdown
	}
	sess := c.current()
	if sess == nil {
		return noop, nil
	}

	h, err := c.registry.Acquire(ctx, kind, sess.creds)
	if err != nil || h == nil {
		return noop, err
	}
	var once sync.Once
	return func() {
		once.Do(func() { c.registry.Release(h) })
	}, nil
}

// TransportState reports the state of the shared transport of kind.
func (c *Client) TransportState(kind connection.Kind) connection.State {
	h, ok := c.registry.Handle(kind)
	if !ok {
		return connection.StateClosed
	}
	return h.State()
}

// Rooms returns the room store.
func (c *Client) Rooms() *rooms.Store { return c.rooms }

// Notifications returns the notification store.
func (c *Client) Notifications() *notifications.Store { return c.notes }

// Formatter returns the notification formatter for the configured language.
func (c *Client) Formatter() *notifications.Formatter { return c.formatter }

// OpenRoom marks id as the viewed room and zeroes its unread count.
func (c *Client) OpenRoom(ctx context.Context, id int64) error {
	return c.apply(ctx, rooms.Opened{RoomID: id})
}

// CloseRoom clears the viewed room.
func (c *Client) CloseRoom(ctx context.Context) error {
	return c.apply(ctx, rooms.Closed{})
}

// MarkRoomRead zeroes the unread count of id.
func (c *Client) MarkRoomRead(ctx context.Context, id int64) error {
	return c.apply(ctx, rooms.MarkedRead{RoomID: id})
}

func (c *Client) apply(ctx context.Context, e rooms.Event) error {
	if !c.post(roomEvent{stamp(c.currentEpoch()), e}) {
		return ErrShutdown
	}
	return c.loop.Flush(ctx)
}

// RefreshRooms fetches every room page and reconciles the list into the
// store. Pages that load before a failure are still reconciled.
func (c *Client) RefreshRooms(ctx context.Context) error {
	sess := c.current()
	if sess == nil {
		return ErrNotLoggedIn
	}

	key := "rooms:" + strconv.FormatUint(sess.epoch, 10)
	_, err, _ := c.fetches.Do(key, func() (any, error) {
		var (
			all     []rooms.Snapshot
			lastErr error
		)
		for page := 0; page < c.cfg.MaxRoomPages; page++ {
			p, err := sess.api.ListRooms(ctx, page, c.cfg.RoomPageSize)
			if err != nil {
				lastErr = err
				break
			}
			all = append(all, p.Content...)
			if !p.Page.HasNext {
				break
			}
		}
		if lastErr != nil && len(all) == 0 {
			return nil, lastErr
		}
		c.post(roomsFetched{stamp(sess.epoch), all})
		return nil, errors.Join(lastErr, c.loop.Flush(ctx))
	})
	return err
}

func (c *Client) refreshRoomsAsync() {
	if c.current() == nil {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := c.background(c.cfg.MaxRoomPages)
		defer cancel()
		_ = c.RefreshRooms(ctx)
	}()
}

// HasUnreadNotifications returns the unread flag, refetching it when it is
// missing or stale. On fetch failure the last known value is returned with
// the error.
func (c *Client) HasUnreadNotifications(ctx context.Context) (bool, error) {
	unread, fresh := c.notes.Unread()
	if fresh {
		return unread, nil
	}
	sess := c.current()
	if sess == nil {
		return unread, ErrNotLoggedIn
	}

	// A fetch that started before the latest push is not joined.
	seq := c.pushes.Load()
	key := "unread:" + strconv.FormatUint(sess.epoch, 10) + ":" + strconv.FormatUint(seq, 10)
	v, err, _ := c.fetches.Do(key, func() (any, error) {
		got, err := sess.api.HasUnreadNotifications(ctx)
		if err != nil {
			return nil, err
		}
		c.post(unreadFetched{stamp(sess.epoch), seq, got})
		return got, c.loop.Flush(ctx)
	})
	if err != nil {
		return unread, err
	}
	return v.(bool), nil
}

func (c *Client) refreshUnreadAsync() {
	if c.current() == nil {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := c.background(1)
		defer cancel()
		_, _ = c.HasUnreadNotifications(ctx)
	}()
}

// NotificationPage returns a notification list page from the cache, or
// fetches and caches it. A failed fetch returns an empty page and the
// error.
func (c *Client) NotificationPage(ctx context.Context, page int) (notifications.Page, error) {
	if p, ok := c.notes.Page(page); ok {
		return p, nil
	}
	sess := c.current()
	if sess == nil {
		return notifications.Page{Page: page}, ErrNotLoggedIn
	}

	seq := c.pushes.Load()
	res, err := sess.api.ListNotifications(ctx, page, c.cfg.NotificationPageSize)
	p := notifications.Page{Events: res.Content, Page: page, HasNext: res.Page.HasNext}
	if err != nil {
		return p, err
	}
	c.post(pageFetched{stamp(sess.epoch), seq, p})
	return p, c.loop.Flush(ctx)
}

// FormatNotification renders e in the configured language.
func (c *Client) FormatNotification(e notifications.Event) string {
	return c.formatter.Format(e)
}

// SendMessage publishes text to the room over the message channel. It
// fails with msgchannel.ErrNotConnected when the channel is not open.
func (c *Client) SendMessage(ctx context.Context, roomID int64, text string) error {
	dest := c.cfg.PublishPrefix + strconv.FormatInt(roomID, 10)

	h, ok := c.registry.Handle(MessageChannel)
	if !ok {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "send without message channel",
			logger.Component("roomsync"),
			logger.Destination(dest),
		)
		return msgchannel.ErrNotConnected
	}
	pub, ok := h.Transport().(Publisher)
	if !ok {
		return fmt.Errorf("roomsync: %s transport cannot publish", h.Kind())
	}

	body, err := json.Marshal(struct {
		RoomID  int64  `json:"roomId"`
		Message string `json:"message"`
	}{roomID, text})
	if err != nil {
		return err
	}
	return pub.Publish(ctx, dest, body)
}

// Shutdown tears down the session and stops the event loop. It waits for
// background fetches until ctx is done.
func (c *Client) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	err := c.Logout(ctx)

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.loop.Close()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		err = errors.Join(err, ctx.Err())
	}

	c.rooms.Close()
	c.notes.Close()
	return err
}

func (c *Client) onNotification(ctx context.Context, e notifications.Event) {
	c.post(notificationPushed{stamp(c.sessionEpoch()), e})
}

func (c *Client) subscribeTopic(ctx context.Context, mc *msgchannel.Client) {
	sess := c.current()
	if sess == nil || sess.creds.UserID == "" {
		return
	}
	dest := c.cfg.SubscribePrefix + sess.creds.UserID
	if _, err := mc.Subscribe(ctx, dest, c.onTopicMessage); err != nil {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "topic subscription failed",
			logger.Component("roomsync"),
			logger.Destination(dest),
			logger.Error(err),
		)
	}
}

func (c *Client) onTopicMessage(ctx context.Context, m msgchannel.Message) {
	e, err := rooms.DecodePush(m.Body)
	if err != nil {
		c.logger.LogAttrs(ctx, slog.LevelWarn, "dropping topic message",
			logger.Component("roomsync"),
			logger.Destination(m.Destination),
			logger.Error(err),
		)
		return
	}
	c.post(roomEvent{stamp(c.sessionEpoch()), e})
}

// background bounds a fetch of n requests started by the client itself.
func (c *Client) background(n int) (context.Context, context.CancelFunc) {
	if c.cfg.HTTPTimeout <= 0 {
		return context.WithCancel(c.ctx)
	}
	return context.WithTimeout(c.ctx, c.cfg.HTTPTimeout*time.Duration(n))
}

func (c *Client) post(e event) bool {
	return c.loop.Post(e)
}

func (c *Client) current() *session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess
}

func (c *Client) currentEpoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

// sessionEpoch stamps transport events. Without a session it returns 0,
// which never matches a live epoch.
func (c *Client) sessionEpoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return 0
	}
	return c.sess.epoch
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
