package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"time"

	"github.com/dmitrymomot/roomsync/pkg/logger"
	"github.com/dmitrymomot/roomsync/pkg/notifications"
	"github.com/dmitrymomot/roomsync/pkg/rooms"
)

const (
	DefaultRoomsPath         = "/api/chat/rooms"
	DefaultUnreadPath        = "/api/notifications/unread"
	DefaultNotificationsPath = "/api/notifications"

	maxBodySize = 4 << 20
)

// PageInfo describes the position of a page.
type PageInfo struct {
	Page    int  `json:"page"`
	Size    int  `json:"size"`
	HasNext bool `json:"hasNext"`
}

// Page is the paginated envelope of list endpoints.
type Page[T any] struct {
	Content []T      `json:"content"`
	Page    PageInfo `json:"page"`
}

// Client calls the backend API.
type Client struct {
	base              *url.URL
	client            *http.Client
	roomsPath         string
	unreadPath        string
	notificationsPath string
	cookies           []*http.Cookie
	logger            *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. The client is copied, and its
// jar is replaced when session cookies are set.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			clone := *c
			cl.client = &clone
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// WithCookies attaches session cookies to every request.
func WithCookies(cookies ...*http.Cookie) Option {
	return func(c *Client) {
		c.cookies = append(c.cookies, cookies...)
	}
}

// WithPaths overrides endpoint paths. Empty values keep the default.
func WithPaths(rooms, unread, notifications string) Option {
	return func(c *Client) {
		if rooms != "" {
			c.roomsPath = rooms
		}
		if unread != "" {
			c.unreadPath = unread
		}
		if notifications != "" {
			c.notificationsPath = notifications
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

// New creates a client for baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("api: parse base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("api: base url %q must be absolute", baseURL)
	}

	c := &Client{
		base: base,
		client: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		roomsPath:         DefaultRoomsPath,
		unreadPath:        DefaultUnreadPath,
		notificationsPath: DefaultNotificationsPath,
		logger:            slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	// Session cookies go into a jar of our own; a caller's jar is never
	// written to.
	if len(c.cookies) > 0 {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, err
		}
		jar.SetCookies(base, c.cookies)
		c.client.Jar = jar
	}
	return c, nil
}

// ListRooms fetches one page of the room list.
func (c *Client) ListRooms(ctx context.Context, page, size int) (Page[rooms.Snapshot], error) {
	var out Page[rooms.Snapshot]
	if err := c.get(ctx, c.roomsPath, pageQuery(page, size), &out); err != nil {
		c.warn(ctx, "room list unavailable", c.roomsPath, err)
		return Page[rooms.Snapshot]{Page: PageInfo{Page: page, Size: size}}, err
	}
	return out, nil
}

// HasUnreadNotifications fetches the unread-existence flag. The endpoint
// may answer with a bare boolean or an object with a hasUnread field.
func (c *Client) HasUnreadNotifications(ctx context.Context) (bool, error) {
	var raw json.RawMessage
	if err := c.get(ctx, c.unreadPath, nil, &raw); err != nil {
		c.warn(ctx, "unread flag unavailable", c.unreadPath, err)
		return false, err
	}

	var flag bool
	if err := json.Unmarshal(raw, &flag); err == nil {
		return flag, nil
	}
	var obj struct {
		HasUnread *bool `json:"hasUnread"`
		Exists    *bool `json:"exists"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		err = errors.Join(ErrDecode, err)
		c.warn(ctx, "unread flag unavailable", c.unreadPath, err)
		return false, err
	}
	switch {
	case obj.HasUnread != nil:
		return *obj.HasUnread, nil
	case obj.Exists != nil:
		return *obj.Exists, nil
	}
	err := fmt.Errorf("%w: no unread field", ErrDecode)
	c.warn(ctx, "unread flag unavailable", c.unreadPath, err)
	return false, err
}

// ListNotifications fetches one page of the notification list.
func (c *Client) ListNotifications(ctx context.Context, page, size int) (Page[notifications.Event], error) {
	var out Page[notifications.Event]
	if err := c.get(ctx, c.notificationsPath, pageQuery(page, size), &out); err != nil {
		c.warn(ctx, "notification list unavailable", c.notificationsPath, err)
		return Page[notifications.Event]{Page: PageInfo{Page: page, Size: size}}, err
	}
	return out, nil
}

func pageQuery(page, size int) url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(max(page, 0)))
	if size > 0 {
		q.Set("size", strconv.Itoa(size))
	}
	return q
}

func (c *Client) get(ctx context.Context, path string, query url.Values, dst any) error {
	u := c.base.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{Method: http.MethodGet, Path: path, Code: resp.StatusCode}
	}
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(dst); err != nil {
		return errors.Join(ErrDecode, err)
	}
	return nil
}

func (c *Client) warn(ctx context.Context, msg, path string, err error) {
	c.logger.LogAttrs(ctx, slog.LevelWarn, msg,
		logger.Component("api"),
		slog.String("path", path),
		logger.Error(err),
	)
}
