package roomsync

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrymomot/roomsync/pkg/config"
)

// EnvPrefix is prepended to every Config env variable.
const EnvPrefix = "ROOMSYNC_"

// Config describes the backend and the transport policies.
type Config struct {
	BaseURL               string        `env:"BASE_URL,required"`
	EventStreamPath       string        `env:"EVENT_STREAM_PATH" envDefault:"/api/notifications/subscribe"`
	MessageChannelPath    string        `env:"MESSAGE_CHANNEL_PATH" envDefault:"/ws-stomp"`
	SubscribePrefix       string        `env:"SUBSCRIBE_PREFIX" envDefault:"/sub/notifications/"`
	PublishPrefix         string        `env:"PUBLISH_PREFIX" envDefault:"/pub/chat/message/"`
	StreamMaxAttempts     int           `env:"STREAM_MAX_ATTEMPTS" envDefault:"5"`
	StreamBaseDelay       time.Duration `env:"STREAM_BASE_DELAY" envDefault:"3s"`
	ChannelHeartbeat      time.Duration `env:"CHANNEL_HEARTBEAT" envDefault:"4s"`
	ChannelReconnectDelay time.Duration `env:"CHANNEL_RECONNECT_DELAY" envDefault:"5s"`
	HTTPTimeout           time.Duration `env:"HTTP_TIMEOUT" envDefault:"15s"`
	RoomPageSize          int           `env:"ROOM_PAGE_SIZE" envDefault:"20"`
	MaxRoomPages          int           `env:"MAX_ROOM_PAGES" envDefault:"50"`
	NotificationPageSize  int           `env:"NOTIFICATION_PAGE_SIZE" envDefault:"10"`
	NotificationCacheSize int           `env:"NOTIFICATION_CACHE_SIZE" envDefault:"64"`
	Language              string        `env:"LANGUAGE" envDefault:"ko"`
}

// DefaultConfig returns the defaults for baseURL.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:               baseURL,
		EventStreamPath:       "/api/notifications/subscribe",
		MessageChannelPath:    "/ws-stomp",
		SubscribePrefix:       "/sub/notifications/",
		PublishPrefix:         "/pub/chat/message/",
		StreamMaxAttempts:     5,
		StreamBaseDelay:       3 * time.Second,
		ChannelHeartbeat:      4 * time.Second,
		ChannelReconnectDelay: 5 * time.Second,
		HTTPTimeout:           15 * time.Second,
		RoomPageSize:          20,
		MaxRoomPages:          50,
		NotificationPageSize:  10,
		NotificationCacheSize: 64,
		Language:              "ko",
	}
}

// LoadConfig reads Config from ROOMSYNC_* variables and optional .env files.
func LoadConfig(opts ...config.Option) (Config, error) {
	var cfg Config
	all := append([]config.Option{config.WithPrefix(EnvPrefix)}, opts...)
	if err := config.Load(&cfg, all...); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if u, err := url.Parse(c.BaseURL); err != nil || u.Host == "" ||
		(u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Errorf("base url %q must be an absolute http(s) url", c.BaseURL))
	}
	for name, p := range map[string]string{
		"event stream path":    c.EventStreamPath,
		"message channel path": c.MessageChannelPath,
		"subscribe prefix":     c.SubscribePrefix,
		"publish prefix":       c.PublishPrefix,
	} {
		if !strings.HasPrefix(p, "/") {
			errs = append(errs, fmt.Errorf("%s %q must start with /", name, p))
		}
	}
	if c.StreamMaxAttempts < 1 {
		errs = append(errs, errors.New("stream max attempts must be positive"))
	}
	if c.StreamBaseDelay <= 0 || c.ChannelReconnectDelay <= 0 {
		errs = append(errs, errors.New("reconnect delays must be positive"))
	}
	if c.ChannelHeartbeat < 0 || c.HTTPTimeout < 0 {
		errs = append(errs, errors.New("heartbeat and http timeout must not be negative"))
	}
	if c.RoomPageSize < 1 || c.MaxRoomPages < 1 || c.NotificationPageSize < 1 || c.NotificationCacheSize < 1 {
		errs = append(errs, errors.New("page sizes, page limit and cache size must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return errors.Join(ErrInvalidConfig, err)
	}
	return nil
}

// EventStreamURL is the absolute event stream endpoint.
func (c Config) EventStreamURL() string {
	return strings.TrimRight(c.BaseURL, "/") + c.EventStreamPath
}

// MessageChannelURL is the absolute socket endpoint with a ws(s) scheme.
func (c Config) MessageChannelURL() string {
	u := strings.TrimRight(c.BaseURL, "/") + c.MessageChannelPath
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u
}
