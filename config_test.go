package roomsync_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/roomsync"
	"github.com/dmitrymomot/roomsync/pkg/config"
)

func TestLoadConfig(t *testing.T) {
	t.Cleanup(config.Reset)

	t.Run("defaults", func(t *testing.T) {
		config.Reset()
		cfg, err := roomsync.LoadConfig(config.WithEnvironment(map[string]string{
			"ROOMSYNC_BASE_URL": "https://api.example.com",
		}))
		require.NoError(t, err)
		assert.Equal(t, roomsync.DefaultConfig("https://api.example.com"), cfg)
	})

	t.Run("overrides", func(t *testing.T) {
		config.Reset()
		cfg, err := roomsync.LoadConfig(config.WithEnvironment(map[string]string{
			"ROOMSYNC_BASE_URL":            "http://localhost:8080",
			"ROOMSYNC_STREAM_MAX_ATTEMPTS": "3",
			"ROOMSYNC_STREAM_BASE_DELAY":   "500ms",
			"ROOMSYNC_LANGUAGE":            "en",
		}))
		require.NoError(t, err)
		assert.Equal(t, 3, cfg.StreamMaxAttempts)
		assert.Equal(t, 500*time.Millisecond, cfg.StreamBaseDelay)
		assert.Equal(t, "en", cfg.Language)
	})

	t.Run("missing base url", func(t *testing.T) {
		config.Reset()
		_, err := roomsync.LoadConfig(config.WithEnvironment(map[string]string{}))
		assert.ErrorIs(t, err, config.ErrParsingConfig)
	})

	t.Run("invalid values", func(t *testing.T) {
		config.Reset()
		_, err := roomsync.LoadConfig(config.WithEnvironment(map[string]string{
			"ROOMSYNC_BASE_URL":       "ftp://example.com",
			"ROOMSYNC_ROOM_PAGE_SIZE": "0",
		}))
		assert.ErrorIs(t, err, roomsync.ErrInvalidConfig)
	})
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*roomsync.Config)
		wantErr bool
	}{
		{"defaults", func(*roomsync.Config) {}, false},
		{"relative base url", func(c *roomsync.Config) { c.BaseURL = "/api" }, true},
		{"path without slash", func(c *roomsync.Config) { c.EventStreamPath = "stream" }, true},
		{"zero attempts", func(c *roomsync.Config) { c.StreamMaxAttempts = 0 }, true},
		{"zero delay", func(c *roomsync.Config) { c.ChannelReconnectDelay = 0 }, true},
		{"negative heartbeat", func(c *roomsync.Config) { c.ChannelHeartbeat = -time.Second }, true},
		{"zero heartbeat disables it", func(c *roomsync.Config) { c.ChannelHeartbeat = 0 }, false},
		{"zero cache", func(c *roomsync.Config) { c.NotificationCacheSize = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := roomsync.DefaultConfig("https://api.example.com")
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, roomsync.ErrInvalidConfig)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestConfigURLs(t *testing.T) {
	t.Parallel()

	cfg := roomsync.DefaultConfig("https://api.example.com/")
	assert.Equal(t, "https://api.example.com/api/notifications/subscribe", cfg.EventStreamURL())
	assert.Equal(t, "wss://api.example.com/ws-stomp", cfg.MessageChannelURL())

	cfg = roomsync.DefaultConfig("http://localhost:8080")
	assert.Equal(t, "ws://localhost:8080/ws-stomp", cfg.MessageChannelURL())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := roomsync.New(roomsync.Config{})
	assert.ErrorIs(t, err, roomsync.ErrInvalidConfig)
}
