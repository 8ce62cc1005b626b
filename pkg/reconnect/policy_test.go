package reconnect_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/roomsync/pkg/reconnect"
)

func TestLinearBackoff(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		backoff  reconnect.LinearBackoff
		attempt  int
		expected time.Duration
	}{
		{"zero attempt", reconnect.LinearBackoff{Interval: 3 * time.Second}, 0, 0},
		{"first attempt", reconnect.LinearBackoff{Interval: 3 * time.Second}, 1, 3 * time.Second},
		{"fifth attempt", reconnect.LinearBackoff{Interval: 3 * time.Second}, 5, 15 * time.Second},
		{"capped", reconnect.LinearBackoff{Interval: 3 * time.Second, MaxInterval: 10 * time.Second}, 5, 10 * time.Second},
		{"default interval", reconnect.LinearBackoff{}, 2, 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, tt.backoff.NextInterval(tt.attempt))
		})
	}
}

func TestFixedBackoff(t *testing.T) {
	t.Parallel()

	b := reconnect.FixedBackoff{Interval: 5 * time.Second}
	assert.Equal(t, time.Duration(0), b.NextInterval(0))
	assert.Equal(t, 5*time.Second, b.NextInterval(1))
	assert.Equal(t, 5*time.Second, b.NextInterval(100))
}

func TestPolicy(t *testing.T) {
	t.Parallel()

	t.Run("budget of five linear attempts", func(t *testing.T) {
		t.Parallel()
		p := reconnect.NewPolicy(reconnect.LinearBackoff{Interval: 3 * time.Second}, 5)

		for k := 1; k <= 5; k++ {
			delay, ok := p.Next()
			assert.True(t, ok)
			assert.Equal(t, time.Duration(k)*3*time.Second, delay)
			assert.Equal(t, k, p.Attempt())
		}

		_, ok := p.Next()
		assert.False(t, ok)
		assert.True(t, p.GivenUp())
	})

	t.Run("reset after success keeps budget fresh", func(t *testing.T) {
		t.Parallel()
		p := reconnect.NewPolicy(reconnect.LinearBackoff{Interval: time.Second}, 2)

		_, _ = p.Next()
		_, _ = p.Next()
		p.Reset()
		assert.Equal(t, 0, p.Attempt())

		delay, ok := p.Next()
		assert.True(t, ok)
		assert.Equal(t, time.Second, delay)
	})

	t.Run("reset does not revive given up policy", func(t *testing.T) {
		t.Parallel()
		p := reconnect.NewPolicy(reconnect.FixedBackoff{Interval: time.Second}, 1)
		_, _ = p.Next()
		_, ok := p.Next()
		assert.False(t, ok)

		p.Reset()
		_, ok = p.Next()
		assert.False(t, ok)
		assert.True(t, p.GivenUp())
	})

	t.Run("unlimited budget", func(t *testing.T) {
		t.Parallel()
		p := reconnect.NewPolicy(reconnect.FixedBackoff{Interval: 5 * time.Second}, 0)
		for range 100 {
			delay, ok := p.Next()
			assert.True(t, ok)
			assert.Equal(t, 5*time.Second, delay)
		}
		assert.False(t, p.GivenUp())
	})
}
