package reconnect

import "time"

// Strategy calculates the delay before a retry.
// Implementations must be safe for concurrent use.
type Strategy interface {
	// NextInterval returns the delay before the given attempt. Attempt starts at 1.
	NextInterval(attempt int) time.Duration
}

// LinearBackoff grows the delay by Interval on every attempt.
// Formula: Interval * attempt, capped at MaxInterval when it is set.
type LinearBackoff struct {
	Interval    time.Duration
	MaxInterval time.Duration
}

func (l LinearBackoff) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	interval := l.Interval
	if interval <= 0 {
		interval = time.Second
	}

	delay := interval * time.Duration(attempt)
	if l.MaxInterval > 0 && delay > l.MaxInterval {
		delay = l.MaxInterval
	}
	return delay
}

// FixedBackoff waits the same Interval before every attempt.
type FixedBackoff struct {
	Interval time.Duration
}

func (f FixedBackoff) NextInterval(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return f.Interval
}
