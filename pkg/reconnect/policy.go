package reconnect

import (
	"sync"
	"time"
)

// Policy tracks consecutive failed attempts against a budget.
type Policy struct {
	strategy    Strategy
	maxAttempts int
	attempt     int
	givenUp     bool
	mu          sync.Mutex
}

// NewPolicy creates a policy. maxAttempts <= 0 means retry forever.
func NewPolicy(strategy Strategy, maxAttempts int) *Policy {
	if strategy == nil {
		strategy = FixedBackoff{Interval: time.Second}
	}
	return &Policy{
		strategy:    strategy,
		maxAttempts: max(maxAttempts, 0),
	}
}

// Next records a failure and returns the delay before the next attempt.
// It returns false once the budget is exhausted; the policy is then GivenUp.
func (p *Policy) Next() (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.givenUp {
		return 0, false
	}
	if p.maxAttempts > 0 && p.attempt >= p.maxAttempts {
		p.givenUp = true
		return 0, false
	}
	p.attempt++
	return p.strategy.NextInterval(p.attempt), true
}

// Reset clears the attempt counter after a successful connection.
// It does not revive a policy that already gave up.
func (p *Policy) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.attempt = 0
}

func (p *Policy) Attempt() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempt
}

func (p *Policy) GivenUp() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.givenUp
}

func (p *Policy) MaxAttempts() int {
	return p.maxAttempts
}
