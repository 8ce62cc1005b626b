// Package reconnect holds the retry policies used by the transport clients.
//
// A Strategy maps an attempt number (starting at 1) to a delay. A Policy
// wraps a strategy with an attempt counter and an optional attempt budget:
// once the budget is spent the policy is GivenUp for good. A new session
// gets a new policy.
//
//	p := reconnect.NewPolicy(reconnect.LinearBackoff{Interval: 3 * time.Second}, 5)
//	delay, ok := p.Next() // 3s, true
//	...
//	p.Reset()             // connection opened, attempt back to 0
package reconnect
