package gateway

import (
	"time"

	"golang.org/x/time/rate"
)

// DefaultMessagesPerMinute is the per-session inbound budget when none is configured.
const DefaultMessagesPerMinute = 30

// SessionRateLimiter throttles inbound messages of one websocket session
type SessionRateLimiter struct {
	limiter *rate.Limiter
}

// NewSessionRateLimiter creates a token bucket refilled at perMinute tokens per
// minute with a burst of a fifth of that, at least one.
func NewSessionRateLimiter(perMinute int) *SessionRateLimiter {
	if perMinute <= 0 {
		perMinute = DefaultMessagesPerMinute
	}
	burst := perMinute / 5
	if burst < 1 {
		burst = 1
	}
	return &SessionRateLimiter{
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst),
	}
}

// Allow reports whether one more message may be processed now.
func (r *SessionRateLimiter) Allow() bool {
	return r.limiter.Allow()
}
