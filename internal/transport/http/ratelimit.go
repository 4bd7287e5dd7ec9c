package http

import "time"

// rateLimiter caps inbound frames per minute on a single connection.
// Not safe for concurrent use; the read loop is the only caller.
type rateLimiter struct {
	limit       int
	counter     int
	windowStart time.Time
}

func newRateLimiter(limit int) *rateLimiter {
	return &rateLimiter{limit: limit, windowStart: time.Now()}
}

func (r *rateLimiter) allow() bool {
	if r == nil || r.limit <= 0 {
		return true
	}
	if time.Since(r.windowStart) >= time.Minute {
		r.counter = 0
		r.windowStart = time.Now()
	}
	r.counter++
	return r.counter <= r.limit
}
