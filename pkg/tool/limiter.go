package tool

import "time"

// windowLimiter enforces a fixed-window rate limit: a call counter and the
// window start timestamp. The first call of a new window resets the counter
// to one; calls beyond max within the window are rejected until it elapses.
type windowLimiter struct {
	max         int
	window      time.Duration
	count       int
	windowStart time.Time
}

func newWindowLimiter(limit *RateLimit) *windowLimiter {
	return &windowLimiter{
		max:    limit.MaxCalls,
		window: limit.Window,
	}
}

// allow reports whether a call at the given time is within the limit, and
// counts it when allowed. Callers hold the registry lock.
func (l *windowLimiter) allow(now time.Time) bool {
	if l.windowStart.IsZero() || now.Sub(l.windowStart) >= l.window {
		l.windowStart = now
		l.count = 1
		return true
	}

	if l.count >= l.max {
		return false
	}

	l.count++
	return true
}
