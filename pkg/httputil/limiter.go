package httputil

import (
	"context"
	"sync"
	"time"
)

// Admitter decides whether a request may start now.
//
// Implementations must make the check and the update of their window state a
// single atomic step, so that two concurrent callers can never both be
// admitted inside the same window.
type Admitter interface {
	Admit(ctx context.Context) (bool, error)
}

// Limiter enforces a minimum interval between admitted requests.
//
// The only state is the instant of the last admission. A request is admitted
// when at least the interval has elapsed since that instant; there is no
// queue, no counter and no burst allowance. Which of several waiting callers
// wins a freshly opened window is unspecified.
//
// A Limiter is safe for concurrent use. The zero value is not usable; create
// one with [NewLimiter].
type Limiter struct {
	interval time.Duration
	now      func() time.Time

	mu   sync.Mutex
	last time.Time
}

// LimiterOption configures a [Limiter].
type LimiterOption func(*Limiter)

// WithClock replaces the wall clock used by the limiter. Intended for tests.
func WithClock(now func() time.Time) LimiterOption {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLimiter creates a limiter admitting at most one request per interval.
// The window starts out open: the first call to [Limiter.Allow] succeeds.
// A non-positive interval admits every request.
func NewLimiter(interval time.Duration, opts ...LimiterOption) *Limiter {
	l := &Limiter{interval: interval, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	l.last = l.now().Add(-interval)
	return l
}

// Allow reports whether a request may start now and, if so, records the
// admission. The elapsed time is compared with >=, so a request arriving
// exactly one interval after the previous admission is admitted.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.last) < l.interval {
		return false
	}
	l.last = now
	return true
}

// Admit implements [Admitter]. The in-memory limiter never fails.
func (l *Limiter) Admit(context.Context) (bool, error) {
	return l.Allow(), nil
}

// Next returns the earliest instant at which the window reopens.
func (l *Limiter) Next() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.last.Add(l.interval)
}

// Interval returns the configured minimum interval.
func (l *Limiter) Interval() time.Duration { return l.interval }

var _ Admitter = (*Limiter)(nil)
