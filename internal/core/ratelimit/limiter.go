package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

const dayLayout = "2006-01-02"

// Limiter guards a metered upstream API: at most one request per second,
// and at most quota requests per UTC day.
type Limiter struct {
	clock clockwork.Clock
	quota int

	mu      sync.Mutex
	spacing *rate.Limiter
	day     string
	used    int
}

func New(quota int, clock clockwork.Clock) *Limiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Limiter{
		clock:   clock,
		quota:   quota,
		spacing: rate.NewLimiter(rate.Every(time.Second), 1),
		day:     clock.Now().UTC().Format(dayLayout),
	}
}

// Acquire returns false immediately when today's quota is spent. Otherwise
// it blocks until a second has passed since the previous granted request,
// counts the request and returns true. A cancelled ctx releases the slot
// and returns false.
func (l *Limiter) Acquire(ctx context.Context) bool {
	l.mu.Lock()
	now := l.clock.Now()
	l.rollover(now)
	if l.used >= l.quota {
		l.mu.Unlock()
		return false
	}
	r := l.spacing.ReserveN(now, 1)
	if !r.OK() {
		l.mu.Unlock()
		return false
	}
	l.used++
	day := l.day
	delay := r.DelayFrom(now)
	l.mu.Unlock()

	if delay <= 0 {
		return true
	}

	select {
	case <-l.clock.After(delay):
		return true
	case <-ctx.Done():
		l.mu.Lock()
		r.CancelAt(l.clock.Now())
		if l.day == day && l.used > 0 {
			l.used--
		}
		l.mu.Unlock()
		return false
	}
}

// Remaining is today's quota headroom.
func (l *Limiter) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover(l.clock.Now())
	return max(l.quota-l.used, 0)
}

// Used is the number of requests granted today.
func (l *Limiter) Used() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover(l.clock.Now())
	return l.used
}

func (l *Limiter) Quota() int { return l.quota }

// rollover resets the daily count when the UTC date has changed. Caller
// holds l.mu.
func (l *Limiter) rollover(now time.Time) {
	today := now.UTC().Format(dayLayout)
	if today != l.day {
		l.day = today
		l.used = 0
	}
}
