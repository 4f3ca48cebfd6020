package middleware

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter admits or rejects one event for key. A rejection reports how long the caller
// should wait before the next event would be admitted.
type RateLimiter interface {
	Admit(key string) (ok bool, retryAfter time.Duration)
}

// ClientLimiter keeps one token bucket per client key. Buckets idle for longer than the idle
// timeout are dropped by a sweep that runs at most once per idle timeout.
type ClientLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	idle    time.Duration
	swept   time.Time
	now     func() time.Time
}

type bucket struct {
	tokens *rate.Limiter
	seen   time.Time
}

// NewClientLimiter admits requests events per window and key, plus burst.
func NewClientLimiter(requests int, window time.Duration, burst int, idle time.Duration) *ClientLimiter {
	requests = max(requests, 1)
	burst = max(burst, 1)
	if window <= 0 {
		window = time.Second
	}
	if idle <= 0 {
		idle = 5 * time.Minute
	}

	return &ClientLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Every(window / time.Duration(requests)),
		burst:   burst,
		idle:    idle,
		now:     time.Now,
	}
}

// Admit implements RateLimiter. A rejected event consumes no token.
func (l *ClientLimiter) Admit(key string) (bool, time.Duration) {
	if key == "" {
		key = "unknown"
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweepLocked(now)

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: rate.NewLimiter(l.limit, l.burst)}
		l.buckets[key] = b
	}
	b.seen = now

	res := b.tokens.ReserveN(now, 1)
	if !res.OK() {
		return false, l.idle
	}
	if wait := res.DelayFrom(now); wait > 0 {
		res.CancelAt(now)
		return false, wait
	}
	return true, 0
}

func (l *ClientLimiter) sweepLocked(now time.Time) {
	if now.Sub(l.swept) < l.idle {
		return
	}
	l.swept = now
	for key, b := range l.buckets {
		if now.Sub(b.seen) > l.idle {
			delete(l.buckets, key)
		}
	}
}

var _ RateLimiter = (*ClientLimiter)(nil)
