package crawl

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/fwojciec/sitemapgen"
	"golang.org/x/time/rate"
)

// DefaultLimiterIdle is how long an origin's bucket is kept after its last
// request.
const DefaultLimiterIdle = 10 * time.Minute

var _ sitemapgen.RateLimiter = (*OriginLimiter)(nil)

// OriginLimiter spaces out requests to each origin with a token bucket of
// burst 1. One limiter is shared by every job of a server, so concurrent
// jobs against the same site share its budget. Buckets idle for longer than
// Idle are dropped.
type OriginLimiter struct {
	limit rate.Limit

	// Idle is how long an unused bucket survives. Defaults to
	// DefaultLimiterIdle.
	Idle time.Duration

	// Now defaults to time.Now.
	Now func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	limiter  *rate.Limiter
	lastUsed time.Time
}

// NewOriginLimiter allows rps requests per second to each origin. A
// non-positive rps disables limiting.
func NewOriginLimiter(rps float64) *OriginLimiter {
	limit := rate.Inf
	if rps > 0 {
		limit = rate.Limit(rps)
	}
	return &OriginLimiter{
		limit:   limit,
		Idle:    DefaultLimiterIdle,
		buckets: make(map[string]*bucket),
	}
}

// Wait blocks until origin may be requested or ctx is done. Origins are
// compared case-insensitively.
func (l *OriginLimiter) Wait(ctx context.Context, origin string) error {
	if l.limit == rate.Inf {
		return ctx.Err()
	}
	return l.take(strings.ToLower(origin)).Wait(ctx)
}

// take returns the bucket for origin, creating it if needed, and prunes
// buckets that have gone idle.
func (l *OriginLimiter) take(origin string) *rate.Limiter {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for key, b := range l.buckets {
		if key != origin && now.Sub(b.lastUsed) > l.idle() {
			delete(l.buckets, key)
		}
	}

	b, ok := l.buckets[origin]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(l.limit, 1)}
		l.buckets[origin] = b
	}
	b.lastUsed = now
	return b.limiter
}

// Len reports the number of origins currently tracked.
func (l *OriginLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *OriginLimiter) idle() time.Duration {
	if l.Idle <= 0 {
		return DefaultLimiterIdle
	}
	return l.Idle
}

func (l *OriginLimiter) now() time.Time {
	if l.Now == nil {
		return time.Now()
	}
	return l.Now()
}
