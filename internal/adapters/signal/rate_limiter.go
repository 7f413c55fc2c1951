package signal

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/dkeye/VoiceHub/internal/domain"
)

// RateLimiter keeps one token bucket per connection. A non-positive rate
// disables limiting.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[domain.SessionID]*rate.Limiter
	limit   rate.Limit
	burst   int
}

func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		buckets: make(map[domain.SessionID]*rate.Limiter),
		limit:   rate.Limit(perSecond),
		burst:   burst,
	}
}

func (rl *RateLimiter) Allow(sid domain.SessionID) bool {
	if rl.limit <= 0 {
		return true
	}
	rl.mu.Lock()
	b, ok := rl.buckets[sid]
	if !ok {
		b = rate.NewLimiter(rl.limit, rl.burst)
		rl.buckets[sid] = b
	}
	rl.mu.Unlock()
	return b.Allow()
}

func (rl *RateLimiter) Forget(sid domain.SessionID) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.buckets, sid)
}
