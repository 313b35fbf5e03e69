package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter keeps one token bucket per owner
type Limiter struct {
	buckets map[string]*rate.Limiter
	mu      sync.Mutex
	rate    rate.Limit
	burst   int
	perHour int
}

// NewLimiter creates a limiter allowing requestsPerHour per owner with the given burst.
func NewLimiter(requestsPerHour int, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*rate.Limiter),
		rate:    rate.Every(time.Hour / time.Duration(max(requestsPerHour, 1))),
		burst:   burst,
		perHour: requestsPerHour,
	}
}

func (l *Limiter) bucket(owner string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, exists := l.buckets[owner]
	if !exists {
		b = rate.NewLimiter(l.rate, l.burst)
		l.buckets[owner] = b
	}
	return b
}

// Allow reports whether owner may make another request now.
func (l *Limiter) Allow(owner string) bool {
	return l.bucket(owner).Allow()
}

// Remaining returns the whole tokens left for owner.
func (l *Limiter) Remaining(owner string) int {
	tokens := l.bucket(owner).Tokens()
	if tokens < 0 {
		return 0
	}
	return int(tokens)
}

// PerHour returns the configured hourly allowance
func (l *Limiter) PerHour() int {
	return l.perHour
}
