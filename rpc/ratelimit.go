package rpc

import (
	"sync"
	"time"
)

// banThreshold is the number of consecutive rate-limit violations from one
// IP before it is banned outright (spec.md §8: "with R > tokens_per_sec
// sustained, the IP enters ban").
const banThreshold = 10

// defaultBanDuration is how long a banned IP stays banned once banThreshold
// is hit, absent an operator-configured override (rpc.Config.BanDuration /
// RPC_BAN_SECS).
const defaultBanDuration = 5 * time.Minute

// idleEvictAfter bounds how long an IP's bucket is kept once it stops
// making requests, so the limiter's memory doesn't grow unbounded under a
// churning client population.
const idleEvictAfter = 10 * time.Minute

// bucket is one IP's token bucket plus its ban/idle bookkeeping.
type bucket struct {
	tokens      float64
	lastRefill  time.Time
	lastSeen    time.Time
	violations  int
	bannedUntil time.Time
}

// RateLimiter is a per-IP token-bucket limiter (spec.md §4.15/§8):
// tokensPerSec tokens refill continuously up to burst capacity; a request
// costing one token is rejected if the bucket is empty, counting as a
// violation; banThreshold consecutive violations bans the IP for
// banDuration.
type RateLimiter struct {
	mu           sync.Mutex
	buckets      map[string]*bucket
	tokensPerSec float64
	burst        float64
	banDuration  time.Duration
}

// NewRateLimiter returns a limiter refilling tokensPerSec tokens per second
// up to a burst capacity of burst tokens, banning for defaultBanDuration.
func NewRateLimiter(tokensPerSec, burst float64) *RateLimiter {
	return NewRateLimiterWithBanDuration(tokensPerSec, burst, defaultBanDuration)
}

// NewRateLimiterWithBanDuration is NewRateLimiter with an explicit ban
// length, for wiring an operator-configured RPC_BAN_SECS.
func NewRateLimiterWithBanDuration(tokensPerSec, burst float64, banDuration time.Duration) *RateLimiter {
	if banDuration <= 0 {
		banDuration = defaultBanDuration
	}
	return &RateLimiter{
		buckets:      make(map[string]*bucket),
		tokensPerSec: tokensPerSec,
		burst:        burst,
		banDuration:  banDuration,
	}
}

// Allow reports whether ip may proceed now, consuming a token if so.
func (l *RateLimiter) Allow(ip string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[ip]
	if !ok {
		b = &bucket{tokens: l.burst, lastRefill: now}
		l.buckets[ip] = b
	}
	b.lastSeen = now

	if now.Before(b.bannedUntil) {
		return false
	}

	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * l.tokensPerSec
		if b.tokens > l.burst {
			b.tokens = l.burst
		}
		b.lastRefill = now
	}

	if b.tokens < 1 {
		b.violations++
		if b.violations >= banThreshold {
			b.bannedUntil = now.Add(l.banDuration)
			b.violations = 0
		}
		return false
	}
	b.tokens--
	b.violations = 0
	return true
}

// IsBanned reports whether ip is currently banned.
func (l *RateLimiter) IsBanned(ip string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[ip]
	return ok && now.Before(b.bannedUntil)
}

// EvictIdle removes buckets untouched since before the cutoff, bounding the
// limiter's memory footprint.
func (l *RateLimiter) EvictIdle(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	evicted := 0
	for ip, b := range l.buckets {
		if now.Sub(b.lastSeen) > idleEvictAfter && now.After(b.bannedUntil) {
			delete(l.buckets, ip)
			evicted++
		}
	}
	return evicted
}
