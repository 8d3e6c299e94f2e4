package rpc

import (
	"testing"
	"time"
)

func TestRateLimiterAllowsSteadyStateBelowRate(t *testing.T) {
	l := NewRateLimiter(10, 10) // 10 tokens/sec, burst 10
	now := time.Unix(0, 0)
	for i := 0; i < 100; i++ {
		now = now.Add(100 * time.Millisecond) // 10 req/sec, at the limit
		if !l.Allow("1.2.3.4", now) {
			t.Fatalf("request %d unexpectedly rejected at steady-state rate", i)
		}
	}
}

func TestRateLimiterBansSustainedOverage(t *testing.T) {
	l := NewRateLimiter(1, 1) // 1 token/sec, burst 1
	now := time.Unix(0, 0)
	// Burn the initial token, then hammer far faster than refill until banned.
	l.Allow("5.6.7.8", now)
	for i := 0; i < banThreshold; i++ {
		now = now.Add(time.Millisecond)
		l.Allow("5.6.7.8", now)
	}
	if !l.IsBanned("5.6.7.8", now) {
		t.Fatalf("expected IP banned after %d sustained violations", banThreshold)
	}
}

func TestRateLimiterEvictsIdleBuckets(t *testing.T) {
	l := NewRateLimiter(5, 5)
	now := time.Unix(0, 0)
	l.Allow("9.9.9.9", now)
	later := now.Add(idleEvictAfter + time.Second)
	if evicted := l.EvictIdle(later); evicted != 1 {
		t.Fatalf("expected 1 idle bucket evicted, got %d", evicted)
	}
}
