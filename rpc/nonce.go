package rpc

import (
	"sync"
	"time"
)

// nonceTTL bounds how long a seen nonce is remembered before it can (in
// principle) recur without being flagged as a replay; sized generously
// relative to any plausible request round-trip.
const nonceTTL = 10 * time.Minute

// NonceGuard rejects a previously-seen request nonce, for methods whose
// params carry one (spec.md §4.15's replay guard on session/admin-signed
// calls).
type NonceGuard struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

// NewNonceGuard returns an empty guard.
func NewNonceGuard() *NonceGuard {
	return &NonceGuard{seen: make(map[string]time.Time)}
}

// Check records nonce and reports true if it had not been seen before (i.e.
// the call may proceed); a previously-seen, still-live nonce returns false.
func (g *NonceGuard) Check(nonce string, now time.Time) bool {
	if nonce == "" {
		return true // methods without a nonce param are not replay-guarded
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if seenAt, ok := g.seen[nonce]; ok && now.Sub(seenAt) < nonceTTL {
		return false
	}
	g.seen[nonce] = now
	return true
}

// Sweep evicts expired nonces, bounding memory.
func (g *NonceGuard) Sweep(now time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for n, seenAt := range g.seen {
		if now.Sub(seenAt) >= nonceTTL {
			delete(g.seen, n)
		}
	}
}
