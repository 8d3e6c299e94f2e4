// Package accounts implements the Account store and scoped reservation
// guard of spec.md §3/§4.3: keyed balances, confirmed/pending nonces, and
// session-key policies, adapted from the reserve-then-commit-or-rollback
// bookkeeping pattern in daglabs-btcd's miningmanager mempool UTXO tracking
// (there keyed by outpoint; here keyed by account address).
package accounts

import "sort"

// TokenAmount is a non-negative 64-bit scalar. Consensus paths only ever
// perform checked or saturating arithmetic on it, per spec.md §3.
type TokenAmount = uint64

// TokenBalance holds the two independent token amounts an account can hold.
type TokenBalance struct {
	Consumer   TokenAmount
	Industrial TokenAmount
}

// SessionPolicy is a secondary signing key bound to an account with an
// explicit expiry (spec.md §3).
type SessionPolicy struct {
	PublicKey []byte
	ExpiresAt int64 // unix seconds
	Nonce     uint64
}

// Expired reports whether the session key has expired as of now (unix secs).
func (s *SessionPolicy) Expired(nowUnix int64) bool {
	return nowUnix >= s.ExpiresAt
}

// Account is the persistent per-address ledger record.
type Account struct {
	Balance          TokenBalance
	Nonce            uint64 // highest confirmed
	PendingConsumer  uint64
	PendingIndustrial uint64
	PendingNonce     uint64 // count
	PendingNonces    map[uint64]struct{}
	Sessions         []SessionPolicy
}

// NewAccount returns a freshly funded account with zero confirmed state.
func NewAccount(balance TokenBalance) *Account {
	return &Account{
		Balance:       balance,
		PendingNonces: make(map[uint64]struct{}),
	}
}

// PendingLane returns the reserved amount for lane (0=consumer,1=industrial).
func (a *Account) PendingLane(industrial bool) uint64 {
	if industrial {
		return a.PendingIndustrial
	}
	return a.PendingConsumer
}

// BalanceLane returns the confirmed balance for lane.
func (a *Account) BalanceLane(industrial bool) uint64 {
	if industrial {
		return a.Balance.Industrial
	}
	return a.Balance.Consumer
}

// ExpectedNextNonce is confirmed nonce + pending count + 1, the nonce an
// admission must present to extend the pending run contiguously
// (spec.md §4.5 step 14).
func (a *Account) ExpectedNextNonce() uint64 {
	return a.Nonce + a.PendingNonce + 1
}

// CheckInvariants validates the account invariants of spec.md §3, for use
// in tests and debug assertions.
func (a *Account) CheckInvariants() bool {
	if uint64(len(a.PendingNonces)) != a.PendingNonce {
		return false
	}
	if a.Balance.Consumer < a.PendingConsumer || a.Balance.Industrial < a.PendingIndustrial {
		return false
	}
	nonces := make([]uint64, 0, len(a.PendingNonces))
	for n := range a.PendingNonces {
		nonces = append(nonces, n)
	}
	sort.Slice(nonces, func(i, j int) bool { return nonces[i] < nonces[j] })
	for i, n := range nonces {
		if n != a.Nonce+1+uint64(i) {
			return false
		}
	}
	return true
}

// FindSession returns the session policy matching pubKey, or nil.
func (a *Account) FindSession(pubKey []byte) *SessionPolicy {
	for i := range a.Sessions {
		if bytesEqual(a.Sessions[i].PublicKey, pubKey) {
			return &a.Sessions[i]
		}
	}
	return nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
