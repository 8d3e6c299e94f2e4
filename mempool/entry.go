package mempool

import (
	"sort"

	"github.com/civicledger/corechain/hashing"
	"github.com/civicledger/corechain/tx"
)

// Entry is a MempoolEntry (spec.md §3): an admitted transaction plus the
// bookkeeping admission computed for it.
type Entry struct {
	Tx              *tx.SignedTransaction
	TimestampMillis int64
	TimestampTicks  int64 // monotonic tiebreaker
	SerializedSize  uint64

	// ReservedConsumer/ReservedIndustrial are the exact per-lane amounts
	// admission reserved against the sender's balance (amount plus fee
	// decomposed over base_fee+tip, not payload.Fee — spec.md §3 allows
	// fee > base_fee+tip). Drop/eviction must release exactly this much,
	// or an overpaying sender underflows PendingConsumer/PendingIndustrial.
	ReservedConsumer   uint64
	ReservedIndustrial uint64
}

// FeePerByte is tip/serialized_size, or 0 if size is 0 (spec.md §3).
func (e *Entry) FeePerByte() float64 {
	if e.SerializedSize == 0 {
		return 0
	}
	return float64(e.Tx.Tip) / float64(e.SerializedSize)
}

// ExpiresAt is timestamp_millis + ttl_seconds*1000.
func (e *Entry) ExpiresAt(ttlSeconds int64) int64 {
	return e.TimestampMillis + ttlSeconds*1000
}

// Key is the (sender, nonce) map key within a lane.
func (e *Entry) Key() Key {
	return Key{Sender: e.Tx.Payload.From, Nonce: e.Tx.Payload.Nonce}
}

// ID is the transaction's canonical payload hash.
func (e *Entry) ID() hashing.Hash { return e.Tx.Payload.ID() }

// Key identifies a mempool entry within a lane.
type Key struct {
	Sender string
	Nonce  uint64
}

// lessEvictionOrder implements the eviction order of spec.md §3:
// fee-per-byte descending, then expires_at ascending, then tx id ascending.
// The maximum under this order is "best to keep"; eviction selects the
// minimum. lessEvictionOrder(a,b) reports whether a ranks worse than b
// (i.e. a is a better eviction candidate), so sorting ascending by this
// order puts the eviction victim first.
func lessEvictionOrder(a, b *Entry, ttlSeconds int64) bool {
	fa, fb := a.FeePerByte(), b.FeePerByte()
	if fa != fb {
		return fa < fb // lower fee-per-byte is worse -> evict first
	}
	ea, eb := a.ExpiresAt(ttlSeconds), b.ExpiresAt(ttlSeconds)
	if ea != eb {
		return ea < eb // sooner expiry is worse -> evict first
	}
	ida, idb := a.ID(), b.ID()
	return string(ida[:]) < string(idb[:])
}

// sortByEvictionOrder sorts entries ascending by lessEvictionOrder, so
// entries[0] is the eviction victim and entries[len-1] is best-to-keep.
func sortByEvictionOrder(entries []*Entry, ttlSeconds int64) {
	sort.Slice(entries, func(i, j int) bool {
		return lessEvictionOrder(entries[i], entries[j], ttlSeconds)
	})
}
