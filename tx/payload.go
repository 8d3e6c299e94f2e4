// Package tx implements the canonical transaction payload and signed
// transaction envelope of spec.md §3: deterministic encoding, Ed25519
// signature verification, and the m-of-n multisig/session-key fields.
package tx

import (
	"github.com/civicledger/corechain/hashing"
)

// Lane identifies which mempool lane a transaction belongs to.
type Lane uint8

const (
	LaneConsumer Lane = iota
	LaneIndustrial
)

// Payload is the canonical transaction body whose hash signatures cover.
type Payload struct {
	From             string
	To               string
	AmountConsumer   uint64
	AmountIndustrial uint64
	Fee              uint64
	PctCT            uint8 // selector: 0=all-consumer, 1=all-industrial, 2=split
	Nonce            uint64
	Memo             string
}

// CanonicalBytes returns the fixed-order, length-prefixed encoding of p, per
// spec.md §4.1.
func (p *Payload) CanonicalBytes() []byte {
	e := hashing.NewEncoder(128 + len(p.From) + len(p.To) + len(p.Memo))
	e.String(p.From)
	e.String(p.To)
	e.U64(p.AmountConsumer)
	e.U64(p.AmountIndustrial)
	e.U64(p.Fee)
	e.U8(p.PctCT)
	e.U64(p.Nonce)
	e.String(p.Memo)
	return e.Finish()
}

// ID returns the canonical 256-bit hash of the payload — this is also each
// block's per-transaction "tx id" used in the block hash and in Merkle
// roots, per spec.md §4.1.
func (p *Payload) ID() hashing.Hash {
	return hashing.Sum256(p.CanonicalBytes())
}
