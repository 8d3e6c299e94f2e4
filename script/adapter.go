// Package script is a thin adapter standing in for the embedded
// scripting-host bindings the original implementation exposed via pyo3
// (spec.md Non-goals: "embedded scripting-host bindings as anything but a
// thin adapter"). It re-exposes the handful of pure functions an embedding
// host actually needs — fee decomposition and canonical transaction
// encoding — as plain Go calls with primitive-typed signatures, so a future
// language binding has a narrow, stable surface to wrap instead of reaching
// into fees/tx/hashing directly.
package script

import (
	"github.com/civicledger/corechain/fees"
	"github.com/civicledger/corechain/hashing"
	"github.com/civicledger/corechain/tx"
)

// DecomposeFee mirrors fees.Decompose with a signature safe to bind from a
// foreign-function interface: no Go-specific error type crosses the
// boundary, just a plain ok flag.
func DecomposeFee(selector uint8, fee uint64) (consumer, industrial uint64, ok bool) {
	ct, it, err := fees.Decompose(selector, fee)
	return ct, it, err == nil
}

// CanonicalPayloadBytes returns the canonical encoding of a transaction
// payload, the bytes a foreign signer must sign over (after prefixing the
// network's domain tag).
func CanonicalPayloadBytes(from, to string, amountConsumer, amountIndustrial, fee uint64, selector uint8, nonce uint64, memo string) []byte {
	p := tx.Payload{
		From: from, To: to,
		AmountConsumer: amountConsumer, AmountIndustrial: amountIndustrial,
		Fee: fee, PctCT: selector, Nonce: nonce, Memo: memo,
	}
	return p.CanonicalBytes()
}

// PayloadID returns the hex-encoded canonical hash of the payload described
// by the same fields CanonicalPayloadBytes takes.
func PayloadID(from, to string, amountConsumer, amountIndustrial, fee uint64, selector uint8, nonce uint64, memo string) string {
	p := tx.Payload{
		From: from, To: to,
		AmountConsumer: amountConsumer, AmountIndustrial: amountIndustrial,
		Fee: fee, PctCT: selector, Nonce: nonce, Memo: memo,
	}
	return p.ID().String()
}

// SumDomain exposes hashing.SumDomain: the hex hash of domainTag||payload.
// SignedTransaction.Verify checks signatures over the unhashed
// domainTag||payload bytes, not over this digest.
func SumDomain(domainTag, payload []byte) string {
	return hashing.SumDomain(domainTag, payload).String()
}
