package tx

import (
	"crypto/ed25519"

	"github.com/civicledger/corechain/hashing"
)

// SignedTransaction is the wire/mempool envelope around a Payload: single
// Ed25519 signature, or an m-of-n multisig holding area, per spec.md §3.
//
// Ed25519 is implemented with the Go standard library's crypto/ed25519.
// No repository in the example pack ships a third-party Ed25519
// implementation to ground a dependency choice on (see SPEC_FULL.md §B);
// this is the one deliberate stdlib usage in the signature-verification
// path, and it is limited to exactly this primitive.
type SignedTransaction struct {
	Payload   Payload
	PublicKey []byte // ed25519.PublicKey, single-signer path
	Signature []byte // ed25519.Signature, single-signer path

	// Multisig / threshold fields (spec.md §3).
	SignerPubKeys      [][]byte
	AggregateSignature []byte
	Threshold          int

	Lane    Lane
	Version uint32
	Tip     uint64 // priority fee
}

// PayloadHash is the content-addressing key used by the pending-multisig
// holding area (spec.md §4.5 step 1).
func (s *SignedTransaction) PayloadHash() hashing.Hash {
	return s.Payload.ID()
}

// IsMultisig reports whether s must be routed through the pending-multisig
// short circuit rather than verified as a single signer.
func (s *SignedTransaction) IsMultisig() bool {
	return s.Threshold > 0
}

// HasThresholdSignatures reports whether enough signer keys have
// accumulated to satisfy s.Threshold.
func (s *SignedTransaction) HasThresholdSignatures() bool {
	return len(s.SignerPubKeys) >= s.Threshold
}

// Verify checks the single-signer Ed25519 signature over
// domainTag || canonical(payload), per spec.md §4.1/§4.5 step 17.
func (s *SignedTransaction) Verify(domainTag []byte) bool {
	if len(s.PublicKey) != ed25519.PublicKeySize || len(s.Signature) != ed25519.SignatureSize {
		return false
	}
	msg := append(append([]byte{}, domainTag...), s.Payload.CanonicalBytes()...)
	return ed25519.Verify(s.PublicKey, msg, s.Signature)
}

// VerifyMultisig checks that at least Threshold of SignerPubKeys each
// produced a valid Ed25519 signature over domainTag||canonical(payload),
// packed end-to-end in AggregateSignature (one ed25519.SignatureSize chunk
// per signer, in SignerPubKeys order).
func (s *SignedTransaction) VerifyMultisig(domainTag []byte) bool {
	if !s.HasThresholdSignatures() {
		return false
	}
	if len(s.AggregateSignature) != len(s.SignerPubKeys)*ed25519.SignatureSize {
		return false
	}
	msg := append(append([]byte{}, domainTag...), s.Payload.CanonicalBytes()...)
	valid := 0
	for i, pub := range s.SignerPubKeys {
		if len(pub) != ed25519.PublicKeySize {
			continue
		}
		sig := s.AggregateSignature[i*ed25519.SignatureSize : (i+1)*ed25519.SignatureSize]
		if ed25519.Verify(pub, msg, sig) {
			valid++
		}
	}
	return valid >= s.Threshold
}

// Sign produces a single-signer signature over domainTag||canonical(payload)
// using priv, and stores the corresponding public key. Used by tests, not
// by consensus paths.
func Sign(priv ed25519.PrivateKey, domainTag []byte, payload *Payload) (pub, sig []byte) {
	msg := append(append([]byte{}, domainTag...), payload.CanonicalBytes()...)
	sig = ed25519.Sign(priv, msg)
	pub = []byte(priv.Public().(ed25519.PublicKey))
	return pub, sig
}

// SerializedSize approximates the wire size of s for fee-per-byte purposes
// (spec.md §3 MempoolEntry.serialized_size). It is a deterministic function
// of the canonical payload plus the fixed-size signature material, not an
// actual wire codec (out of scope per spec.md §1).
func (s *SignedTransaction) SerializedSize() uint64 {
	size := uint64(len(s.Payload.CanonicalBytes()))
	size += uint64(len(s.PublicKey) + len(s.Signature))
	for _, k := range s.SignerPubKeys {
		size += uint64(len(k))
	}
	size += uint64(len(s.AggregateSignature))
	return size
}
