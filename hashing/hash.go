// Package hashing implements the canonical encoder and hasher described in
// spec.md §4.1: a field-tagged, fixed-order, length-prefixed byte layout
// for every hash input (transaction payloads, blocks, Merkle roots), hashed
// with a strong 256-bit function under a version-tagged domain separator.
//
// The encoding rules are adapted from daglabs-btcd's wire/blockheader.go
// fixed-field serialization discipline; the hash primitive itself
// (blake2b-256) is the nearest ecosystem analogue available in the example
// pack to the original Rust implementation's blake3 (see SPEC_FULL.md §B).
package hashing

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// Size is the width, in bytes, of every hash produced by this package.
const Size = 32

// Hash is a 256-bit digest.
type Hash [Size]byte

// String renders the hash as lowercase hex, matching daghash.Hash's String().
func (h Hash) String() string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 2*Size)
	for i, b := range h {
		out[i*2] = hexDigits[b>>4]
		out[i*2+1] = hexDigits[b&0x0f]
	}
	return string(out)
}

// IsZero reports whether h is the all-zero hash (the "no previous hash"
// value at genesis, and the root of an empty Merkle leaf set).
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// LeadingZeroBits counts the number of leading zero bits in h, most
// significant byte first. This is the quantity difficulty is measured
// against: a block is valid iff LeadingZeroBits(hash) >= difficulty.
func (h Hash) LeadingZeroBits() uint32 {
	var n uint32
	for _, b := range h {
		if b == 0 {
			n += 8
			continue
		}
		for mask := byte(0x80); mask != 0; mask >>= 1 {
			if b&mask != 0 {
				return n
			}
			n++
		}
	}
	return n
}

// Encoder assembles a deterministic, field-tagged byte layout. Integers are
// little-endian; byte vectors and strings carry a 64-bit length prefix;
// optional fields carry a one-byte presence tag (0 absent, 1 present).
type Encoder struct {
	buf []byte
}

// NewEncoder returns an empty Encoder with cap bytes pre-allocated.
func NewEncoder(cap int) *Encoder {
	return &Encoder{buf: make([]byte, 0, cap)}
}

func (e *Encoder) U8(v uint8) *Encoder { e.buf = append(e.buf, v); return e }

func (e *Encoder) U32(v uint32) *Encoder {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	e.buf = append(e.buf, b[:]...)
	return e
}

func (e *Encoder) U64(v uint64) *Encoder {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	e.buf = append(e.buf, b[:]...)
	return e
}

// I64 encodes a signed 64-bit integer (used for retune_hint) as its
// two's-complement bit pattern via U64, so encoding stays integer-only.
func (e *Encoder) I64(v int64) *Encoder { return e.U64(uint64(v)) }

// Bytes appends a 64-bit length prefix followed by raw bytes.
func (e *Encoder) Bytes(v []byte) *Encoder {
	e.U64(uint64(len(v)))
	e.buf = append(e.buf, v...)
	return e
}

// String appends a length-prefixed UTF-8 string.
func (e *Encoder) String(v string) *Encoder { return e.Bytes([]byte(v)) }

// Hash appends a fixed-width hash with no length prefix (its width is known).
func (e *Encoder) Hash(h Hash) *Encoder {
	e.buf = append(e.buf, h[:]...)
	return e
}

// Optional appends a one-byte presence tag, then present(e) iff present.
func (e *Encoder) Optional(present bool, write func(*Encoder)) *Encoder {
	if present {
		e.U8(1)
		write(e)
	} else {
		e.U8(0)
	}
	return e
}

// Finish returns the accumulated canonical byte layout.
func (e *Encoder) Finish() []byte { return e.buf }

// Sum256 hashes b with blake2b-256, the canonical hash used throughout
// corechain for payload ids, block hashes, and Merkle roots.
func Sum256(b []byte) Hash {
	return blake2b.Sum256(b)
}

// SumDomain hashes domain||b, implementing the "domain tag bytes are
// prepended to signature pre-images to separate networks" rule of §4.1.
func SumDomain(domain []byte, b []byte) Hash {
	buf := make([]byte, 0, len(domain)+len(b))
	buf = append(buf, domain...)
	buf = append(buf, b...)
	return Sum256(buf)
}

// MerkleRoot computes a simple binary Merkle root over leaves, duplicating
// the final element of an odd-length level (the conventional Bitcoin-style
// fold used throughout the teacher's util/merkle-adjacent code paths).
// An empty leaf set roots to the zero hash.
func MerkleRoot(leaves []Hash) Hash {
	if len(leaves) == 0 {
		return Hash{}
	}
	level := make([]Hash, len(leaves))
	copy(level, leaves)
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([]Hash, len(level)/2)
		for i := range next {
			e := NewEncoder(2 * Size)
			e.Hash(level[2*i])
			e.Hash(level[2*i+1])
			next[i] = Sum256(e.Finish())
		}
		level = next
	}
	return level[0]
}
