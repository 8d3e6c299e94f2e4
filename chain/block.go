// Package chain implements the block, chain state, block assembler, and
// chain validator/importer of spec.md §4.10-§4.12, grounded on
// daglabs-btcd/blockdag/dag.go (chain-swap-on-longer-valid-chain shape),
// blockdag/process.go (validate-then-accept pipeline), and
// blockdag/mining.go (BlockForMining).
package chain

import (
	"github.com/civicledger/corechain/hashing"
	"github.com/civicledger/corechain/tx"
)

// CoinbaseSender is the fixed-length all-zero account used as the sender of
// every block's coinbase transaction (spec.md §3 Block.Body).
const CoinbaseSender = "0000000000000000000000000000000000000000"

// Header is the fixed-order header of a Block (spec.md §3).
type Header struct {
	Index              uint64
	PreviousHash       hashing.Hash
	TimestampMillis    int64
	Difficulty         uint64
	RetuneHint         int64
	Nonce              uint64
	BaseFee            uint64
	ReadRoot           hashing.Hash
	FeeChecksum        hashing.Hash
	StateRoot          hashing.Hash
	L2Roots            []hashing.Hash
	L2Sizes            []uint32
	VDFCommit          hashing.Hash
	VDFOutput          hashing.Hash
	VDFProof           []byte
	CoinbaseConsumer   uint64
	CoinbaseIndustrial uint64
	StorageSubCT       uint64
	ReadSubCT          uint64
	ComputeSubCT       uint64
	StorageSubIT       uint64
	ReadSubIT          uint64
	ComputeSubIT       uint64
}

// Block is a mined or candidate block: a Header plus its ordered
// transaction body, transactions[0] being the coinbase.
type Block struct {
	Header       Header
	Transactions []*tx.SignedTransaction
	Hash         hashing.Hash
}

// CanonicalBytes assembles the field-tagged, fixed-order byte layout the
// block hashes over (spec.md §4.1): every header field plus each tx id.
func (b *Block) CanonicalBytes() []byte {
	e := hashing.NewEncoder(512)
	e.U64(b.Header.Index)
	e.Hash(b.Header.PreviousHash)
	e.I64(b.Header.TimestampMillis)
	e.U64(b.Header.Nonce)
	e.U64(b.Header.Difficulty)
	e.I64(b.Header.RetuneHint)
	e.U64(b.Header.BaseFee)
	e.U64(b.Header.CoinbaseConsumer)
	e.U64(b.Header.CoinbaseIndustrial)
	e.U64(b.Header.StorageSubCT)
	e.U64(b.Header.ReadSubCT)
	e.U64(b.Header.ComputeSubCT)
	e.U64(b.Header.StorageSubIT)
	e.U64(b.Header.ReadSubIT)
	e.U64(b.Header.ComputeSubIT)
	e.Hash(b.Header.ReadRoot)
	e.Hash(b.Header.FeeChecksum)
	for _, t := range b.Transactions {
		e.Hash(t.Payload.ID())
	}
	e.Hash(b.Header.StateRoot)
	e.U64(uint64(len(b.Header.L2Roots)))
	for i, r := range b.Header.L2Roots {
		e.Hash(r)
		e.U32(b.Header.L2Sizes[i])
	}
	e.Hash(b.Header.VDFCommit)
	e.Hash(b.Header.VDFOutput)
	e.Bytes(b.Header.VDFProof)
	return e.Finish()
}

// ComputeHash returns the canonical hash of the block's current contents.
// Any post-mining mutation of the block voids the hash held in b.Hash
// (spec.md §3 invariant).
func (b *Block) ComputeHash() hashing.Hash {
	return hashing.Sum256(b.CanonicalBytes())
}

// MeetsDifficulty reports whether h has at least difficulty leading zero
// bits (spec.md §4.1/§8).
func MeetsDifficulty(h hashing.Hash, difficulty uint64) bool {
	return uint64(h.LeadingZeroBits()) >= difficulty
}

// FeeChecksum computes H(sum_ct_u64 || sum_it_u64), per spec.md §3.
func FeeChecksum(sumCT, sumIT uint64) hashing.Hash {
	e := hashing.NewEncoder(16)
	e.U64(sumCT)
	e.U64(sumIT)
	return hashing.Sum256(e.Finish())
}
