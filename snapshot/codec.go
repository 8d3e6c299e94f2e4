package snapshot

import (
	"encoding/binary"
	"math"

	"github.com/pkg/errors"

	"github.com/civicledger/corechain/accounts"
	"github.com/civicledger/corechain/chain"
	"github.com/civicledger/corechain/governance"
	"github.com/civicledger/corechain/hashing"
	"github.com/civicledger/corechain/tx"
)

// snapshotMeta is the fixed-field header encoded before the account set in
// a full snapshot record.
type snapshotMeta struct {
	Height                uint64
	Difficulty            uint64
	BaseFee               uint64
	RetuneHint            int64
	BlockRewardConsumer   uint64
	BlockRewardIndustrial uint64
	EmissionConsumer      uint64
	EmissionIndustrial    uint64
	StateRoot             hashing.Hash
	Subsidy               governance.SubsidyCoefficients
	IndustrialMultiplier  float64
}

func encodeSnapshot(state *chain.State, accts map[string]*accounts.Account) []byte {
	e := hashing.NewEncoder(256)
	e.U64(state.BlockHeight)
	e.U64(state.Difficulty)
	e.U64(state.BaseFee)
	e.I64(state.RetuneHint)
	e.U64(state.BlockRewardConsumer)
	e.U64(state.BlockRewardIndustrial)
	e.U64(state.EmissionConsumer)
	e.U64(state.EmissionIndustrial)
	e.Hash(recomputeRoot(accts))
	e.U64(state.Params.Subsidy.Beta)
	e.U64(state.Params.Subsidy.Gamma)
	e.U64(state.Params.Subsidy.Kappa)
	e.U64(state.Params.Subsidy.Lambda)
	e.U64(math.Float64bits(state.Params.IndustrialMultiplier))
	appendAccounts(e, accts)
	return e.Finish()
}

func encodeAccounts(accts map[string]*accounts.Account) []byte {
	e := hashing.NewEncoder(64 * len(accts))
	appendAccounts(e, accts)
	return e.Finish()
}

func appendAccounts(e *hashing.Encoder, accts map[string]*accounts.Account) {
	e.U64(uint64(len(accts)))
	for addr, a := range accts {
		e.String(addr)
		e.U64(a.Balance.Consumer)
		e.U64(a.Balance.Industrial)
		e.U64(a.Nonce)
		e.U64(uint64(len(a.Sessions)))
		for _, s := range a.Sessions {
			e.Bytes(s.PublicKey)
			e.I64(s.ExpiresAt)
			e.U64(s.Nonce)
		}
	}
}

func encodeBlock(b *chain.Block) []byte {
	e := hashing.NewEncoder(256)
	e.Hash(b.Hash)
	e.U64(b.Header.Index)
	e.Hash(b.Header.PreviousHash)
	e.I64(b.Header.TimestampMillis)
	e.U64(b.Header.Difficulty)
	e.I64(b.Header.RetuneHint)
	e.U64(b.Header.Nonce)
	e.U64(b.Header.BaseFee)
	e.Hash(b.Header.ReadRoot)
	e.Hash(b.Header.FeeChecksum)
	e.Hash(b.Header.StateRoot)
	e.Hash(b.Header.VDFCommit)
	e.Hash(b.Header.VDFOutput)
	e.Bytes(b.Header.VDFProof)
	e.U64(b.Header.CoinbaseConsumer)
	e.U64(b.Header.CoinbaseIndustrial)
	e.U64(b.Header.StorageSubCT)
	e.U64(b.Header.ReadSubCT)
	e.U64(b.Header.ComputeSubCT)
	e.U64(b.Header.StorageSubIT)
	e.U64(b.Header.ReadSubIT)
	e.U64(b.Header.ComputeSubIT)
	e.U64(uint64(len(b.Header.L2Roots)))
	for i, r := range b.Header.L2Roots {
		e.Hash(r)
		e.U32(b.Header.L2Sizes[i])
	}
	e.U64(uint64(len(b.Transactions)))
	for _, t := range b.Transactions {
		e.String(t.Payload.From)
		e.String(t.Payload.To)
		e.U64(t.Payload.AmountConsumer)
		e.U64(t.Payload.AmountIndustrial)
		e.U64(t.Payload.Fee)
		e.U8(t.Payload.PctCT)
		e.U64(t.Payload.Nonce)
		e.String(t.Payload.Memo)
		e.Bytes(t.PublicKey)
		e.Bytes(t.Signature)
		e.U8(uint8(t.Lane))
		e.U64(t.Tip)
	}
	return e.Finish()
}

// reader is a minimal cursor over the little-endian, length-prefixed layout
// hashing.Encoder produces; it exists only to decode what this package
// itself wrote, not as a general wire codec.
type reader struct {
	buf []byte
	pos int
}

func (r *reader) u8() (uint8, error) {
	if r.pos+1 > len(r.buf) {
		return 0, errors.New("snapshot: truncated record (u8)")
	}
	v := r.buf[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) u32() (uint32, error) {
	if r.pos+4 > len(r.buf) {
		return 0, errors.New("snapshot: truncated record (u32)")
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *reader) u64() (uint64, error) {
	if r.pos+8 > len(r.buf) {
		return 0, errors.New("snapshot: truncated record (u64)")
	}
	v := binary.LittleEndian.Uint64(r.buf[r.pos:])
	r.pos += 8
	return v, nil
}

func (r *reader) i64() (int64, error) {
	v, err := r.u64()
	return int64(v), err
}

func (r *reader) hash() (hashing.Hash, error) {
	var h hashing.Hash
	if r.pos+hashing.Size > len(r.buf) {
		return h, errors.New("snapshot: truncated record (hash)")
	}
	copy(h[:], r.buf[r.pos:r.pos+hashing.Size])
	r.pos += hashing.Size
	return h, nil
}

func (r *reader) bytes() ([]byte, error) {
	n, err := r.u64()
	if err != nil {
		return nil, err
	}
	if r.pos+int(n) > len(r.buf) {
		return nil, errors.New("snapshot: truncated record (bytes)")
	}
	v := append([]byte{}, r.buf[r.pos:r.pos+int(n)]...)
	r.pos += int(n)
	return v, nil
}

func (r *reader) str() (string, error) {
	b, err := r.bytes()
	return string(b), err
}

func readAccounts(r *reader) (map[string]*accounts.Account, error) {
	count, err := r.u64()
	if err != nil {
		return nil, err
	}
	out := make(map[string]*accounts.Account, count)
	for i := uint64(0); i < count; i++ {
		addr, err := r.str()
		if err != nil {
			return nil, err
		}
		ct, err := r.u64()
		if err != nil {
			return nil, err
		}
		it, err := r.u64()
		if err != nil {
			return nil, err
		}
		nonce, err := r.u64()
		if err != nil {
			return nil, err
		}
		a := accounts.NewAccount(accounts.TokenBalance{Consumer: ct, Industrial: it})
		a.Nonce = nonce
		sessCount, err := r.u64()
		if err != nil {
			return nil, err
		}
		for s := uint64(0); s < sessCount; s++ {
			pub, err := r.bytes()
			if err != nil {
				return nil, err
			}
			expires, err := r.i64()
			if err != nil {
				return nil, err
			}
			sNonce, err := r.u64()
			if err != nil {
				return nil, err
			}
			a.Sessions = append(a.Sessions, accounts.SessionPolicy{PublicKey: pub, ExpiresAt: expires, Nonce: sNonce})
		}
		out[addr] = a
	}
	return out, nil
}

func decodeAccounts(raw []byte) (map[string]*accounts.Account, error) {
	r := &reader{buf: raw}
	return readAccounts(r)
}

func decodeSnapshot(raw []byte) (uint64, map[string]*accounts.Account, snapshotMeta, error) {
	r := &reader{buf: raw}
	var meta snapshotMeta
	var err error
	if meta.Height, err = r.u64(); err != nil {
		return 0, nil, meta, err
	}
	if meta.Difficulty, err = r.u64(); err != nil {
		return 0, nil, meta, err
	}
	if meta.BaseFee, err = r.u64(); err != nil {
		return 0, nil, meta, err
	}
	if meta.RetuneHint, err = r.i64(); err != nil {
		return 0, nil, meta, err
	}
	if meta.BlockRewardConsumer, err = r.u64(); err != nil {
		return 0, nil, meta, err
	}
	if meta.BlockRewardIndustrial, err = r.u64(); err != nil {
		return 0, nil, meta, err
	}
	if meta.EmissionConsumer, err = r.u64(); err != nil {
		return 0, nil, meta, err
	}
	if meta.EmissionIndustrial, err = r.u64(); err != nil {
		return 0, nil, meta, err
	}
	if meta.StateRoot, err = r.hash(); err != nil {
		return 0, nil, meta, err
	}
	if meta.Subsidy.Beta, err = r.u64(); err != nil {
		return 0, nil, meta, err
	}
	if meta.Subsidy.Gamma, err = r.u64(); err != nil {
		return 0, nil, meta, err
	}
	if meta.Subsidy.Kappa, err = r.u64(); err != nil {
		return 0, nil, meta, err
	}
	if meta.Subsidy.Lambda, err = r.u64(); err != nil {
		return 0, nil, meta, err
	}
	bits, err := r.u64()
	if err != nil {
		return 0, nil, meta, err
	}
	meta.IndustrialMultiplier = math.Float64frombits(bits)
	accts, err := readAccounts(r)
	if err != nil {
		return 0, nil, meta, err
	}
	return meta.Height, accts, meta, nil
}

func decodeBlock(raw []byte) (*chain.Block, error) {
	r := &reader{buf: raw}
	b := &chain.Block{}
	var err error
	if b.Hash, err = r.hash(); err != nil {
		return nil, err
	}
	if b.Header.Index, err = r.u64(); err != nil {
		return nil, err
	}
	if b.Header.PreviousHash, err = r.hash(); err != nil {
		return nil, err
	}
	if b.Header.TimestampMillis, err = r.i64(); err != nil {
		return nil, err
	}
	if b.Header.Difficulty, err = r.u64(); err != nil {
		return nil, err
	}
	if b.Header.RetuneHint, err = r.i64(); err != nil {
		return nil, err
	}
	if b.Header.Nonce, err = r.u64(); err != nil {
		return nil, err
	}
	if b.Header.BaseFee, err = r.u64(); err != nil {
		return nil, err
	}
	if b.Header.ReadRoot, err = r.hash(); err != nil {
		return nil, err
	}
	if b.Header.FeeChecksum, err = r.hash(); err != nil {
		return nil, err
	}
	if b.Header.StateRoot, err = r.hash(); err != nil {
		return nil, err
	}
	if b.Header.VDFCommit, err = r.hash(); err != nil {
		return nil, err
	}
	if b.Header.VDFOutput, err = r.hash(); err != nil {
		return nil, err
	}
	if b.Header.VDFProof, err = r.bytes(); err != nil {
		return nil, err
	}
	if b.Header.CoinbaseConsumer, err = r.u64(); err != nil {
		return nil, err
	}
	if b.Header.CoinbaseIndustrial, err = r.u64(); err != nil {
		return nil, err
	}
	if b.Header.StorageSubCT, err = r.u64(); err != nil {
		return nil, err
	}
	if b.Header.ReadSubCT, err = r.u64(); err != nil {
		return nil, err
	}
	if b.Header.ComputeSubCT, err = r.u64(); err != nil {
		return nil, err
	}
	if b.Header.StorageSubIT, err = r.u64(); err != nil {
		return nil, err
	}
	if b.Header.ReadSubIT, err = r.u64(); err != nil {
		return nil, err
	}
	if b.Header.ComputeSubIT, err = r.u64(); err != nil {
		return nil, err
	}
	l2Count, err := r.u64()
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < l2Count; i++ {
		root, err := r.hash()
		if err != nil {
			return nil, err
		}
		size, err := r.u32()
		if err != nil {
			return nil, err
		}
		b.Header.L2Roots = append(b.Header.L2Roots, root)
		b.Header.L2Sizes = append(b.Header.L2Sizes, size)
	}
	txCount, err := r.u64()
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < txCount; i++ {
		var p tx.Payload
		if p.From, err = r.str(); err != nil {
			return nil, err
		}
		if p.To, err = r.str(); err != nil {
			return nil, err
		}
		if p.AmountConsumer, err = r.u64(); err != nil {
			return nil, err
		}
		if p.AmountIndustrial, err = r.u64(); err != nil {
			return nil, err
		}
		if p.Fee, err = r.u64(); err != nil {
			return nil, err
		}
		if p.PctCT, err = r.u8(); err != nil {
			return nil, err
		}
		if p.Nonce, err = r.u64(); err != nil {
			return nil, err
		}
		if p.Memo, err = r.str(); err != nil {
			return nil, err
		}
		stx := &tx.SignedTransaction{Payload: p}
		if stx.PublicKey, err = r.bytes(); err != nil {
			return nil, err
		}
		if stx.Signature, err = r.bytes(); err != nil {
			return nil, err
		}
		lane, err := r.u8()
		if err != nil {
			return nil, err
		}
		stx.Lane = tx.Lane(lane)
		if stx.Tip, err = r.u64(); err != nil {
			return nil, err
		}
		b.Transactions = append(b.Transactions, stx)
	}
	return b, nil
}
