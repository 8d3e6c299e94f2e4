package chain

import (
	"sort"

	"github.com/civicledger/corechain/accounts"
	"github.com/civicledger/corechain/consensus"
	"github.com/civicledger/corechain/fees"
	"github.com/civicledger/corechain/hashing"
	"github.com/civicledger/corechain/mempool"
	"github.com/civicledger/corechain/tx"
)

// Utilization carries the externally-measured per-epoch resource usage fed
// into the storage/read/compute subsidy formula (spec.md §4.9); the meters
// themselves (storage engine, request accounting) are out of scope, so the
// assembler only ever sees the rolled-up totals for the block being built.
type Utilization struct {
	StorageBytes uint64
	ReadBytes    uint64
	CPUMillis    uint64
	BytesOut     uint64
}

// maxTxLow/maxTxHigh are the two per-block transaction caps of spec.md
// §4.10 step 2: the assembler includes more transactions per block once the
// mempool itself is comfortably under half capacity, and throttles back to
// the lower cap once it's filling up.
const (
	maxTxLow  = 256
	maxTxHigh = 1024
)

// AssembleBlock runs the block assembly process of spec.md §4.10: select a
// nonce-contiguous, fee-ordered set of mempool entries, build the coinbase,
// compute the shadow state root and fee checksum, then search for a nonce
// meeting the current difficulty.
func AssembleBlock(
	pool *mempool.Pool,
	state *State,
	minerAddress string,
	domainTag []byte,
	clk mempool.Clock,
	l2Roots []hashing.Hash,
	l2Sizes []uint32,
	util Utilization,
	maxPoWIterations uint64,
) (*Block, error) {
	// Step 1: snapshot the mempool; Snapshot() already returns entries
	// ordered worst-to-best under the eviction order, so reverse to get
	// best-fee-per-byte-first selection order.
	entries := pool.Snapshot()
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}

	// Step 2: dynamic per-block cap.
	capC, capI := pool.Capacity()
	maxTx := maxTxLow
	if pool.Size() < (capC+capI)/2 {
		maxTx = maxTxHigh
	}

	bySender := make(map[string][]*mempool.Entry)
	senderOrder := make([]string, 0)
	for _, e := range entries {
		s := e.Tx.Payload.From
		if _, ok := bySender[s]; !ok {
			senderOrder = append(senderOrder, s)
		}
		bySender[s] = append(bySender[s], e)
	}
	for _, s := range senderOrder {
		group := bySender[s]
		sort.Slice(group, func(i, j int) bool { return group[i].Tx.Payload.Nonce < group[j].Tx.Payload.Nonce })
	}
	// Priority of a sender group is its highest fee-per-byte member (the
	// first element after the reverse above, since entries arrived
	// best-first within the overall ordering but grouped out of order).
	sort.Slice(senderOrder, func(i, j int) bool {
		return bestFeePerByte(bySender[senderOrder[i]]) > bestFeePerByte(bySender[senderOrder[j]])
	})

	shadow := state.Accounts.Snapshot()
	included := make([]*mempool.Entry, 0, maxTx)
	var feeSumCT, feeSumIT uint64

	for _, s := range senderOrder {
		if len(included) >= maxTx {
			break
		}
		account, ok := shadow[s]
		if !ok {
			continue
		}
		expected := account.Nonce + 1
		for _, e := range bySender[s] {
			if len(included) >= maxTx {
				break
			}
			if e.Tx.Payload.Nonce != expected {
				break // contiguity broken; remainder stays in mempool
			}
			ct, it, err := fees.Decompose(e.Tx.Payload.PctCT, e.Tx.Payload.Fee)
			if err != nil {
				break
			}
			totalCT := e.Tx.Payload.AmountConsumer + ct
			totalIT := e.Tx.Payload.AmountIndustrial + it
			if account.Balance.Consumer < totalCT || account.Balance.Industrial < totalIT {
				break
			}
			account.Balance.Consumer -= totalCT
			account.Balance.Industrial -= totalIT
			account.Nonce = e.Tx.Payload.Nonce
			if recv, ok := shadow[e.Tx.Payload.To]; ok {
				recv.Balance.Consumer += e.Tx.Payload.AmountConsumer
				recv.Balance.Industrial += e.Tx.Payload.AmountIndustrial
			} else {
				shadow[e.Tx.Payload.To] = accounts.NewAccount(accounts.TokenBalance{
					Consumer:   e.Tx.Payload.AmountConsumer,
					Industrial: e.Tx.Payload.AmountIndustrial,
				})
			}
			feeSumCT += ct
			feeSumIT += it
			included = append(included, e)
			expected++
		}
	}

	// Step 3: fee checksum over the totals actually collected.
	feeChecksum := FeeChecksum(feeSumCT, feeSumIT)

	// Step 4: reward + subsidies, coinbase construction.
	nEff := consensus.EffectiveMinerCount(append(append([]string{}, state.RecentMiners...), minerAddress))
	factor := consensus.LogisticFactor(&state.Logistic, state.Params.Logistic, state.BlockHeight+1, nEff)

	rewardCT := consensus.DecayReward(state.BlockRewardConsumer)
	rewardIT := consensus.DecayReward(state.BlockRewardIndustrial)
	rewardCT = uint64(float64(rewardCT) * factor)
	rewardIT = uint64(float64(rewardIT) * factor * state.Params.IndustrialMultiplier)
	rewardCT = consensus.CapReward(rewardCT, state.EmissionConsumer, state.Params.SupplyCeilingConsumer)
	rewardIT = consensus.CapReward(rewardIT, state.EmissionIndustrial, state.Params.SupplyCeilingIndustrial)

	storageSubCT, readSubCT, computeSubCT := consensus.Subsidies(
		state.Params.Subsidy.Beta, state.Params.Subsidy.Gamma, state.Params.Subsidy.Kappa, state.Params.Subsidy.Lambda,
		util.StorageBytes, util.ReadBytes, util.CPUMillis, util.BytesOut,
	)

	coinbaseConsumer := rewardCT + feeSumCT + storageSubCT + readSubCT + computeSubCT
	coinbaseIndustrial := rewardIT + feeSumIT

	if miner, ok := shadow[minerAddress]; ok {
		miner.Balance.Consumer += coinbaseConsumer
		miner.Balance.Industrial += coinbaseIndustrial
	} else {
		acc := accounts.NewAccount(accounts.TokenBalance{Consumer: coinbaseConsumer, Industrial: coinbaseIndustrial})
		shadow[minerAddress] = acc
	}

	coinbasePayload := tx.Payload{
		From:             CoinbaseSender,
		To:               minerAddress,
		AmountConsumer:   coinbaseConsumer,
		AmountIndustrial: coinbaseIndustrial,
		Nonce:            state.BlockHeight + 1,
	}
	coinbaseTx := &tx.SignedTransaction{Payload: coinbasePayload, Lane: tx.LaneConsumer}

	txs := make([]*tx.SignedTransaction, 0, len(included)+1)
	txs = append(txs, coinbaseTx)
	for _, e := range included {
		txs = append(txs, e.Tx)
	}

	// Step 5: shadow state root over every touched-and-untouched account.
	stateRoot := computeStateRoot(shadow)

	header := Header{
		Index:              state.BlockHeight + 1,
		PreviousHash:       state.TipHash(),
		TimestampMillis:    clk.NowMillis(),
		Difficulty:         state.Difficulty,
		RetuneHint:         state.RetuneHint,
		BaseFee:            state.BaseFee,
		ReadRoot:           hashing.Hash{}, // always zero: AssembleBlock takes no read-ack root
		FeeChecksum:        feeChecksum,
		StateRoot:          stateRoot,
		L2Roots:            l2Roots,
		L2Sizes:            l2Sizes,
		CoinbaseConsumer:   coinbaseConsumer,
		CoinbaseIndustrial: coinbaseIndustrial,
		StorageSubCT:       storageSubCT,
		ReadSubCT:          readSubCT,
		ComputeSubCT:       computeSubCT,
	}

	block := &Block{Header: header, Transactions: txs}

	// Step 6 (PoW loop): search for a nonce whose hash meets difficulty.
	for n := uint64(0); n < maxPoWIterations; n++ {
		block.Header.Nonce = n
		h := block.ComputeHash()
		if MeetsDifficulty(h, block.Header.Difficulty) {
			block.Hash = h
			log.Infof("mined block %d nonce=%d difficulty=%d txs=%d", block.Header.Index, n, block.Header.Difficulty, len(txs))
			return block, nil
		}
	}
	return nil, ErrPoWExhausted
}

func bestFeePerByte(group []*mempool.Entry) float64 {
	var best float64
	for _, e := range group {
		if f := e.FeePerByte(); f > best {
			best = f
		}
	}
	return best
}

// computeStateRoot hashes every account's address and balance/nonce fields
// in sorted-address order, so the root is a deterministic function of the
// account set regardless of map iteration order.
func computeStateRoot(accts map[string]*accounts.Account) hashing.Hash {
	addrs := make([]string, 0, len(accts))
	for a := range accts {
		addrs = append(addrs, a)
	}
	sort.Strings(addrs)
	leaves := make([]hashing.Hash, 0, len(addrs))
	for _, a := range addrs {
		acc := accts[a]
		e := hashing.NewEncoder(64 + len(a))
		e.String(a)
		e.U64(acc.Balance.Consumer)
		e.U64(acc.Balance.Industrial)
		e.U64(acc.Nonce)
		leaves = append(leaves, hashing.Sum256(e.Finish()))
	}
	return hashing.MerkleRoot(leaves)
}
