package chain

import (
	"github.com/civicledger/corechain/accounts"
	"github.com/civicledger/corechain/consensus"
	"github.com/civicledger/corechain/fees"
	"github.com/civicledger/corechain/governance"
	"github.com/civicledger/corechain/mempool"
	"github.com/civicledger/corechain/tx"
)

// targetTxPerBlock is the realized-gas target the base-fee controller
// compares each block's transaction count against (spec.md §4.13).
const targetTxPerBlock = maxTxLow / 2

// ReorgTracker records the depth and count of chain reorganizations
// (spec.md §4.12), so operators/RPC callers can observe reorg activity.
type ReorgTracker struct {
	TotalReorgs    uint64
	LastReorgDepth uint64
}

func (r *ReorgTracker) recordReorg(depth uint64) {
	r.TotalReorgs++
	r.LastReorgDepth = depth
}

// applyTransactions debits/credits shadow for every transaction in txs,
// treating txs[0] as the coinbase (credited without a nonce check) and
// every subsequent entry as a confirmed-nonce-extending transfer whose
// Ed25519 signature (single-signer or multisig) must verify under
// domainTag. It returns the total fee collected across both lanes.
func applyTransactions(shadow map[string]*accounts.Account, txs []*tx.SignedTransaction, domainTag []byte) (feeCT, feeIT uint64, err error) {
	if len(txs) == 0 {
		return 0, 0, ErrEmptyBlock
	}
	coinbase := txs[0]
	if coinbase.Payload.From != CoinbaseSender {
		return 0, 0, ErrNotCoinbase
	}
	for _, stx := range txs[1:] {
		if stx.IsMultisig() {
			if !stx.VerifyMultisig(domainTag) {
				return 0, 0, ErrTxBadSignature
			}
		} else if !stx.Verify(domainTag) {
			return 0, 0, ErrTxBadSignature
		}
		sender, ok := shadow[stx.Payload.From]
		if !ok {
			return 0, 0, mempool.ErrUnknownSender
		}
		if stx.Payload.Nonce != sender.Nonce+1 {
			return 0, 0, ErrTxNonceGap
		}
		ct, it, derr := fees.Decompose(stx.Payload.PctCT, stx.Payload.Fee)
		if derr != nil {
			return 0, 0, derr
		}
		totalCT := stx.Payload.AmountConsumer + ct
		totalIT := stx.Payload.AmountIndustrial + it
		if sender.Balance.Consumer < totalCT || sender.Balance.Industrial < totalIT {
			return 0, 0, ErrTxInsufficientBal
		}
		sender.Balance.Consumer -= totalCT
		sender.Balance.Industrial -= totalIT
		sender.Nonce = stx.Payload.Nonce
		if recv, ok := shadow[stx.Payload.To]; ok {
			recv.Balance.Consumer += stx.Payload.AmountConsumer
			recv.Balance.Industrial += stx.Payload.AmountIndustrial
		} else {
			shadow[stx.Payload.To] = accounts.NewAccount(accounts.TokenBalance{
				Consumer:   stx.Payload.AmountConsumer,
				Industrial: stx.Payload.AmountIndustrial,
			})
		}
		feeCT += ct
		feeIT += it
	}

	if miner, ok := shadow[coinbase.Payload.To]; ok {
		miner.Balance.Consumer += coinbase.Payload.AmountConsumer
		miner.Balance.Industrial += coinbase.Payload.AmountIndustrial
	} else {
		shadow[coinbase.Payload.To] = accounts.NewAccount(accounts.TokenBalance{
			Consumer:   coinbase.Payload.AmountConsumer,
			Industrial: coinbase.Payload.AmountIndustrial,
		})
	}
	return feeCT, feeIT, nil
}

// expectedBaseReward recomputes the base-reward term of the coinbase
// equation the same way AssembleBlock's step 4 derives it, against a
// throwaway copy of the logistic state so validation never mutates the
// real one (LogisticFactor caches its recompute-window state as a side
// effect).
func expectedBaseReward(state *State, minerAddress string) (rewardCT, rewardIT uint64) {
	nEff := consensus.EffectiveMinerCount(append(append([]string{}, state.RecentMiners...), minerAddress))
	logistic := state.Logistic
	factor := consensus.LogisticFactor(&logistic, state.Params.Logistic, state.BlockHeight+1, nEff)

	rewardCT = consensus.DecayReward(state.BlockRewardConsumer)
	rewardIT = consensus.DecayReward(state.BlockRewardIndustrial)
	rewardCT = uint64(float64(rewardCT) * factor)
	rewardIT = uint64(float64(rewardIT) * factor * state.Params.IndustrialMultiplier)
	rewardCT = consensus.CapReward(rewardCT, state.EmissionConsumer, state.Params.SupplyCeilingConsumer)
	rewardIT = consensus.CapReward(rewardIT, state.EmissionIndustrial, state.Params.SupplyCeilingIndustrial)
	return rewardCT, rewardIT
}

// ValidateBlock checks b against state without mutating either (spec.md
// §4.12): index/prev-hash continuity, hash/difficulty, every non-coinbase
// transaction's signature, the coinbase reward equation, replayed state
// root and fee checksum, and the declared difficulty/base fee against the
// chain's current values.
func ValidateBlock(state *State, b *Block, domainTag []byte) error {
	if b.Header.Index != state.BlockHeight+1 {
		return ErrWrongIndex
	}
	if b.Header.PreviousHash != state.TipHash() {
		return ErrWrongPrevHash
	}
	if b.Header.Difficulty != state.Difficulty {
		return ErrWrongDifficulty
	}
	if b.Header.BaseFee != state.BaseFee {
		return ErrWrongBaseFee
	}
	if b.ComputeHash() != b.Hash {
		return ErrHashMismatch
	}
	if !MeetsDifficulty(b.Hash, b.Header.Difficulty) {
		return ErrDifficultyNotMet
	}

	shadow := state.Accounts.Snapshot()
	feeCT, feeIT, err := applyTransactions(shadow, b.Transactions, domainTag)
	if err != nil {
		return err
	}
	if FeeChecksum(feeCT, feeIT) != b.Header.FeeChecksum {
		return ErrFeeChecksumWrong
	}
	coinbase := b.Transactions[0]
	if coinbase.Payload.AmountConsumer != b.Header.CoinbaseConsumer || coinbase.Payload.AmountIndustrial != b.Header.CoinbaseIndustrial {
		return ErrCoinbaseMismatch
	}

	// Spec.md §4.12/§8: coinbase_total_lane == base_reward_lane +
	// subsidies_lane + sum(fee_lane) exactly. The subsidy terms are taken
	// from the header (they depend on externally-measured utilization no
	// validator can independently remeasure); the base reward is
	// recomputed here rather than trusted, since the state root a miner
	// replays already includes whatever coinbase they chose.
	expectedRewardCT, expectedRewardIT := expectedBaseReward(state, coinbase.Payload.To)
	expectedCoinbaseCT := expectedRewardCT + b.Header.StorageSubCT + b.Header.ReadSubCT + b.Header.ComputeSubCT + feeCT
	expectedCoinbaseIT := expectedRewardIT + feeIT
	if b.Header.CoinbaseConsumer != expectedCoinbaseCT || b.Header.CoinbaseIndustrial != expectedCoinbaseIT {
		return ErrCoinbaseOvermint
	}

	if computeStateRoot(shadow) != b.Header.StateRoot {
		return ErrStateRootMismatch
	}
	return nil
}

// EpochInputs are the externally-measured figures an epoch-boundary retune
// needs; pass nil to ImportBlock when the block doesn't land on an epoch
// boundary (it is then ignored).
type EpochInputs struct {
	Utilization    governance.Utilization
	BacklogRatio   float64
}

// ImportBlock validates b against state, then atomically applies it:
// mutates the real account store, drops its transactions from pool,
// advances height/difficulty/base-fee/emission bookkeeping, and retunes
// governance parameters on epoch boundaries (spec.md §4.10 steps 8-10,
// §4.11, §4.12).
func ImportBlock(state *State, pool *mempool.Pool, b *Block, epoch *EpochInputs, domainTag []byte) error {
	if err := ValidateBlock(state, b, domainTag); err != nil {
		return err
	}

	real := make(map[string]*accounts.Account)
	state.Accounts.Range(func(addr string, a *accounts.Account) bool {
		real[addr] = a
		return true
	})
	feeCT, feeIT, err := applyTransactions(real, b.Transactions, domainTag)
	if err != nil {
		return err
	}
	for addr, a := range real {
		if !state.Accounts.Exists(addr) {
			state.Accounts.Put(addr, a)
		}
	}

	for _, stx := range b.Transactions[1:] {
		_ = pool.Drop(stx.Payload.From, stx.Payload.Nonce) // already-applied; ErrNotFound if never pooled
	}

	coinbase := b.Transactions[0]
	mintedCT := b.Header.CoinbaseConsumer - feeCT
	mintedIT := b.Header.CoinbaseIndustrial - feeIT
	state.EmissionConsumer += mintedCT
	state.EmissionIndustrial += mintedIT

	state.Blocks = append(state.Blocks, b)
	state.BlockHeight = b.Header.Index
	state.pushTimestamp(b.Header.TimestampMillis)
	state.pushMiner(coinbase.Payload.To)

	nextDifficulty, nextHint := consensus.RetargetDifficulty(state.Difficulty, state.RecentTimestamps, state.RetuneHint)
	state.Difficulty = nextDifficulty
	state.RetuneHint = nextHint

	state.BlockRewardConsumer = consensus.DecayReward(state.BlockRewardConsumer)
	state.BlockRewardIndustrial = consensus.DecayReward(state.BlockRewardIndustrial)

	realizedGas := uint64(len(b.Transactions) - 1)
	state.BaseFee = consensus.NextBaseFee(state.BaseFee, realizedGas, targetTxPerBlock)

	if state.BlockHeight%governance.EpochBlocks == 0 {
		inputs := EpochInputs{}
		if epoch != nil {
			inputs = *epoch
		}
		applyEpochRetune(state, inputs.Utilization, inputs.BacklogRatio)
	}

	log.Infof("imported block %d hash=%s txs=%d reorg_depth=%d", b.Header.Index, b.Hash, len(b.Transactions), state.Reorg.LastReorgDepth)
	return nil
}

// ReplaceChain performs an atomic reorg (spec.md §4.12): candidate must
// fork from forkHeight (the last block both chains share) and extend past
// the current tip. Every candidate block is validated in sequence against a
// scratch state seeded from a snapshot at forkHeight before the swap is
// committed; a single invalid block aborts the whole reorg with no partial
// mutation.
func ReplaceChain(state *State, pool *mempool.Pool, forkHeight uint64, candidate []*Block, domainTag []byte) error {
	if forkHeight > state.BlockHeight {
		return ErrWrongIndex
	}
	if uint64(len(candidate)) <= state.BlockHeight-forkHeight {
		return ErrWrongIndex // not longer than the chain it would replace
	}

	scratchAccounts := accounts.NewStore()
	for addr, a := range state.Accounts.Snapshot() {
		scratchAccounts.Put(addr, a)
	}
	scratch := &State{
		Accounts:   scratchAccounts,
		BlockHeight: forkHeight,
		Difficulty:  state.Difficulty,
		BaseFee:     state.BaseFee,
		Params:      state.Params,
	}
	if forkHeight < uint64(len(state.Blocks)) {
		scratch.Blocks = append([]*Block{}, state.Blocks[:forkHeight]...)
	}

	for _, b := range candidate {
		if err := ImportBlock(scratch, mempool.New(mempool.DefaultConfig(), scratchAccounts), b, nil, domainTag); err != nil {
			return err
		}
	}

	depth := state.BlockHeight - forkHeight
	priorReorgs := state.Reorg
	*state = *scratch
	state.Reorg = priorReorgs
	state.Reorg.recordReorg(depth)
	log.Warnf("reorg: replaced %d blocks from height %d with %d new blocks", depth, forkHeight, len(candidate))
	return nil
}

// ImportChain is the import_chain/is_valid_chain entrypoint of spec.md
// §4.12: given a full candidate chain (index 1..len(candidate)), it derives
// the fork point itself by walking both chains' block hashes forward from
// genesis to their last common ancestor, rather than trusting a
// caller-supplied height, then reorgs onto candidate only if it is valid
// and strictly longer from that point (observable as reorg_depth ==
// state.BlockHeight-LCA, per E6: a candidate sharing nothing but genesis
// reorgs the entire chain).
func ImportChain(state *State, pool *mempool.Pool, candidate []*Block, domainTag []byte) error {
	lca := uint64(0)
	for i := 0; i < len(candidate) && uint64(i) < uint64(len(state.Blocks)); i++ {
		if candidate[i].Hash != state.Blocks[i].Hash {
			break
		}
		lca = uint64(i + 1)
	}
	return ReplaceChain(state, pool, lca, candidate[lca:], domainTag)
}
