package chain

import (
	"github.com/civicledger/corechain/accounts"
	"github.com/civicledger/corechain/consensus"
	"github.com/civicledger/corechain/governance"
	"github.com/civicledger/corechain/hashing"
	"github.com/civicledger/corechain/logger"
)

var log = logger.NewSubsystem("CHAN")

// epochHistoryLen bounds the ring of per-epoch emission snapshots kept for
// the rolling one-year inflation computation: exactly one year's worth of
// epochs, so the lookback in emissionOneYearAgo always has data once the
// chain has run that long.
var epochHistoryLen = int(governance.EpochsPerYear) + 1

// State is the ChainState of spec.md §3: the accepted block history, the
// live account store, emission/reward bookkeeping, and every governance
// knob the block assembler and validator consult.
type State struct {
	Blocks  []*Block
	Accounts *accounts.Store

	EmissionConsumer   uint64
	EmissionIndustrial uint64

	// emissionHistory holds one (consumerEmission, industrialEmission) pair
	// per completed epoch, oldest first, capped at epochHistoryLen, feeding
	// governance.RollingInflation at each epoch boundary.
	emissionHistory []emissionSnapshot

	BlockRewardConsumer   uint64
	BlockRewardIndustrial uint64

	BlockHeight uint64
	Difficulty  uint64
	RetuneHint  int64

	RecentTimestamps []int64
	RecentMiners     []string

	BaseFee uint64

	Params       governance.Params
	Logistic     consensus.LogisticState
	EpochCounter uint64

	Reorg ReorgTracker
}

type emissionSnapshot struct {
	Consumer, Industrial uint64
}

// NewGenesisState returns a fresh chain state seeded with genesis difficulty
// and default governance parameters, backed by store.
func NewGenesisState(store *accounts.Store, initialReward uint64, baseFee uint64) *State {
	return &State{
		Accounts:              store,
		BlockRewardConsumer:   initialReward,
		BlockRewardIndustrial: initialReward,
		Difficulty:            consensus.GenesisDifficulty,
		BaseFee:               baseFee,
		Params:                governance.DefaultParams(),
	}
}

// Tip returns the most recently accepted block, or nil before genesis.
func (s *State) Tip() *Block {
	if len(s.Blocks) == 0 {
		return nil
	}
	return s.Blocks[len(s.Blocks)-1]
}

// TipHash returns the tip's hash, or the zero hash before genesis.
func (s *State) TipHash() hashing.Hash {
	if t := s.Tip(); t != nil {
		return t.Hash
	}
	return hashing.Hash{}
}

// pushTimestamp appends ts to the bounded retarget window.
func (s *State) pushTimestamp(ts int64) {
	s.RecentTimestamps = append(s.RecentTimestamps, ts)
	if len(s.RecentTimestamps) > consensus.DifficultyWindow {
		s.RecentTimestamps = s.RecentTimestamps[len(s.RecentTimestamps)-consensus.DifficultyWindow:]
	}
}

// pushMiner appends miner to the bounded recent-miner deque.
func (s *State) pushMiner(miner string) {
	s.RecentMiners = append(s.RecentMiners, miner)
	if len(s.RecentMiners) > consensus.RecentMinerWindow {
		s.RecentMiners = s.RecentMiners[len(s.RecentMiners)-consensus.RecentMinerWindow:]
	}
}

// pushEmissionSnapshot records the cumulative emission at an epoch boundary.
func (s *State) pushEmissionSnapshot() {
	s.emissionHistory = append(s.emissionHistory, emissionSnapshot{s.EmissionConsumer, s.EmissionIndustrial})
	if len(s.emissionHistory) > epochHistoryLen {
		s.emissionHistory = s.emissionHistory[len(s.emissionHistory)-epochHistoryLen:]
	}
}

// emissionOneYearAgo returns the emission snapshot governance.EpochsPerYear
// epochs back, or the zero snapshot if history doesn't reach that far yet
// (RollingInflation treats a zero baseline as "no data", yielding 0).
func (s *State) emissionOneYearAgo() emissionSnapshot {
	idx := len(s.emissionHistory) - int(governance.EpochsPerYear)
	if idx < 0 || idx >= len(s.emissionHistory) {
		return emissionSnapshot{}
	}
	return s.emissionHistory[idx]
}
