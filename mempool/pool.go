package mempool

import (
	"sync"

	"github.com/civicledger/corechain/accounts"
	"github.com/civicledger/corechain/hashing"
	"github.com/civicledger/corechain/logger"
	"github.com/civicledger/corechain/tx"
)

var log = logger.NewSubsystem("MEMP")

// Config holds the per-lane and global tunables of spec.md §6.4.
type Config struct {
	CapacityConsumer       int
	CapacityIndustrial     int
	MinFeePerByteConsumer  float64
	MinFeePerByteIndustrial float64
	TTLSeconds             int64
	MaxPendingPerAccount   uint64
	ComfortThresholdP90    float64
	BaseFee                uint64
	DomainTag              []byte
}

// DefaultConfig matches the defaults implied by spec.md §6.4's recognized
// environment inputs.
func DefaultConfig() Config {
	return Config{
		CapacityConsumer:        5000,
		CapacityIndustrial:      5000,
		MinFeePerByteConsumer:   0,
		MinFeePerByteIndustrial: 0,
		TTLSeconds:              3600,
		MaxPendingPerAccount:    64,
		ComfortThresholdP90:     0,
		BaseFee:                 1,
	}
}

// lane is one of the two mempool lanes, each a (sender,nonce)-keyed map.
type lane struct {
	entries map[Key]*Entry
}

func newLane() *lane { return &lane{entries: make(map[Key]*Entry)} }

// Pool is the two-lane mempool of spec.md §4.4, guarded by the pool-wide
// mempool lock (spec.md §5 lock hierarchy level 1). Per-sender reservation
// mutations additionally take accounts.Store's per-sender lock (level 2)
// while this lock is held.
type Pool struct {
	mu sync.Mutex

	cfg    Config
	lanes  [2]*lane // indexed by tx.Lane
	store  *accounts.Store

	pendingMultisig map[hashing.Hash]*pendingMultisigEntry

	orphanCount int

	// observedConsumerFees feeds the comfort gate's p90 computation
	// (spec.md §4.5 step 15); kept as a bounded ring of recent
	// consumer-lane fee-per-byte observations.
	observedConsumerFees []float64
}

type pendingMultisigEntry struct {
	tx        *tx.SignedTransaction
	createdAt int64
}

// New returns an empty Pool backed by store.
func New(cfg Config, store *accounts.Store) *Pool {
	return &Pool{
		cfg:             cfg,
		lanes:           [2]*lane{newLane(), newLane()},
		store:           store,
		pendingMultisig: make(map[hashing.Hash]*pendingMultisigEntry),
	}
}

// Len returns the number of entries in lane l.
func (p *Pool) Len(l tx.Lane) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.lanes[l].entries)
}

// Size returns the total number of entries across both lanes.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.lanes[tx.LaneConsumer].entries) + len(p.lanes[tx.LaneIndustrial].entries)
}

// ComfortStatus reports the comfort gate's live state (spec.md §4.5 step
// 15, the mempool.qos_event RPC): the observed consumer-lane p90 fee/byte,
// the configured threshold, and whether industrial admissions are
// currently being blocked by it.
func (p *Pool) ComfortStatus() (observedP90, threshold float64, gated bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	observedP90 = percentile90(p.observedConsumerFees)
	threshold = p.cfg.ComfortThresholdP90
	gated = threshold > 0 && observedP90 > threshold
	return observedP90, threshold, gated
}

// capacity returns the configured capacity of lane l.
func (p *Pool) capacity(l tx.Lane) int {
	if l == tx.LaneIndustrial {
		return p.cfg.CapacityIndustrial
	}
	return p.cfg.CapacityConsumer
}

func (p *Pool) minFeePerByte(l tx.Lane) float64 {
	if l == tx.LaneIndustrial {
		return p.cfg.MinFeePerByteIndustrial
	}
	return p.cfg.MinFeePerByteConsumer
}

// Snapshot returns a priority-ordered (best-to-keep last) copy of every
// entry across both lanes, for the block assembler (spec.md §4.10 step 1).
func (p *Pool) Snapshot() []*Entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]*Entry, 0, len(p.lanes[0].entries)+len(p.lanes[1].entries))
	for _, l := range p.lanes {
		for _, e := range l.entries {
			out = append(out, e)
		}
	}
	sortByEvictionOrder(out, p.cfg.TTLSeconds)
	return out
}

// Capacity returns the configured (consumer, industrial) lane capacities,
// for the block assembler's dynamic per-block transaction cap.
func (p *Pool) Capacity() (consumer, industrial int) {
	return p.cfg.CapacityConsumer, p.cfg.CapacityIndustrial
}

// Get returns the entry keyed by (sender,nonce) in lane l, or nil.
func (p *Pool) Get(l tx.Lane, key Key) *Entry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lanes[l].entries[key]
}
