// Package readack implements the read-ack batcher of spec.md §4.16: nodes
// that serve a data-availability read return a signed acknowledgement, and
// this package accumulates those acknowledgements over an epoch into a
// single Merkle root a block header can carry as its read_root field.
// Grounded on hashing.MerkleRoot, reused rather than re-implemented, and on
// the batch-then-commit shape of mempool.Pool's own per-lane bookkeeping.
package readack

import (
	"crypto/ed25519"
	"sync"

	"github.com/civicledger/corechain/hashing"
	"github.com/civicledger/corechain/logger"
)

var log = logger.NewSubsystem("RACK")

// Ack is a single signed read acknowledgement: a reader (or the serving
// node, depending on the deployment's trust model) attests it observed
// bytesServed bytes of content at contentID.
type Ack struct {
	ContentID   hashing.Hash
	Server      string
	BytesServed uint64
	TimestampMillis int64
	PublicKey   []byte
	Signature   []byte
}

// CanonicalBytes is the fixed-order encoding the signature covers.
func (a *Ack) CanonicalBytes() []byte {
	e := hashing.NewEncoder(96 + len(a.Server))
	e.Hash(a.ContentID)
	e.String(a.Server)
	e.U64(a.BytesServed)
	e.I64(a.TimestampMillis)
	return e.Finish()
}

// Verify checks the Ed25519 signature over domainTag||CanonicalBytes().
func (a *Ack) Verify(domainTag []byte) bool {
	if len(a.PublicKey) != ed25519.PublicKeySize || len(a.Signature) != ed25519.SignatureSize {
		return false
	}
	msg := append(append([]byte{}, domainTag...), a.CanonicalBytes()...)
	return ed25519.Verify(a.PublicKey, msg, a.Signature)
}

// ID is the ack's own content-addressed identity, used as its Merkle leaf
// input alongside the content it attests to.
func (a *Ack) ID() hashing.Hash {
	return hashing.Sum256(a.CanonicalBytes())
}

// Batcher accumulates verified acks for the current epoch and folds them
// into a Merkle root on demand.
type Batcher struct {
	mu   sync.Mutex
	acks []*Ack

	// bytesByServer totals bytes_served per server this epoch, the input
	// to the compute-subsidy bytes_out term (spec.md §4.9).
	bytesByServer map[string]uint64
}

// New returns an empty Batcher.
func New() *Batcher {
	return &Batcher{bytesByServer: make(map[string]uint64)}
}

// Add verifies and records ack, rejecting unsigned or malformed entries.
func (b *Batcher) Add(ack *Ack, domainTag []byte) error {
	if !ack.Verify(domainTag) {
		return ErrBadSignature
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.acks = append(b.acks, ack)
	b.bytesByServer[ack.Server] += ack.BytesServed
	return nil
}

// Len returns the number of acks accumulated so far this epoch.
func (b *Batcher) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.acks)
}

// BytesServed returns the total bytes_served attributed to server this
// epoch.
func (b *Batcher) BytesServed(server string) uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bytesByServer[server]
}

// TotalBytesOut sums bytes_served across every server this epoch, feeding
// the block assembler's Utilization.BytesOut.
func (b *Batcher) TotalBytesOut() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	var total uint64
	for _, n := range b.bytesByServer {
		total += n
	}
	return total
}

// Root folds every accumulated ack into a single Merkle root, in insertion
// order, without clearing the batch — callers call Reset once the root has
// been committed into a block header.
func (b *Batcher) Root() hashing.Hash {
	b.mu.Lock()
	defer b.mu.Unlock()
	leaves := make([]hashing.Hash, len(b.acks))
	for i, a := range b.acks {
		leaves[i] = a.ID()
	}
	return hashing.MerkleRoot(leaves)
}

// Reset clears the batch for the next epoch.
func (b *Batcher) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.acks = nil
	b.bytesByServer = make(map[string]uint64)
	log.Debugf("read-ack batch reset for next epoch")
}
