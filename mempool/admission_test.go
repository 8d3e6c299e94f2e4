package mempool

import (
	"crypto/ed25519"
	"testing"

	"github.com/civicledger/corechain/accounts"
	"github.com/civicledger/corechain/tx"
)

// fakeClock lets tests freeze admission time, per spec.md §8.
type fakeClock struct {
	millis int64
	ticks  int64
	unix   int64
}

func (c *fakeClock) NowMillis() int64 { return c.millis }
func (c *fakeClock) NowTicks() int64  { return c.ticks }
func (c *fakeClock) NowUnix() int64   { return c.unix }

func newSignedTx(t *testing.T, priv ed25519.PrivateKey, from, to string, amountCT, fee, tip, nonce uint64, lane tx.Lane) *tx.SignedTransaction {
	t.Helper()
	payload := tx.Payload{From: from, To: to, AmountConsumer: amountCT, Fee: fee, Nonce: nonce}
	pub, sig := tx.Sign(priv, []byte("test-domain"), &payload)
	return &tx.SignedTransaction{Payload: payload, PublicKey: pub, Signature: sig, Lane: lane, Tip: tip}
}

func newTestPool(t *testing.T) (*Pool, *accounts.Store, ed25519.PrivateKey) {
	t.Helper()
	store := accounts.NewStore()
	cfg := DefaultConfig()
	cfg.DomainTag = []byte("test-domain")
	cfg.BaseFee = 0
	p := New(cfg, store)
	_, priv, _ := ed25519.GenerateKey(nil)
	return p, store, priv
}

func TestAdmitSingleSenderChain(t *testing.T) {
	p, store, priv := newTestPool(t)
	addr := "A"
	store.Put(addr, accounts.NewAccount(accounts.TokenBalance{Consumer: 1_000_000}))

	stx := newSignedTx(t, priv, addr, "B", 100, 10, 10, 1, tx.LaneConsumer)

	clk := &fakeClock{millis: 1000, ticks: 1, unix: 1}
	if err := p.Admit(stx, clk); err != nil {
		t.Fatalf("expected admission, got %v", err)
	}
	if p.Len(tx.LaneConsumer) != 1 {
		t.Fatalf("expected 1 entry in consumer lane, got %d", p.Len(tx.LaneConsumer))
	}
}

func TestAdmitDuplicateRejected(t *testing.T) {
	p, store, priv := newTestPool(t)
	store.Put("A", accounts.NewAccount(accounts.TokenBalance{Consumer: 1_000_000}))
	stx := newSignedTx(t, priv, "A", "B", 100, 10, 10, 1, tx.LaneConsumer)
	clk := &fakeClock{millis: 1000}

	if err := p.Admit(stx, clk); err != nil {
		t.Fatalf("first admit: %v", err)
	}
	stx2 := newSignedTx(t, priv, "A", "B", 100, 10, 10, 1, tx.LaneConsumer)
	err := p.Admit(stx2, clk)
	if ae, ok := err.(AdmissionError); !ok || ae.Code != CodeDuplicate {
		t.Fatalf("expected Duplicate, got %v", err)
	}
}

func TestAdmitNonceGap(t *testing.T) {
	p, store, priv := newTestPool(t)
	store.Put("A", accounts.NewAccount(accounts.TokenBalance{Consumer: 1_000_000}))
	clk := &fakeClock{millis: 1000}

	stxGap := newSignedTx(t, priv, "A", "B", 10, 10, 10, 2, tx.LaneConsumer)
	err := p.Admit(stxGap, clk)
	if ae, ok := err.(AdmissionError); !ok || ae.Code != CodeNonceGap {
		t.Fatalf("expected NonceGap, got %v", err)
	}

	stx1 := newSignedTx(t, priv, "A", "B", 10, 10, 10, 1, tx.LaneConsumer)
	if err := p.Admit(stx1, clk); err != nil {
		t.Fatalf("expected nonce 1 admitted, got %v", err)
	}
	stx2 := newSignedTx(t, priv, "A", "B", 10, 10, 10, 2, tx.LaneConsumer)
	if err := p.Admit(stx2, clk); err != nil {
		t.Fatalf("expected nonce 2 admitted after 1, got %v", err)
	}
}

func TestPurgeExpiredIdempotentUnderFrozenClock(t *testing.T) {
	p, store, priv := newTestPool(t)
	store.Put("A", accounts.NewAccount(accounts.TokenBalance{Consumer: 1_000_000}))
	clk := &fakeClock{millis: 0}
	stx := newSignedTx(t, priv, "A", "B", 10, 10, 10, 1, tx.LaneConsumer)
	if err := p.Admit(stx, clk); err != nil {
		t.Fatalf("admit: %v", err)
	}
	p.cfg.TTLSeconds = 1

	// now - ts == ttl_ms exactly: not yet expired.
	if n := p.PurgeExpired(1000); n != 0 {
		t.Fatalf("expected 0 expired at exact boundary, got %d", n)
	}
	// now - ts > ttl_ms: expired.
	if n := p.PurgeExpired(1001); n != 1 {
		t.Fatalf("expected 1 expired past boundary, got %d", n)
	}
	// idempotent: calling again finds nothing left to expire.
	if n := p.PurgeExpired(1001); n != 0 {
		t.Fatalf("expected purge to be idempotent, got %d", n)
	}
}
