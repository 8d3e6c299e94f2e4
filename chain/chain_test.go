package chain

import (
	"crypto/ed25519"
	"testing"

	"github.com/civicledger/corechain/accounts"
	"github.com/civicledger/corechain/mempool"
	"github.com/civicledger/corechain/tx"
)

type fakeClock struct{ millis, ticks, unix int64 }

func (c fakeClock) NowMillis() int64 { return c.millis }
func (c fakeClock) NowTicks() int64  { return c.ticks }
func (c fakeClock) NowUnix() int64   { return c.unix }

var testDomainTag = []byte("corechain-test")

func newSignedTransfer(t *testing.T, from ed25519.PrivateKey, to string, amount, fee, nonce uint64) *tx.SignedTransaction {
	t.Helper()
	fromAddr := string(from.Public().(ed25519.PublicKey))
	payload := tx.Payload{From: fromAddr, To: to, AmountConsumer: amount, Fee: fee, Nonce: nonce}
	pub, sig := tx.Sign(from, testDomainTag, &payload)
	return &tx.SignedTransaction{Payload: payload, PublicKey: pub, Signature: sig, Lane: tx.LaneConsumer, Tip: 0}
}

func TestAssembleValidateImportSingleBlock(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	senderAddr := string(priv.Public().(ed25519.PublicKey))

	store := accounts.NewStore()
	store.Put(senderAddr, accounts.NewAccount(accounts.TokenBalance{Consumer: 1000}))

	state := NewGenesisState(store, 50, 1)
	state.Difficulty = 0 // trivial PoW so the test mines instantly

	cfg := mempool.DefaultConfig()
	cfg.DomainTag = testDomainTag
	cfg.BaseFee = state.BaseFee
	pool := mempool.New(cfg, store)

	stx := newSignedTransfer(t, priv, "recipient", 100, 1, 1)
	clk := fakeClock{millis: 1000, ticks: 1, unix: 1}
	if err := pool.Admit(stx, clk); err != nil {
		t.Fatalf("admit: %v", err)
	}

	block, err := AssembleBlock(pool, state, "miner-1", testDomainTag, clk, nil, nil, Utilization{}, 1<<20)
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	if len(block.Transactions) != 2 {
		t.Fatalf("expected coinbase + 1 transfer, got %d transactions", len(block.Transactions))
	}

	if err := ValidateBlock(state, block, testDomainTag); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if err := ImportBlock(state, pool, block, nil, testDomainTag); err != nil {
		t.Fatalf("import: %v", err)
	}

	if state.BlockHeight != 1 {
		t.Fatalf("expected height 1, got %d", state.BlockHeight)
	}
	sender := store.Get(senderAddr)
	if sender.Balance.Consumer != 899 {
		t.Fatalf("expected sender balance 899 after transfer+fee, got %d", sender.Balance.Consumer)
	}
	recipient := store.Get("recipient")
	if recipient == nil || recipient.Balance.Consumer != 100 {
		t.Fatalf("expected recipient to receive 100, got %+v", recipient)
	}
	miner := store.Get("miner-1")
	if miner == nil || miner.Balance.Consumer == 0 {
		t.Fatalf("expected miner to receive a coinbase credit, got %+v", miner)
	}
}

func TestValidateBlockRejectsWrongPrevHash(t *testing.T) {
	store := accounts.NewStore()
	state := NewGenesisState(store, 50, 1)
	state.Difficulty = 0

	bad := &Block{Header: Header{Index: 1, PreviousHash: [32]byte{1}}}
	bad.Hash = bad.ComputeHash()
	if err := ValidateBlock(state, bad, testDomainTag); err != ErrWrongPrevHash {
		t.Fatalf("expected ErrWrongPrevHash, got %v", err)
	}
}
