package snapshot

import (
	"testing"

	"github.com/civicledger/corechain/accounts"
	"github.com/civicledger/corechain/chain"
)

func TestWriteFullLoadLatestRoundTrip(t *testing.T) {
	store := accounts.NewStore()
	store.Put("alice", accounts.NewAccount(accounts.TokenBalance{Consumer: 500, Industrial: 10}))
	store.Put("bob", accounts.NewAccount(accounts.TokenBalance{Consumer: 25}))

	state := chain.NewGenesisState(store, 50, 1)

	e, err := Open(t.TempDir(), 1)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer e.Close()

	if err := e.WriteFull(state); err != nil {
		t.Fatalf("write full: %v", err)
	}

	restored := accounts.NewStore()
	height, err := e.LoadLatest(restored)
	if err != nil {
		t.Fatalf("load latest: %v", err)
	}
	if height != 0 {
		t.Fatalf("expected restored height 0, got %d", height)
	}
	alice := restored.Get("alice")
	if alice == nil || alice.Balance.Consumer != 500 || alice.Balance.Industrial != 10 {
		t.Fatalf("alice not restored correctly: %+v", alice)
	}
	bob := restored.Get("bob")
	if bob == nil || bob.Balance.Consumer != 25 {
		t.Fatalf("bob not restored correctly: %+v", bob)
	}
}

func TestEncodeDecodeBlockRoundTrip(t *testing.T) {
	b := &chain.Block{
		Header: chain.Header{
			Index:              1,
			TimestampMillis:    1234,
			Difficulty:         5,
			CoinbaseConsumer:   49,
			CoinbaseIndustrial: 48,
		},
	}
	b.Hash = b.ComputeHash()

	raw := encodeBlock(b)
	got, err := decodeBlock(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Header.Index != b.Header.Index || got.Header.CoinbaseConsumer != b.Header.CoinbaseConsumer {
		t.Fatalf("round trip mismatch: %+v vs %+v", got.Header, b.Header)
	}
	if got.Hash != b.Hash {
		t.Fatalf("hash mismatch after round trip")
	}
}
