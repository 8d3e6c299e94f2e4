package rpc

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"testing"

	"github.com/civicledger/corechain/accounts"
	"github.com/civicledger/corechain/chain"
	"github.com/civicledger/corechain/mempool"
	"github.com/civicledger/corechain/readack"
)

func TestHandleSubmitReadAckAcceptsValidSignature(t *testing.T) {
	s := &Server{Acks: readack.New()}

	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generate key: %s", err)
	}
	ack := &readack.Ack{
		Server:          "node-1",
		BytesServed:     4096,
		TimestampMillis: 1000,
	}
	msg := ack.CanonicalBytes()
	ack.PublicKey = pub
	ack.Signature = ed25519.Sign(priv, msg)

	params, _ := json.Marshal(submitReadAckParams{
		ContentID:       hex.EncodeToString(ack.ContentID[:]),
		Server:          ack.Server,
		BytesServed:     ack.BytesServed,
		TimestampMillis: ack.TimestampMillis,
		PublicKey:       ack.PublicKey,
		Signature:       ack.Signature,
	})

	_, rpcErr := handleSubmitReadAck(context.Background(), s, params)
	if rpcErr != nil {
		t.Fatalf("unexpected error: %+v", rpcErr)
	}
	if got := s.Acks.Len(); got != 1 {
		t.Fatalf("expected 1 accumulated ack, got %d", got)
	}
	if got := s.Acks.TotalBytesOut(); got != 4096 {
		t.Fatalf("expected 4096 total bytes out, got %d", got)
	}
}

func TestHandleSubmitReadAckRejectsBadSignature(t *testing.T) {
	s := &Server{Acks: readack.New()}
	params, _ := json.Marshal(submitReadAckParams{
		ContentID:   hex.EncodeToString(make([]byte, 32)),
		Server:      "node-1",
		BytesServed: 10,
		PublicKey:   make([]byte, ed25519.PublicKeySize),
		Signature:   make([]byte, ed25519.SignatureSize),
	})

	_, rpcErr := handleSubmitReadAck(context.Background(), s, params)
	if rpcErr == nil {
		t.Fatalf("expected signature verification failure")
	}
}

func TestHandleMetricsIncludesReadAckStats(t *testing.T) {
	store := accounts.NewStore()
	state := chain.NewGenesisState(store, 50, mempool.DefaultConfig().BaseFee)
	pool := mempool.New(mempool.DefaultConfig(), store)
	acks := readack.New()
	s := &Server{State: state, Pool: pool, Acks: acks}
	result, rpcErr := handleMetrics(context.Background(), s, nil)
	if rpcErr != nil {
		t.Fatalf("unexpected error: %+v", rpcErr)
	}
	m, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("expected map result")
	}
	if _, ok := m["read_ack_count"]; !ok {
		t.Fatalf("expected read_ack_count in metrics")
	}
}
