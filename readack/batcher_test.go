package readack

import (
	"crypto/ed25519"
	"testing"
)

var testDomain = []byte("readack-test")

func sign(t *testing.T, priv ed25519.PrivateKey, a *Ack) {
	t.Helper()
	a.PublicKey = []byte(priv.Public().(ed25519.PublicKey))
	msg := append(append([]byte{}, testDomain...), a.CanonicalBytes()...)
	a.Signature = ed25519.Sign(priv, msg)
}

func TestBatcherAddAndRoot(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	b := New()

	a1 := &Ack{Server: "node-a", BytesServed: 100, TimestampMillis: 1}
	sign(t, priv, a1)
	a2 := &Ack{Server: "node-a", BytesServed: 50, TimestampMillis: 2}
	sign(t, priv, a2)

	if err := b.Add(a1, testDomain); err != nil {
		t.Fatalf("add a1: %v", err)
	}
	if err := b.Add(a2, testDomain); err != nil {
		t.Fatalf("add a2: %v", err)
	}

	if b.Len() != 2 {
		t.Fatalf("expected 2 acks, got %d", b.Len())
	}
	if got := b.BytesServed("node-a"); got != 150 {
		t.Fatalf("expected 150 bytes served, got %d", got)
	}
	if b.Root().IsZero() {
		t.Fatalf("expected non-zero root with acks present")
	}

	b.Reset()
	if b.Len() != 0 {
		t.Fatalf("expected empty batch after reset")
	}
	if !b.Root().IsZero() {
		t.Fatalf("expected zero root after reset")
	}
}

func TestBatcherRejectsBadSignature(t *testing.T) {
	_, priv, _ := ed25519.GenerateKey(nil)
	b := New()
	a := &Ack{Server: "node-a", BytesServed: 1}
	sign(t, priv, a)
	a.BytesServed = 999 // mutate after signing

	if err := b.Add(a, testDomain); err != ErrBadSignature {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}
