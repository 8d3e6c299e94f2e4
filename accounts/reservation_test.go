package accounts

import "testing"

func TestReservationRollbackLeavesAccountUnchanged(t *testing.T) {
	a := NewAccount(TokenBalance{Consumer: 1000, Industrial: 0})
	before := *a

	func() {
		r := Reserve(a, 1, 100, 0)
		defer r.Rollback()
		// simulate an early return / panic-recovery path: never Commit.
	}()

	if a.PendingConsumer != before.PendingConsumer || a.PendingNonce != before.PendingNonce {
		t.Fatalf("account mutated after rollback: %+v vs %+v", a, before)
	}
	if !a.CheckInvariants() {
		t.Fatal("invariants violated after rollback")
	}
}

func TestReservationCommitPersists(t *testing.T) {
	a := NewAccount(TokenBalance{Consumer: 1000, Industrial: 0})
	r := Reserve(a, 1, 100, 0)
	r.Commit()
	r.Rollback() // must be a no-op now

	if a.PendingConsumer != 100 || a.PendingNonce != 1 {
		t.Fatalf("commit did not persist: %+v", a)
	}
	if !a.CheckInvariants() {
		t.Fatal("invariants violated after commit")
	}
}

func TestAccountInvariantsContiguousNonces(t *testing.T) {
	a := NewAccount(TokenBalance{Consumer: 1000})
	r1 := Reserve(a, 1, 10, 0)
	r1.Commit()
	r2 := Reserve(a, 2, 10, 0)
	r2.Commit()
	if !a.CheckInvariants() {
		t.Fatal("expected contiguous pending nonces to satisfy invariants")
	}
}
