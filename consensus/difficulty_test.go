package consensus

import "testing"

func TestRetargetGenesisOnEmptyWindow(t *testing.T) {
	d, hint := RetargetDifficulty(10, nil, 0)
	if d != GenesisDifficulty || hint != 0 {
		t.Fatalf("expected genesis difficulty on empty window, got (%d,%d)", d, hint)
	}
}

func TestRetargetClampsWithinHalveDouble(t *testing.T) {
	// Blocks arriving far faster than target should not jump past 2x.
	fast := []int64{0, 10, 20, 30, 40}
	d, _ := RetargetDifficulty(10, fast, 0)
	if d > 20 {
		t.Fatalf("expected clamp to <= 2x difficulty, got %d", d)
	}
}

func TestCapRewardAtCeiling(t *testing.T) {
	if got := CapReward(100, 950, 1000); got != 50 {
		t.Fatalf("expected capped reward 50, got %d", got)
	}
	if got := CapReward(100, 1000, 1000); got != 0 {
		t.Fatalf("expected 0 reward at ceiling, got %d", got)
	}
}

func TestNextBaseFeeFloorsAtOne(t *testing.T) {
	got := NextBaseFee(1, 0, 1000)
	if got != 1 {
		t.Fatalf("expected base fee floored at 1, got %d", got)
	}
}

func TestEffectiveMinerCountFloorsAtOne(t *testing.T) {
	if got := EffectiveMinerCount(nil); got != 1 {
		t.Fatalf("expected floor of 1 for empty miner list, got %f", got)
	}
	diverse := []string{"aaa", "bbb", "ccc", "ddd"}
	if got := EffectiveMinerCount(diverse); got < 1 {
		t.Fatalf("expected effective count >= 1, got %f", got)
	}
}
