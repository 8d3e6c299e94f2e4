package fees

import "testing"

func TestDecomposeSelectors(t *testing.T) {
	cases := []struct {
		selector       uint8
		fee            uint64
		wantCT, wantIT uint64
	}{
		{0, 1000, 1000, 0},
		{1, 1000, 0, 1000},
		{2, 1, 1, 0},
		{2, 2, 1, 1},
		{2, 0, 0, 0},
		{0, MaxFee, MaxFee, 0},
	}
	for _, c := range cases {
		ct, it, err := Decompose(c.selector, c.fee)
		if err != nil {
			t.Fatalf("Decompose(%d,%d) unexpected error: %v", c.selector, c.fee, err)
		}
		if ct != c.wantCT || it != c.wantIT {
			t.Errorf("Decompose(%d,%d) = (%d,%d), want (%d,%d)", c.selector, c.fee, ct, it, c.wantCT, c.wantIT)
		}
		if ct+it != c.fee {
			t.Errorf("Decompose(%d,%d): ct+it=%d != fee", c.selector, c.fee, ct+it)
		}
	}
}

func TestDecomposeOverflow(t *testing.T) {
	if _, _, err := Decompose(0, MaxFee+1); err == nil {
		t.Fatal("expected overflow error")
	}
}

func TestDecomposeInvalidSelector(t *testing.T) {
	if _, _, err := Decompose(3, 100); err == nil {
		t.Fatal("expected invalid selector error")
	}
}
