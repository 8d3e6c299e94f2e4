// Package fees implements the fee decomposer of spec.md §4.2, ported
// byte-for-byte from the Rust original at
// _examples/original_source/src/fee/mod.rs: a raw fee is routed to the
// consumer and industrial lanes according to a one-byte selector.
package fees

import "fmt"

// MaxFee is the largest fee admission will accept, (1<<63)-1, matching the
// original's MAX_FEE constant.
const MaxFee uint64 = (uint64(1) << 63) - 1

// ErrInvalidSelector is returned for any selector outside {0, 1, 2}.
type ErrInvalidSelector struct{ Selector uint8 }

func (e ErrInvalidSelector) Error() string {
	return fmt.Sprintf("invalid selector %d", e.Selector)
}

// ErrOverflow is returned when fee exceeds MaxFee.
type ErrOverflow struct{ Fee uint64 }

func (e ErrOverflow) Error() string { return "fee overflow" }

// Decompose splits a raw fee into (consumer, industrial) components per
// selector:
//
//	0 -> (fee, 0)
//	1 -> (0, fee)
//	2 -> (ceil(fee/2), floor(fee/2))
//	other -> ErrInvalidSelector
//
// fee > MaxFee always fails with ErrOverflow, checked before the selector
// switch (matching the original's ordering).
func Decompose(selector uint8, fee uint64) (consumer uint64, industrial uint64, err error) {
	if fee > MaxFee {
		return 0, 0, ErrOverflow{Fee: fee}
	}
	switch selector {
	case 0:
		return fee, 0, nil
	case 1:
		return 0, fee, nil
	case 2:
		// fee <= MaxFee == 2^63-1, so fee+1 <= 2^63 still fits in uint64.
		ct := (fee + 1) / 2
		it := fee / 2
		return ct, it, nil
	default:
		return 0, 0, ErrInvalidSelector{Selector: selector}
	}
}
