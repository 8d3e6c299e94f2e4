// Package governance implements the epoch-aligned parameter retuning of
// spec.md §4.11: subsidy coefficients, the industrial multiplier, and the
// rolling one-year inflation computation. Grounded on the network-wide
// tunable-parameter-struct pattern of daglabs-btcd/dagconfig.
package governance

import "github.com/civicledger/corechain/consensus"

// EpochBlocks is the fixed epoch length, carried from
// _examples/original_source/node/src/lib.rs's EPOCH_BLOCKS constant per
// SPEC_FULL.md §C.
const EpochBlocks uint64 = 120

// EpochsPerYear derives from EpochBlocks assuming one-second blocks, also
// carried from the original's EPOCHS_PER_YEAR derivation.
const EpochsPerYear uint64 = 365 * 24 * 60 * 60 / EpochBlocks

// SubsidyCoefficients are the integer (beta, gamma, kappa, lambda)
// coefficients of spec.md's params_raw.
type SubsidyCoefficients struct {
	Beta, Gamma, Kappa, Lambda uint64
}

// Params bundles every governance-controlled, epoch-retunable knob.
type Params struct {
	Subsidy              SubsidyCoefficients
	IndustrialMultiplier float64
	Logistic             consensus.LogisticParams

	// Per-token supply ceilings (spec.md §4.9 "cap rewards so cumulative
	// emission does not exceed per-token supply ceilings"). Zero means
	// uncapped.
	SupplyCeilingConsumer   uint64
	SupplyCeilingIndustrial uint64
}

// DefaultParams returns the Open-Question defaults recorded in DESIGN.md.
func DefaultParams() Params {
	return Params{
		Subsidy:              SubsidyCoefficients{Beta: 1, Gamma: 1, Kappa: 1, Lambda: 1},
		IndustrialMultiplier: 1.0,
		Logistic: consensus.LogisticParams{
			SlopeMilli: 500,
			NStar:      12,
			Hysteresis: 0.5,
			LockBlocks: 30,
		},
		SupplyCeilingConsumer:   0,
		SupplyCeilingIndustrial: 0,
	}
}

// Utilization is the per-epoch resource usage bundle of spec.md §4.11.
type Utilization struct {
	BytesStored uint64
	BytesRead   uint64
	CPUMillis   uint64
	BytesOut    uint64
	EpochSecs   uint64
}

// RollingInflation computes (emission_now - emission_year_ago) /
// emission_year_ago, per spec.md §4.11. Returns 0 if emissionYearAgo is 0
// (no prior-year baseline yet).
func RollingInflation(emissionNow, emissionYearAgo uint64) float64 {
	if emissionYearAgo == 0 {
		return 0
	}
	return float64(emissionNow-emissionYearAgo) / float64(emissionYearAgo)
}

// Retune computes the next subsidy coefficients from the current ones and
// this epoch's utilization plus rolling inflation. Rolling inflation above
// 10% tightens (lowers) every coefficient; otherwise below-target
// utilization relaxes (raises) them toward more generous subsidies, and
// at-or-above-target utilization leaves them unchanged. Each move is a
// fixed 10% per-epoch step, to avoid
// destabilizing oscillation — the bound §9 leaves governance-tunable but
// which every implementation must still apply deterministically.
func Retune(current SubsidyCoefficients, util Utilization, rollingInflation float64, targetUtilPerSec uint64) SubsidyCoefficients {
	rate := util.BytesStored + util.BytesRead + util.CPUMillis + util.BytesOut
	perSec := uint64(0)
	if util.EpochSecs > 0 {
		perSec = rate / util.EpochSecs
	}

	adjust := func(v uint64) uint64 {
		if rollingInflation > 0.1 {
			// Inflation running hot: tighten by up to 10%.
			return v - v/10
		}
		if targetUtilPerSec > 0 && perSec < targetUtilPerSec {
			// Under-utilized: relax by up to 10% to encourage more supply.
			return v + v/10
		}
		return v
	}

	next := SubsidyCoefficients{
		Beta:   max1u(adjust(current.Beta)),
		Gamma:  max1u(adjust(current.Gamma)),
		Kappa:  max1u(adjust(current.Kappa)),
		Lambda: max1u(adjust(current.Lambda)),
	}
	return next
}

// RetuneIndustrialMultiplier recomputes the industrial-lane multiplier from
// compute-market backlog (spec.md §4.11). backlogRatio is
// pending-jobs/capacity, supplied by the (external, out-of-scope) compute
// scheduler. Epoch utilization is not an input: only the backlog ratio
// moves the multiplier.
func RetuneIndustrialMultiplier(current float64, backlogRatio float64) float64 {
	switch {
	case backlogRatio > 1.5:
		return current * 1.1
	case backlogRatio < 0.5:
		return current * 0.9
	default:
		return current
	}
}

func max1u(v uint64) uint64 {
	if v == 0 {
		return 1
	}
	return v
}
