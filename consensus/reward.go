package consensus

import "math"

// RecentMinerWindow bounds the deque of recent miner addresses fed into the
// effective-miner-count blend. Fixed at 120 to match
// _examples/original_source/node/src/lib.rs's RECENT_MINER_WINDOW, carried
// forward per SPEC_FULL.md §C.
const RecentMinerWindow = 120

// decayNumerator/decayDenominator implement the "multiplicative decay
// (numerator/denominator constants < 1)" of spec.md §4.9, applied to both
// base rewards every block.
const (
	decayNumerator   = 999999
	decayDenominator = 1000000
)

// DecayReward applies one block's multiplicative decay to a reward amount.
func DecayReward(reward uint64) uint64 {
	return reward * decayNumerator / decayDenominator
}

// entropyAlphas are the three Rényi-entropy blend weights of spec.md §4.9
// ("three alphas (weights exp(-α) normalized)").
var entropyAlphas = [3]float64{0.5, 1.0, 2.0}

// EffectiveMinerCount computes the Rényi-style entropy-blended, Sybil-damped
// effective count of distinct recent miners, per spec.md §4.9: addresses
// sharing a long common prefix (length/24) are down-weighted by similarity,
// then a weighted Rényi entropy over three alphas is blended (weights
// exp(-alpha), normalized) and exponentiated back to a count, floored at 1.
func EffectiveMinerCount(recentMiners []string) float64 {
	n := len(recentMiners)
	if n == 0 {
		return 1
	}

	// similarity-weighted vote: weight of miner i is 1 minus the average
	// normalized longest-common-prefix length (in bytes) it shares with
	// every other entry, dampening Sybil addresses that cluster on a
	// shared prefix.
	weights := make([]float64, n)
	for i := 0; i < n; i++ {
		var simSum float64
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			simSum += float64(commonPrefixLen(recentMiners[i], recentMiners[j])) / 24.0
		}
		avgSim := 0.0
		if n > 1 {
			avgSim = simSum / float64(n-1)
		}
		w := 1.0 - avgSim
		if w < 0.01 {
			w = 0.01
		}
		weights[i] = w
	}

	// Normalize weights into a probability distribution over distinct
	// addresses (summing duplicate-weight mass per address).
	probByAddr := make(map[string]float64)
	var total float64
	for i, addr := range recentMiners {
		probByAddr[addr] += weights[i]
		total += weights[i]
	}
	if total == 0 {
		return 1
	}
	for k := range probByAddr {
		probByAddr[k] /= total
	}

	// Blend Rényi entropy over the three alphas, weights exp(-alpha)
	// normalized.
	var alphaWeightSum float64
	alphaWeights := make([]float64, len(entropyAlphas))
	for i, a := range entropyAlphas {
		alphaWeights[i] = math.Exp(-a)
		alphaWeightSum += alphaWeights[i]
	}

	var blended float64
	for i, a := range entropyAlphas {
		h := renyiEntropy(probByAddr, a)
		blended += (alphaWeights[i] / alphaWeightSum) * h
	}

	effective := math.Exp(blended)
	if effective < 1 {
		effective = 1
	}
	return effective
}

// renyiEntropy computes the Rényi entropy of order alpha over probs.
// alpha==1 degenerates to Shannon entropy.
func renyiEntropy(probs map[string]float64, alpha float64) float64 {
	if math.Abs(alpha-1.0) < 1e-9 {
		var h float64
		for _, p := range probs {
			if p > 0 {
				h -= p * math.Log(p)
			}
		}
		return h
	}
	var sum float64
	for _, p := range probs {
		sum += math.Pow(p, alpha)
	}
	if sum <= 0 {
		return 0
	}
	return math.Log(sum) / (1 - alpha)
}

func commonPrefixLen(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	i := 0
	for i < n && a[i] == b[i] {
		i++
	}
	return i
}

// LogisticState holds the cached logistic factor and the bookkeeping needed
// to decide when to recompute it (spec.md §4.9).
type LogisticState struct {
	LastN    float64
	LockEnd  uint64
	Factor   float64
}

// LogisticParams are the governance-tunable knobs of the logistic factor.
type LogisticParams struct {
	SlopeMilli int64   // xi = SlopeMilli/1000
	NStar      float64 // target effective miner count
	Hysteresis float64 // minimum |n_eff delta| to trigger recompute
	LockBlocks uint64  // blocks between recomputation windows
}

// LogisticFactor returns the (possibly cached) scaling factor
// 1/(1+exp(xi*(n_eff-n_star))) for the current block height and effective
// miner count, recomputing only when block_height >= lock_end and the
// change in n_eff exceeds the hysteresis threshold (spec.md §4.9).
func LogisticFactor(state *LogisticState, params LogisticParams, blockHeight uint64, nEff float64) float64 {
	if state.Factor == 0 {
		state.Factor = 1
	}
	if blockHeight < state.LockEnd {
		return state.Factor
	}
	if math.Abs(nEff-state.LastN) <= params.Hysteresis && state.LastN != 0 {
		state.LockEnd = blockHeight + params.LockBlocks
		return state.Factor
	}
	xi := float64(params.SlopeMilli) / 1000.0
	factor := 1.0 / (1.0 + math.Exp(xi*(nEff-params.NStar)))
	state.Factor = factor
	state.LastN = nEff
	state.LockEnd = blockHeight + params.LockBlocks
	return factor
}

// CapReward caps a block reward so it never pushes total issuance past a
// per-token ceiling (a zero ceiling means uncapped) (spec.md §4.9 "cap rewards so
// cumulative emission does not exceed per-token supply ceilings").
func CapReward(reward, cumulativeEmission, ceiling uint64) uint64 {
	if ceiling == 0 {
		return reward
	}
	if cumulativeEmission >= ceiling {
		return 0
	}
	room := ceiling - cumulativeEmission
	if reward > room {
		return room
	}
	return reward
}

// Subsidies computes the per-epoch storage/read/compute subsidies of
// spec.md §4.9: storage_sub_ct = beta*bytes, read_sub_ct = gamma*bytes,
// compute_sub_ct = kappa*cpu_ms + lambda*bytes_out. Industrial subsidies
// are zero in this tier.
func Subsidies(beta, gamma, kappa, lambda, storageBytes, readBytes, cpuMs, bytesOut uint64) (storageSubCT, readSubCT, computeSubCT uint64) {
	return beta * storageBytes, gamma * readBytes, kappa*cpuMs + lambda*bytesOut
}
