// Package consensus implements the difficulty retargeter, reward engine,
// and base-fee controller of spec.md §4.8, §4.9, §4.13, adapted from the
// recompute-and-compare shape of daglabs-btcd/blockdag/validate.go's
// validateDifficulty and the decay/assembly ordering of
// daglabs-btcd/mining/mining.go.
package consensus

// DifficultyWindow bounds how many recent block timestamps feed the
// retargeter, matching the fixed window size spec.md §4.8 requires every
// implementation to share.
const DifficultyWindow = 32

// GenesisDifficulty is returned when the timestamp window holds fewer than
// two timestamps (no inter-block interval to measure yet).
const GenesisDifficulty uint64 = 20

// targetBlockIntervalMillis is the desired spacing between blocks; the
// retargeter nudges difficulty to hold the realized average toward this.
const targetBlockIntervalMillis int64 = 1000

// RetargetDifficulty computes the next difficulty and retune hint from a
// bounded window of recent block timestamps (milliseconds, oldest first)
// and the previous retune hint, per spec.md §4.8.
//
// The algorithm is integer-only and deterministic: it compares the realized
// average inter-block interval over the window against the target, clamps
// the adjustment to within [difficulty/2, difficulty*2] (the conventional
// halve/double bound), dampens by averaging the naive proposal with the
// current difficulty, and folds in one bit of drift information from the
// previous retune hint (a hysteresis nudge of ±1 once the hint has pointed
// the same direction twice in a row).
func RetargetDifficulty(difficulty uint64, timestampsMillis []int64, prevHint int64) (nextDifficulty uint64, nextHint int64) {
	if len(timestampsMillis) < 2 {
		return GenesisDifficulty, 0
	}

	window := timestampsMillis
	if len(window) > DifficultyWindow {
		window = window[len(window)-DifficultyWindow:]
	}

	span := window[len(window)-1] - window[0]
	intervals := int64(len(window) - 1)
	if span <= 0 || intervals <= 0 {
		span = targetBlockIntervalMillis
		intervals = 1
	}
	realizedAvg := span / intervals

	var proposal uint64
	var hint int64
	switch {
	case realizedAvg < targetBlockIntervalMillis:
		// Blocks coming in too fast: raise difficulty.
		proposal = difficulty + 1
		hint = 1
	case realizedAvg > targetBlockIntervalMillis:
		proposal = difficulty
		if difficulty > 0 {
			proposal = difficulty - 1
		}
		hint = -1
	default:
		proposal = difficulty
		hint = 0
	}

	// Halve/double clamp bound.
	maxUp := difficulty * 2
	if maxUp == 0 {
		maxUp = GenesisDifficulty
	}
	minDown := difficulty / 2
	if proposal > maxUp {
		proposal = maxUp
	}
	if difficulty > 0 && proposal < minDown {
		proposal = minDown
	}

	// Dampen: average the naive proposal with the current difficulty.
	damped := (proposal + difficulty) / 2
	if damped == 0 {
		damped = 1
	}

	// Hint hysteresis: two consecutive same-direction hints nudge by one
	// extra bit of difficulty, then the hint resets.
	if hint != 0 && hint == prevHint {
		if hint > 0 {
			damped++
		} else if damped > 1 {
			damped--
		}
		hint = 0
	}

	return damped, hint
}
