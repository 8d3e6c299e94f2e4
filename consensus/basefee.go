package consensus

// baseFeeMaxChangeDenominator bounds the per-block adjustment to 1/8th
// (12.5%), the conventional EIP-1559 bound referenced by spec.md §4.13.
const baseFeeMaxChangeDenominator = 8

// NextBaseFee computes the next base fee from realized gas against the
// target, bounded to +/-12.5% per block and floored at 1, per spec.md
// §4.13. An increase is always at least 1, so a base fee below 8 can rise
// by more than 12.5% in one block.
func NextBaseFee(prevBaseFee, realizedGas, targetGas uint64) uint64 {
	if targetGas == 0 {
		if prevBaseFee == 0 {
			return 1
		}
		return prevBaseFee
	}

	if realizedGas == targetGas {
		return max1(prevBaseFee)
	}

	if realizedGas > targetGas {
		delta := realizedGas - targetGas
		if delta > targetGas {
			delta = targetGas
		}
		adjustment := prevBaseFee * delta / targetGas / baseFeeMaxChangeDenominator
		if adjustment == 0 {
			adjustment = 1
		}
		return max1(prevBaseFee + adjustment)
	}

	delta := targetGas - realizedGas
	adjustment := prevBaseFee * delta / targetGas / baseFeeMaxChangeDenominator
	if adjustment >= prevBaseFee {
		return 1
	}
	return max1(prevBaseFee - adjustment)
}

func max1(v uint64) uint64 {
	if v == 0 {
		return 1
	}
	return v
}
