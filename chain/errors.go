package chain

import "errors"

// ErrPoWExhausted is returned by AssembleBlock when no nonce within the
// search budget meets the current difficulty.
var ErrPoWExhausted = errors.New("chain: proof-of-work search exhausted without a solution")

// Validation errors returned by ValidateBlock (spec.md §4.12). Each is a
// distinct sentinel so callers (ImportBlock, the RPC layer) can branch on
// exactly what failed without string matching.
var (
	ErrWrongIndex        = errors.New("chain: block index does not extend the tip")
	ErrWrongPrevHash     = errors.New("chain: previous hash does not match the tip")
	ErrHashMismatch      = errors.New("chain: declared hash does not match recomputed hash")
	ErrDifficultyNotMet  = errors.New("chain: hash does not meet declared difficulty")
	ErrWrongDifficulty   = errors.New("chain: declared difficulty does not match chain state")
	ErrWrongBaseFee      = errors.New("chain: declared base fee does not match chain state")
	ErrEmptyBlock        = errors.New("chain: block has no coinbase transaction")
	ErrNotCoinbase       = errors.New("chain: transactions[0] is not a coinbase transaction")
	ErrCoinbaseMismatch  = errors.New("chain: coinbase amounts do not match header totals")
	ErrFeeChecksumWrong  = errors.New("chain: fee checksum does not match collected fees")
	ErrStateRootMismatch = errors.New("chain: recomputed state root does not match header")
	ErrTxNonceGap        = errors.New("chain: transaction nonce does not extend sender's confirmed nonce")
	ErrTxInsufficientBal = errors.New("chain: transaction amount exceeds sender's confirmed balance")
	ErrTxBadSignature    = errors.New("chain: non-coinbase transaction signature does not verify")
	ErrCoinbaseOvermint  = errors.New("chain: coinbase total does not equal base reward + subsidies + fees")
)
