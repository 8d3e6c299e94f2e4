package mempool

import (
	"sort"

	"github.com/civicledger/corechain/accounts"
	"github.com/civicledger/corechain/fees"
	"github.com/civicledger/corechain/hashing"
	"github.com/civicledger/corechain/tx"
)

// Clock supplies wall-clock and monotonic time to admission, so tests can
// freeze it (spec.md §8 "idempotent under a frozen clock").
type Clock interface {
	NowMillis() int64
	NowTicks() int64
	NowUnix() int64
}

// Admit runs the 19-step admission pipeline of spec.md §4.5 against stx,
// inserting it into the appropriate lane on success.
func (p *Pool) Admit(stx *tx.SignedTransaction, clk Clock) error {
	// Step 1: multisig short-circuit.
	if stx.IsMultisig() && !stx.HasThresholdSignatures() {
		p.mu.Lock()
		p.pendingMultisig[stx.PayloadHash()] = &pendingMultisigEntry{tx: stx, createdAt: clk.NowMillis()}
		p.mu.Unlock()
		return ErrPendingSignatures
	}
	return p.admitSingle(stx, clk)
}

// AddMultisigSignature appends one more signer to a transaction parked in
// the pending-multisig holding area (spec.md §4.5 step 1), and promotes it
// through the rest of the admission pipeline once |signer_pubkeys| reaches
// the transaction's threshold and the aggregate signature verifies.
func (p *Pool) AddMultisigSignature(payloadHash hashing.Hash, pubKey, sig []byte, clk Clock) error {
	p.mu.Lock()
	entry, ok := p.pendingMultisig[payloadHash]
	if !ok {
		p.mu.Unlock()
		return ErrNotFound
	}
	entry.tx.SignerPubKeys = append(entry.tx.SignerPubKeys, pubKey)
	entry.tx.AggregateSignature = append(entry.tx.AggregateSignature, sig...)
	if !entry.tx.HasThresholdSignatures() || !entry.tx.VerifyMultisig(p.cfg.DomainTag) {
		p.mu.Unlock()
		return ErrPendingSignatures
	}
	delete(p.pendingMultisig, payloadHash)
	stx := entry.tx
	p.mu.Unlock()

	return p.admitSingle(stx, clk)
}

// admitSingle runs steps 2-19 of spec.md §4.5 against stx, which must
// already be past the multisig holding area: either a single-signer
// transaction, or a multisig transaction whose threshold has already been
// met.
func (p *Pool) admitSingle(stx *tx.SignedTransaction, clk Clock) error {
	// Step 2: size and fee-per-byte.
	size := stx.SerializedSize()
	var feePerByte float64
	if size != 0 {
		feePerByte = float64(stx.Tip) / float64(size)
	}

	// Step 3: pool-wide lock, then per-sender lock.
	p.mu.Lock()
	defer p.mu.Unlock()
	senderLock := p.store.Lock(stx.Payload.From)
	senderLock.Lock()
	defer senderLock.Unlock()

	// Step 4: selector range.
	if stx.Payload.PctCT > 100 {
		return ErrInvalidSelector
	}

	// Step 5: fee bounds.
	if stx.Payload.Fee >= (uint64(1) << 63) {
		return ErrFeeTooLarge
	}
	if stx.Payload.Fee < p.cfg.BaseFee+stx.Tip {
		return ErrFeeTooLow
	}

	// Step 6: decompose.
	feeCT, feeIT, err := fees.Decompose(stx.Payload.PctCT, p.cfg.BaseFee+stx.Tip)
	if err != nil {
		switch err.(type) {
		case fees.ErrInvalidSelector:
			return ErrInvalidSelector
		default:
			return ErrFeeOverflow
		}
	}

	// Step 7: totals with overflow check.
	totalCT, okCT := addOverflow(stx.Payload.AmountConsumer, feeCT)
	totalIT, okIT := addOverflow(stx.Payload.AmountIndustrial, feeIT)
	if !okCT || !okIT {
		return ErrFeeOverflow
	}

	key := Key{Sender: stx.Payload.From, Nonce: stx.Payload.Nonce}
	l := p.lanes[stx.Lane]

	// Step 8: capacity / eviction.
	if len(l.entries) >= p.capacity(stx.Lane) {
		victim, ok := p.findEvictionVictim(stx.Lane, key, feePerByte)
		if !ok {
			return ErrMempoolFull
		}
		p.evictLocked(stx.Lane, victim)
	}

	// Step 9: duplicate check.
	if _, exists := l.entries[key]; exists {
		return ErrDuplicate
	}

	// Step 10: sender resolution.
	account := p.store.Get(stx.Payload.From)
	if account == nil {
		return ErrUnknownSender
	}

	// Step 11: session-key validation.
	if session := account.FindSession(stx.PublicKey); session != nil {
		if session.Expired(clk.NowUnix()) {
			return ErrSessionExpired
		}
		if stx.Payload.Nonce <= session.Nonce {
			return ErrDuplicate
		}
		session.Nonce = stx.Payload.Nonce // last-writer-wins, see DESIGN.md
	}

	// Step 12: reservation overflow check.
	if _, ok := addOverflow(account.PendingConsumer, totalCT); !ok {
		return ErrBalanceOverflow
	}
	if _, ok := addOverflow(account.PendingIndustrial, totalIT); !ok {
		return ErrBalanceOverflow
	}

	// Step 13: balance check.
	if account.Balance.Consumer < account.PendingConsumer+totalCT {
		return ErrInsufficientBalance
	}
	if account.Balance.Industrial < account.PendingIndustrial+totalIT {
		return ErrInsufficientBalance
	}

	// Step 14: nonce check.
	if _, dup := account.PendingNonces[stx.Payload.Nonce]; dup {
		return ErrDuplicate
	}
	if stx.Payload.Nonce != account.ExpectedNextNonce() {
		return ErrNonceGap
	}

	// Step 15: comfort gate (industrial only).
	if stx.Lane == tx.LaneIndustrial && p.cfg.ComfortThresholdP90 > 0 {
		if percentile90(p.observedConsumerFees) > p.cfg.ComfortThresholdP90 {
			return ErrFeeTooLow
		}
	}

	// Step 16: fee floor per lane.
	if feePerByte < p.minFeePerByte(stx.Lane) {
		return ErrFeeTooLow
	}

	// Step 17: signature verification (only asymmetric crypto step).
	if stx.IsMultisig() {
		if !stx.VerifyMultisig(p.cfg.DomainTag) {
			return ErrBadSignature
		}
	} else if !stx.Verify(p.cfg.DomainTag) {
		return ErrBadSignature
	}

	// Step 18: pending-per-account cap.
	if account.PendingNonce >= p.cfg.MaxPendingPerAccount {
		return ErrPendingLimit
	}

	// Step 19: reserve, insert, commit.
	r := accounts.Reserve(account, stx.Payload.Nonce, totalCT, totalIT)
	entry := &Entry{
		Tx:                 stx,
		TimestampMillis:    clk.NowMillis(),
		TimestampTicks:     clk.NowTicks(),
		SerializedSize:     size,
		ReservedConsumer:   totalCT,
		ReservedIndustrial: totalIT,
	}
	l.entries[key] = entry
	r.Commit()

	if stx.Lane == tx.LaneConsumer {
		p.recordConsumerFee(feePerByte)
	}

	log.Debugf("admitted tx %s sender=%s nonce=%d lane=%d", entry.ID(), stx.Payload.From, stx.Payload.Nonce, stx.Lane)
	return nil
}

// findEvictionVictim locates the lowest-priority entry in lane l under the
// eviction order (spec.md §3), refusing eviction if the only candidate is
// the admitting sender's own pending entry with equal-or-higher priority
// (spec.md §4.4).
func (p *Pool) findEvictionVictim(l tx.Lane, incomingKey Key, incomingFeePerByte float64) (Key, bool) {
	lane := p.lanes[l]
	entries := make([]*Entry, 0, len(lane.entries))
	for _, e := range lane.entries {
		entries = append(entries, e)
	}
	if len(entries) == 0 {
		return Key{}, false
	}
	sortByEvictionOrder(entries, p.cfg.TTLSeconds)
	victim := entries[0]
	victimKey := victim.Key()
	if victimKey.Sender == incomingKey.Sender && victim.FeePerByte() >= incomingFeePerByte {
		return Key{}, false
	}
	return victimKey, true
}

// evictLocked removes the entry at key from lane l and releases its
// reservation. Callers must already hold p.mu.
func (p *Pool) evictLocked(l tx.Lane, key Key) {
	lane := p.lanes[l]
	e, ok := lane.entries[key]
	if !ok {
		return
	}
	delete(lane.entries, key)
	if account := p.store.Get(key.Sender); account != nil {
		accounts.Release(account, key.Nonce, e.ReservedConsumer, e.ReservedIndustrial)
	} else {
		p.orphanCount++
	}
	log.Infof("evicted tx %s sender=%s nonce=%d to admit higher-priority entry", e.ID(), key.Sender, key.Nonce)
}

func addOverflow(a, b uint64) (uint64, bool) {
	sum := a + b
	if sum < a {
		return 0, false
	}
	return sum, true
}

func (p *Pool) recordConsumerFee(f float64) {
	const window = 256
	p.observedConsumerFees = append(p.observedConsumerFees, f)
	if len(p.observedConsumerFees) > window {
		p.observedConsumerFees = p.observedConsumerFees[len(p.observedConsumerFees)-window:]
	}
}

// percentile90 returns the 90th percentile of a copy of samples, 0 if empty.
func percentile90(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	cp := append([]float64{}, samples...)
	sort.Float64s(cp)
	idx := (len(cp) * 90) / 100
	if idx >= len(cp) {
		idx = len(cp) - 1
	}
	return cp[idx]
}
