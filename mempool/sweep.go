package mempool

import "github.com/civicledger/corechain/accounts"

// PurgeExpired implements spec.md §4.7: drop every entry whose TTL has
// elapsed, counting (and, if more than half the remaining pool is orphaned,
// also dropping) entries whose sender account no longer exists. Idempotent
// under a frozen clock and safe to call at any time.
func (p *Pool) PurgeExpired(nowMillis int64) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	expired := 0
	var orphanKeys []struct {
		lane int
		key  Key
	}

	for laneID, lane := range p.lanes {
		for key, e := range lane.entries {
			ttlExceeded := nowMillis-e.TimestampMillis > p.cfg.TTLSeconds*1000
			orphan := p.store.Get(key.Sender) == nil
			if ttlExceeded {
				p.dropLocked(laneID, key)
				expired++
				continue
			}
			if orphan {
				orphanKeys = append(orphanKeys, struct {
					lane int
					key  Key
				}{laneID, key})
			}
		}
	}

	remaining := len(p.lanes[0].entries) + len(p.lanes[1].entries)
	if len(orphanKeys)*2 > remaining {
		for _, ok := range orphanKeys {
			p.dropLocked(ok.lane, ok.key)
		}
	}

	return expired
}

// dropLocked removes the entry at (lane,key) and releases its reservation.
// Callers must already hold p.mu.
func (p *Pool) dropLocked(laneID int, key Key) {
	lane := p.lanes[laneID]
	e, ok := lane.entries[key]
	if !ok {
		return
	}
	delete(lane.entries, key)
	if account := p.store.Get(key.Sender); account != nil {
		accounts.Release(account, key.Nonce, e.ReservedConsumer, e.ReservedIndustrial)
	}
}
