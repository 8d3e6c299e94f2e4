package mempool

import "github.com/civicledger/corechain/accounts"

// Drop removes the entry at (sender,nonce), trying the consumer lane first
// then the industrial lane, and reverses its reservation, per spec.md §4.6.
func (p *Pool) Drop(sender string, nonce uint64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := Key{Sender: sender, Nonce: nonce}
	for _, laneID := range [2]int{0, 1} {
		lane := p.lanes[laneID]
		e, ok := lane.entries[key]
		if !ok {
			continue
		}
		delete(lane.entries, key)
		if account := p.store.Get(sender); account != nil {
			accounts.Release(account, nonce, e.ReservedConsumer, e.ReservedIndustrial)
		} else {
			p.orphanCount--
			if p.orphanCount < 0 {
				p.orphanCount = 0
			}
		}
		return nil
	}
	return ErrNotFound
}
