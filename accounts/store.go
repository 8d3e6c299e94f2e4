package accounts

import "sync"

// Store is the keyed account map. The pool-wide mempool lock and the
// per-sender admission lock (spec.md §5 lock hierarchy levels 1-2) are held
// by the mempool package; Store itself exposes a per-sender Mutex so
// admission can lock exactly one sender's bookkeeping while holding the
// pool-wide lock, without serializing unrelated senders.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]*Account
	senderMu map[string]*sync.Mutex
}

// NewStore returns an empty account store.
func NewStore() *Store {
	return &Store{
		accounts: make(map[string]*Account),
		senderMu: make(map[string]*sync.Mutex),
	}
}

// Get returns the account at addr, or nil if it does not exist.
func (s *Store) Get(addr string) *Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accounts[addr]
}

// Put creates or replaces the account at addr (used by genesis/funding and
// by chain replay, never by admission — admission only mutates pending
// fields on an existing account via the reservation guard).
func (s *Store) Put(addr string, a *Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[addr] = a
}

// Exists reports whether addr has a funded account.
func (s *Store) Exists(addr string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.accounts[addr]
	return ok
}

// Len returns the number of accounts tracked.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

// Range calls f for every account. f must not mutate the store.
func (s *Store) Range(f func(addr string, a *Account) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for addr, a := range s.accounts {
		if !f(addr, a) {
			return
		}
	}
}

// Lock returns the per-sender mutex for addr, creating it on first use.
// Callers take the pool-wide mempool lock first, then this lock, per the
// spec.md §5 lock hierarchy.
func (s *Store) Lock(addr string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.senderMu[addr]
	if !ok {
		m = &sync.Mutex{}
		s.senderMu[addr] = m
	}
	return m
}

// Snapshot returns a deep copy of every account, for use as the shadow copy
// the block assembler applies transactions to before solving PoW
// (spec.md §4.10 step 5).
func (s *Store) Snapshot() map[string]*Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*Account, len(s.accounts))
	for addr, a := range s.accounts {
		cp := *a
		cp.PendingNonces = make(map[uint64]struct{}, len(a.PendingNonces))
		for n := range a.PendingNonces {
			cp.PendingNonces[n] = struct{}{}
		}
		cp.Sessions = append([]SessionPolicy{}, a.Sessions...)
		out[addr] = &cp
	}
	return out
}
