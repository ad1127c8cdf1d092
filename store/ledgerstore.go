package store

import (
	"sort"
	"sync"

	"payments-engine/domain"
	"payments-engine/shared"
)

// LedgerStore maps client identifiers to their exclusively owned ledger.
// Ledgers are created on first access with zero balances.
type LedgerStore interface {
	GetOrCreate(clientID shared.ClientID) *domain.ClientLedger

	Get(clientID shared.ClientID) (ledger *domain.ClientLedger, found bool)

	// ClientIDs returns every known client in ascending order.
	ClientIDs() []shared.ClientID

	Len() int
}

// InMemoryLedgerStore guards only the map itself. Serializing Apply calls
// on a given ledger is the caller's job.
type InMemoryLedgerStore struct {
	sync.RWMutex
	ledgers map[shared.ClientID]*domain.ClientLedger
}

// NewInMemoryLedgerStore returns an empty store, or one whose ledgers are
// rebuilt from the given opening snapshots. A later snapshot for the same
// client replaces an earlier one.
func NewInMemoryLedgerStore(opening ...domain.Snapshot) *InMemoryLedgerStore {
	ledgers := make(map[shared.ClientID]*domain.ClientLedger, len(opening))
	for _, snap := range opening {
		ledgers[snap.Client] = domain.ApplySnapshot(snap)
	}
	return &InMemoryLedgerStore{ledgers: ledgers}
}

func (s *InMemoryLedgerStore) GetOrCreate(clientID shared.ClientID) *domain.ClientLedger {
	s.RLock()
	ledger, ok := s.ledgers[clientID]
	s.RUnlock()
	if ok {
		return ledger
	}

	s.Lock()
	defer s.Unlock()

	// Another goroutine may have created it between the two locks.
	if ledger, ok = s.ledgers[clientID]; ok {
		return ledger
	}
	ledger = domain.NewClientLedger(clientID)
	s.ledgers[clientID] = ledger
	return ledger
}

func (s *InMemoryLedgerStore) Get(clientID shared.ClientID) (*domain.ClientLedger, bool) {
	s.RLock()
	defer s.RUnlock()

	ledger, ok := s.ledgers[clientID]
	return ledger, ok
}

func (s *InMemoryLedgerStore) ClientIDs() []shared.ClientID {
	s.RLock()
	defer s.RUnlock()

	ids := make([]shared.ClientID, 0, len(s.ledgers))
	for id := range s.ledgers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (s *InMemoryLedgerStore) Len() int {
	s.RLock()
	defer s.RUnlock()
	return len(s.ledgers)
}
