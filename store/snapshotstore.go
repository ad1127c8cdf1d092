package store

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"payments-engine/domain"
	"payments-engine/shared"
)

var ErrSnapshotExists = errors.New("snapshot already saved for client")

// SnapshotStore collects the final snapshot of each ledger. A client's
// snapshot is written once.
type SnapshotStore interface {
	SaveSnapshot(snapshot domain.Snapshot) error

	GetSnapshot(clientID shared.ClientID) (snapshot domain.Snapshot, found bool)

	// ListSnapshots returns every saved snapshot ordered by client.
	ListSnapshots() []domain.Snapshot
}

type InMemorySnapshotStore struct {
	sync.RWMutex
	snapshots map[shared.ClientID]domain.Snapshot
}

func NewInMemorySnapshotStore() *InMemorySnapshotStore {
	return &InMemorySnapshotStore{
		snapshots: make(map[shared.ClientID]domain.Snapshot),
	}
}

func (s *InMemorySnapshotStore) SaveSnapshot(snapshot domain.Snapshot) error {
	s.Lock()
	defer s.Unlock()

	if _, exists := s.snapshots[snapshot.Client]; exists {
		return fmt.Errorf("%w: %s", ErrSnapshotExists, snapshot.Client)
	}
	s.snapshots[snapshot.Client] = snapshot
	return nil
}

func (s *InMemorySnapshotStore) GetSnapshot(clientID shared.ClientID) (domain.Snapshot, bool) {
	s.RLock()
	defer s.RUnlock()

	snapshot, found := s.snapshots[clientID]
	return snapshot, found
}

func (s *InMemorySnapshotStore) ListSnapshots() []domain.Snapshot {
	s.RLock()
	defer s.RUnlock()

	out := make([]domain.Snapshot, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		out = append(out, snap)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Client < out[j].Client })
	return out
}
