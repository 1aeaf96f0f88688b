package memory

import (
	"context"
	"sync"

	"pump-agent/internal/domain"
	"pump-agent/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
type SnapshotStore struct {
	mu   sync.RWMutex
	data map[string]*domain.MarketSnapshot // keyed by mint
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		data: make(map[string]*domain.MarketSnapshot),
	}
}

var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// Get returns the cached snapshot for mint.
func (s *SnapshotStore) Get(_ context.Context, mint string) (*domain.MarketSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.data[mint]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *snap
	return &cp, nil
}

// Put stores snap unless one exists for the mint.
func (s *SnapshotStore) Put(_ context.Context, snap *domain.MarketSnapshot) error {
	if snap == nil || snap.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[snap.Mint]; exists {
		return nil
	}
	cp := *snap
	s.data[snap.Mint] = &cp
	return nil
}
