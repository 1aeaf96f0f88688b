package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"pump-agent/internal/domain"
	"pump-agent/internal/storage"
)

// PriceSampleStore is an in-memory implementation of storage.PriceSampleStore.
type PriceSampleStore struct {
	mu   sync.RWMutex
	data map[string]*domain.PriceSample // keyed by (trade_uuid, timestamp_ms)
}

// NewPriceSampleStore creates a new in-memory price sample store.
func NewPriceSampleStore() *PriceSampleStore {
	return &PriceSampleStore{
		data: make(map[string]*domain.PriceSample),
	}
}

func sampleKey(tradeUUID string, timestampMs int64) string {
	return fmt.Sprintf("%s|%d", tradeUUID, timestampMs)
}

// InsertBulk adds multiple samples. Fails entire batch on duplicate.
func (s *PriceSampleStore) InsertBulk(_ context.Context, samples []*domain.PriceSample) error {
	if len(samples) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(samples))
	for _, p := range samples {
		if p == nil || p.TradeUUID == "" {
			return storage.ErrInvalidInput
		}
		key := sampleKey(p.TradeUUID, p.TimestampMs)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	for _, p := range samples {
		sampleCopy := *p
		s.data[sampleKey(p.TradeUUID, p.TimestampMs)] = &sampleCopy
	}
	return nil
}

// GetByTrade retrieves all samples of a trade, ordered by timestamp ASC.
func (s *PriceSampleStore) GetByTrade(_ context.Context, tradeUUID string) ([]*domain.PriceSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PriceSample
	for _, p := range s.data {
		if p.TradeUUID == tradeUUID {
			sampleCopy := *p
			result = append(result, &sampleCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TimestampMs < result[j].TimestampMs
	})
	return result, nil
}

var _ storage.PriceSampleStore = (*PriceSampleStore)(nil)
