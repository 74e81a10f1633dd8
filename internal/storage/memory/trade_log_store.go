package memory

import (
	"context"
	"sort"
	"sync"

	"trade-signal-lab/internal/domain"
	"trade-signal-lab/internal/storage"
)

// TradeLogStore is an in-memory implementation of storage.TradeLogStore.
type TradeLogStore struct {
	mu   sync.RWMutex
	rows []*domain.TradeLogEntry
}

// NewTradeLogStore creates a new in-memory trade log store.
func NewTradeLogStore() *TradeLogStore {
	return &TradeLogStore{}
}

// Compile-time interface check.
var _ storage.TradeLogStore = (*TradeLogStore)(nil)

// Insert adds a trade log entry.
func (s *TradeLogStore) Insert(_ context.Context, e *domain.TradeLogEntry) error {
	if e == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entryCopy := *e
	s.rows = append(s.rows, &entryCopy)
	return nil
}

// GetRecent retrieves the latest entries ordered by exit_time DESC.
func (s *TradeLogStore) GetRecent(_ context.Context, limit int) ([]*domain.TradeLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.TradeLogEntry, 0, len(s.rows))
	for _, e := range s.rows {
		entryCopy := *e
		result = append(result, &entryCopy)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ExitTime > result[j].ExitTime
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
