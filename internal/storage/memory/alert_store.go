package memory

import (
	"context"
	"sort"
	"sync"

	"trade-signal-lab/internal/domain"
	"trade-signal-lab/internal/storage"
)

// AlertStore is an in-memory implementation of storage.AlertStore.
// No dedup: identical alerts produce independent rows.
type AlertStore struct {
	mu   sync.RWMutex
	rows []*domain.AlertRecord
}

// NewAlertStore creates a new in-memory alert store.
func NewAlertStore() *AlertStore {
	return &AlertStore{}
}

// Compile-time interface check.
var _ storage.AlertStore = (*AlertStore)(nil)

// Insert adds an alert row.
func (s *AlertStore) Insert(_ context.Context, a *domain.AlertRecord) error {
	if a == nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	alertCopy := *a
	s.rows = append(s.rows, &alertCopy)
	return nil
}

// GetPriced retrieves all alerts that carry symbol, side and price,
// ordered by timestamp ASC.
func (s *AlertStore) GetPriced(_ context.Context) ([]*domain.AlertRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.AlertRecord
	for _, a := range s.rows {
		if a.Symbol == "" || a.Side == "" || a.Price == 0 {
			continue
		}
		alertCopy := *a
		result = append(result, &alertCopy)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})
	return result, nil
}

// Len returns the number of stored alerts. Test helper.
func (s *AlertStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}
