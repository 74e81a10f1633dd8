package memory

import (
	"context"
	"sort"
	"sync"

	"trade-signal-lab/internal/domain"
	"trade-signal-lab/internal/storage"
)

// BacktestResultStore is an in-memory implementation of storage.BacktestResultStore.
type BacktestResultStore struct {
	mu   sync.RWMutex
	rows []*domain.BacktestResult
}

// NewBacktestResultStore creates a new in-memory backtest result store.
func NewBacktestResultStore() *BacktestResultStore {
	return &BacktestResultStore{}
}

// Compile-time interface check.
var _ storage.BacktestResultStore = (*BacktestResultStore)(nil)

// InsertBulk adds the ranked results of one search run.
func (s *BacktestResultStore) InsertBulk(_ context.Context, results []*domain.BacktestResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range results {
		if r == nil {
			return storage.ErrInvalidInput
		}
		resultCopy := *r
		resultCopy.Config = cloneParams(r.Config)
		s.rows = append(s.rows, &resultCopy)
	}
	return nil
}

// GetTop retrieves results ordered by win_rate DESC.
func (s *BacktestResultStore) GetTop(_ context.Context, limit int) ([]*domain.BacktestResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.BacktestResult, 0, len(s.rows))
	for _, r := range s.rows {
		resultCopy := *r
		resultCopy.Config = cloneParams(r.Config)
		result = append(result, &resultCopy)
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].WinRate > result[j].WinRate
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func cloneParams(m map[string]float64) map[string]float64 {
	params := make(map[string]float64, len(m))
	for k, v := range m {
		params[k] = v
	}
	return params
}
