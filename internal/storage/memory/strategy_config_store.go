package memory

import (
	"context"
	"sort"
	"sync"

	"trade-signal-lab/internal/domain"
	"trade-signal-lab/internal/storage"
)

// StrategyConfigStore is an in-memory implementation of storage.StrategyConfigStore.
// The mutex makes Promote a serialized critical section, so readers never
// observe zero or two active configurations.
type StrategyConfigStore struct {
	mu   sync.RWMutex
	rows []*domain.StrategyConfig
}

// NewStrategyConfigStore creates a new in-memory strategy config store.
func NewStrategyConfigStore() *StrategyConfigStore {
	return &StrategyConfigStore{}
}

// Compile-time interface check.
var _ storage.StrategyConfigStore = (*StrategyConfigStore)(nil)

// GetActive retrieves the single active configuration.
func (s *StrategyConfigStore) GetActive(_ context.Context) (*domain.StrategyConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.rows {
		if c.Active {
			return cloneConfig(c), nil
		}
	}
	return nil, storage.ErrNotFound
}

// Promote deactivates the current active configuration and activates cfg
// under one lock acquisition.
func (s *StrategyConfigStore) Promote(_ context.Context, cfg *domain.StrategyConfig) error {
	if cfg == nil || cfg.ConfigID == "" || cfg.Strategy == "" || cfg.Version == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, c := range s.rows {
		if c.ConfigID == cfg.ConfigID {
			return storage.ErrDuplicateKey
		}
	}
	for _, c := range s.rows {
		c.Active = false
	}

	row := cloneConfig(cfg)
	row.Active = true
	s.rows = append(s.rows, row)
	return nil
}

// History retrieves past configurations ordered by promoted_at DESC.
func (s *StrategyConfigStore) History(_ context.Context, limit int) ([]*domain.StrategyConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.StrategyConfig, 0, len(s.rows))
	for _, c := range s.rows {
		result = append(result, cloneConfig(c))
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].PromotedAt > result[j].PromotedAt
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// cloneConfig copies a config including its parameter map so callers
// cannot mutate stored state.
func cloneConfig(c *domain.StrategyConfig) *domain.StrategyConfig {
	configCopy := *c
	configCopy.Parameters = c.CloneParameters()
	return &configCopy
}
