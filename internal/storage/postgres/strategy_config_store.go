package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"trade-signal-lab/internal/domain"
	"trade-signal-lab/internal/storage"
)

// promotionLockKey is the pg_advisory_xact_lock key that serializes
// promotions. All promoters (optimizer, human trigger) take the same
// lock, so the deactivate+insert pair is one critical section.
const promotionLockKey = 0x5452434647 // "TRCFG"

// StrategyConfigStore implements storage.StrategyConfigStore using PostgreSQL.
type StrategyConfigStore struct {
	pool *Pool
}

// NewStrategyConfigStore creates a new StrategyConfigStore.
func NewStrategyConfigStore(pool *Pool) *StrategyConfigStore {
	return &StrategyConfigStore{pool: pool}
}

// Compile-time interface check.
var _ storage.StrategyConfigStore = (*StrategyConfigStore)(nil)

// GetActive retrieves the single active configuration.
// Returns ErrNotFound when no configuration has been promoted yet.
func (s *StrategyConfigStore) GetActive(ctx context.Context) (*domain.StrategyConfig, error) {
	query := `
		SELECT config_id, strategy, version, parameters, is_active, promoted_at, created_at
		FROM strategy_config
		WHERE is_active = TRUE
	`

	row := s.pool.QueryRow(ctx, query)
	c, err := scanConfig(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get active config: %w", err)
	}
	return c, nil
}

// Promote deactivates the current active configuration and inserts cfg
// as the new active row inside a single transaction. The advisory lock
// serializes concurrent promoters; transactional visibility guarantees
// readers observe either the old or the new active row, never neither.
func (s *StrategyConfigStore) Promote(ctx context.Context, cfg *domain.StrategyConfig) error {
	if cfg == nil || cfg.ConfigID == "" || cfg.Strategy == "" || cfg.Version == "" {
		return storage.ErrInvalidInput
	}

	params, err := json.Marshal(cfg.Parameters)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin promote tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, promotionLockKey); err != nil {
		return fmt.Errorf("acquire promotion lock: %w", err)
	}

	if _, err := tx.Exec(ctx, `UPDATE strategy_config SET is_active = FALSE WHERE is_active = TRUE`); err != nil {
		return fmt.Errorf("deactivate previous config: %w", err)
	}

	insert := `
		INSERT INTO strategy_config (config_id, strategy, version, parameters, is_active, promoted_at)
		VALUES ($1, $2, $3, $4, TRUE, $5)
	`
	if _, err := tx.Exec(ctx, insert, cfg.ConfigID, cfg.Strategy, cfg.Version, params, cfg.PromotedAt); err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert promoted config: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit promote tx: %w", err)
	}
	return nil
}

// History retrieves past configurations ordered by promoted_at DESC.
func (s *StrategyConfigStore) History(ctx context.Context, limit int) ([]*domain.StrategyConfig, error) {
	query := `
		SELECT config_id, strategy, version, parameters, is_active, promoted_at, created_at
		FROM strategy_config
		ORDER BY promoted_at DESC, config_id ASC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("get config history: %w", err)
	}
	defer rows.Close()

	var configs []*domain.StrategyConfig
	for rows.Next() {
		c, err := scanConfig(rows)
		if err != nil {
			return nil, fmt.Errorf("scan config row: %w", err)
		}
		configs = append(configs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate config rows: %w", err)
	}
	return configs, nil
}

// scanConfig scans a single row into a StrategyConfig.
func scanConfig(row pgx.Row) (*domain.StrategyConfig, error) {
	var c domain.StrategyConfig
	var params []byte

	err := row.Scan(
		&c.ConfigID,
		&c.Strategy,
		&c.Version,
		&params,
		&c.Active,
		&c.PromotedAt,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(params, &c.Parameters); err != nil {
		return nil, fmt.Errorf("unmarshal parameters: %w", err)
	}
	return &c, nil
}
