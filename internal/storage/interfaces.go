package storage

import (
	"context"

	"trade-signal-lab/internal/domain"
)

// StrategyConfigStore provides access to strategy_config storage.
// Rows are never hard-deleted; promotion is the only mutation.
type StrategyConfigStore interface {
	// GetActive retrieves the single active configuration.
	// Returns ErrNotFound when no configuration has been promoted yet.
	GetActive(ctx context.Context) (*domain.StrategyConfig, error)

	// Promote deactivates the current active configuration and activates
	// cfg as one atomic operation: concurrent GetActive calls observe
	// either the old or the new configuration, never zero or two actives.
	// Concurrent promotions serialize. Returns ErrDuplicateKey if a row
	// with cfg.ConfigID already exists.
	Promote(ctx context.Context, cfg *domain.StrategyConfig) error

	// History retrieves past configurations ordered by promoted_at DESC.
	History(ctx context.Context, limit int) ([]*domain.StrategyConfig, error)
}

// ExecutionStore provides access to executions storage. Append-only.
type ExecutionStore interface {
	// Insert adds an execution record. Returns ErrDuplicateKey if execution_id exists.
	Insert(ctx context.Context, r *domain.ExecutionRecord) error

	// GetRecent retrieves the latest records ordered by timestamp DESC.
	GetRecent(ctx context.Context, limit int) ([]*domain.ExecutionRecord, error)

	// GetByStrategy retrieves all records for a strategy/version, ordered by timestamp ASC.
	GetByStrategy(ctx context.Context, strategy, version string) ([]*domain.ExecutionRecord, error)
}

// TradeLogStore provides access to trade_logs storage. Append-only.
type TradeLogStore interface {
	// Insert adds a trade log entry.
	Insert(ctx context.Context, e *domain.TradeLogEntry) error

	// GetRecent retrieves the latest entries ordered by exit_time DESC.
	GetRecent(ctx context.Context, limit int) ([]*domain.TradeLogEntry, error)
}

// AlertStore provides access to the alerts audit log. Append-only, and
// deliberately without dedup: re-ingesting an identical signal produces
// an independent row.
type AlertStore interface {
	// Insert adds an alert row.
	Insert(ctx context.Context, a *domain.AlertRecord) error

	// GetPriced retrieves all alerts that carry symbol, side and price,
	// ordered by timestamp ASC. This is the grid-search history input.
	GetPriced(ctx context.Context) ([]*domain.AlertRecord, error)
}

// BacktestResultStore provides access to backtest_results storage.
type BacktestResultStore interface {
	// InsertBulk adds the ranked results of one search run.
	InsertBulk(ctx context.Context, results []*domain.BacktestResult) error

	// GetTop retrieves results ordered by win_rate DESC.
	GetTop(ctx context.Context, limit int) ([]*domain.BacktestResult, error)
}
