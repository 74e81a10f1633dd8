package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"

	"trade-signal-lab/internal/domain"
	"trade-signal-lab/internal/storage"
)

// BacktestResultStore implements storage.BacktestResultStore using ClickHouse.
type BacktestResultStore struct {
	conn *Conn
}

// NewBacktestResultStore creates a new BacktestResultStore.
func NewBacktestResultStore(conn *Conn) *BacktestResultStore {
	return &BacktestResultStore{conn: conn}
}

// Compile-time interface check.
var _ storage.BacktestResultStore = (*BacktestResultStore)(nil)

// InsertBulk adds the ranked results of one search run.
func (s *BacktestResultStore) InsertBulk(ctx context.Context, results []*domain.BacktestResult) error {
	if len(results) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO backtest_results (config, strategy, version, win_rate, pnl, trades)
	`)
	if err != nil {
		return fmt.Errorf("prepare backtest results batch: %w", err)
	}

	for _, r := range results {
		if r == nil {
			return storage.ErrInvalidInput
		}
		config, err := json.Marshal(r.Config)
		if err != nil {
			return fmt.Errorf("marshal result config: %w", err)
		}
		if err := batch.Append(
			string(config),
			r.Strategy,
			r.Version,
			r.WinRate,
			r.PnL,
			int32(r.Trades),
		); err != nil {
			return fmt.Errorf("append backtest result: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send backtest results batch: %w", err)
	}
	return nil
}

// GetTop retrieves results ordered by win_rate DESC.
func (s *BacktestResultStore) GetTop(ctx context.Context, limit int) ([]*domain.BacktestResult, error) {
	query := `
		SELECT config, strategy, version, win_rate, pnl, trades
		FROM backtest_results
		ORDER BY win_rate DESC
		LIMIT ?
	`

	rows, err := s.conn.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("get top backtest results: %w", err)
	}
	defer rows.Close()

	var results []*domain.BacktestResult
	for rows.Next() {
		var r domain.BacktestResult
		var config string
		var trades int32

		err := rows.Scan(
			&config,
			&r.Strategy,
			&r.Version,
			&r.WinRate,
			&r.PnL,
			&trades,
		)
		if err != nil {
			return nil, fmt.Errorf("scan backtest result row: %w", err)
		}

		if err := json.Unmarshal([]byte(config), &r.Config); err != nil {
			return nil, fmt.Errorf("unmarshal result config: %w", err)
		}
		r.Trades = int(trades)
		results = append(results, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate backtest result rows: %w", err)
	}

	return results, nil
}
