package postgres

import (
	"context"
	"fmt"

	"trade-signal-lab/internal/domain"
	"trade-signal-lab/internal/storage"
)

// TradeLogStore implements storage.TradeLogStore using PostgreSQL.
type TradeLogStore struct {
	pool *Pool
}

// NewTradeLogStore creates a new TradeLogStore.
func NewTradeLogStore(pool *Pool) *TradeLogStore {
	return &TradeLogStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeLogStore = (*TradeLogStore)(nil)

// Insert adds a trade log entry.
func (s *TradeLogStore) Insert(ctx context.Context, e *domain.TradeLogEntry) error {
	query := `
		INSERT INTO trade_logs (
			pnl, exit_time, mci_at_entry, adx_score_at_entry, snr_score_at_entry,
			entry_price, exit_price, side
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		e.PnL,
		e.ExitTime,
		e.MCIAtEntry,
		e.ADXScoreAtEntry,
		e.SNRScoreAtEntry,
		e.EntryPrice,
		e.ExitPrice,
		string(e.Side),
	)
	if err != nil {
		return fmt.Errorf("insert trade log: %w", err)
	}
	return nil
}

// GetRecent retrieves the latest entries ordered by exit_time DESC.
func (s *TradeLogStore) GetRecent(ctx context.Context, limit int) ([]*domain.TradeLogEntry, error) {
	query := `
		SELECT pnl, exit_time, mci_at_entry, adx_score_at_entry, snr_score_at_entry,
		       entry_price, exit_price, side
		FROM trade_logs
		ORDER BY exit_time DESC, id ASC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent trade logs: %w", err)
	}
	defer rows.Close()

	var entries []*domain.TradeLogEntry
	for rows.Next() {
		var e domain.TradeLogEntry
		var sideStr string

		err := rows.Scan(
			&e.PnL,
			&e.ExitTime,
			&e.MCIAtEntry,
			&e.ADXScoreAtEntry,
			&e.SNRScoreAtEntry,
			&e.EntryPrice,
			&e.ExitPrice,
			&sideStr,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade log row: %w", err)
		}

		e.Side = domain.Side(sideStr)
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade log rows: %w", err)
	}

	return entries, nil
}
