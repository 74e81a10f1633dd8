package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"trade-signal-lab/internal/domain"
	"trade-signal-lab/internal/storage"
)

// ExecutionStore implements storage.ExecutionStore using PostgreSQL.
type ExecutionStore struct {
	pool *Pool
}

// NewExecutionStore creates a new ExecutionStore.
func NewExecutionStore(pool *Pool) *ExecutionStore {
	return &ExecutionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ExecutionStore = (*ExecutionStore)(nil)

// Insert adds an execution record. Returns ErrDuplicateKey if execution_id exists.
func (s *ExecutionStore) Insert(ctx context.Context, r *domain.ExecutionRecord) error {
	query := `
		INSERT INTO executions (
			execution_id, symbol, side, entry_price, executed_price, executed_qty,
			strategy, version, status, notes, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := s.pool.Exec(ctx, query,
		r.ExecutionID,
		r.Symbol,
		string(r.Side),
		r.EntryPrice,
		r.ExecutedPrice,
		r.ExecutedQty,
		r.Strategy,
		r.Version,
		r.Status,
		r.Notes,
		r.Timestamp,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

// GetRecent retrieves the latest records ordered by timestamp DESC.
func (s *ExecutionStore) GetRecent(ctx context.Context, limit int) ([]*domain.ExecutionRecord, error) {
	query := `
		SELECT execution_id, symbol, side, entry_price, executed_price, executed_qty,
		       strategy, version, status, notes, timestamp
		FROM executions
		ORDER BY timestamp DESC, execution_id ASC
		LIMIT $1
	`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("get recent executions: %w", err)
	}
	defer rows.Close()

	return scanExecutions(rows)
}

// GetByStrategy retrieves all records for a strategy/version, ordered by timestamp ASC.
func (s *ExecutionStore) GetByStrategy(ctx context.Context, strategy, version string) ([]*domain.ExecutionRecord, error) {
	query := `
		SELECT execution_id, symbol, side, entry_price, executed_price, executed_qty,
		       strategy, version, status, notes, timestamp
		FROM executions
		WHERE strategy = $1 AND version = $2
		ORDER BY timestamp ASC, execution_id ASC
	`

	rows, err := s.pool.Query(ctx, query, strategy, version)
	if err != nil {
		return nil, fmt.Errorf("get executions by strategy: %w", err)
	}
	defer rows.Close()

	return scanExecutions(rows)
}

// scanExecutions scans multiple rows into a slice of ExecutionRecord.
func scanExecutions(rows pgx.Rows) ([]*domain.ExecutionRecord, error) {
	var records []*domain.ExecutionRecord

	for rows.Next() {
		var r domain.ExecutionRecord
		var sideStr string

		err := rows.Scan(
			&r.ExecutionID,
			&r.Symbol,
			&sideStr,
			&r.EntryPrice,
			&r.ExecutedPrice,
			&r.ExecutedQty,
			&r.Strategy,
			&r.Version,
			&r.Status,
			&r.Notes,
			&r.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan execution row: %w", err)
		}

		r.Side = domain.Side(sideStr)
		records = append(records, &r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate execution rows: %w", err)
	}

	return records, nil
}
