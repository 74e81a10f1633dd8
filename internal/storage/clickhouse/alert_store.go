package clickhouse

import (
	"context"
	"fmt"

	"trade-signal-lab/internal/domain"
	"trade-signal-lab/internal/storage"
)

// AlertStore implements storage.AlertStore using ClickHouse.
// Alerts are an append-heavy audit stream with no uniqueness constraint,
// which is exactly what MergeTree gives us.
type AlertStore struct {
	conn *Conn
}

// NewAlertStore creates a new AlertStore.
func NewAlertStore(conn *Conn) *AlertStore {
	return &AlertStore{conn: conn}
}

// Compile-time interface check.
var _ storage.AlertStore = (*AlertStore)(nil)

// Insert adds an alert row. No dedup by design: identical signals
// produce independent audit rows.
func (s *AlertStore) Insert(ctx context.Context, a *domain.AlertRecord) error {
	if a == nil {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO alerts (symbol, side, price, strategy, version, raw, timestamp)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	err := s.conn.Exec(ctx, query,
		a.Symbol,
		a.Side,
		a.Price,
		a.Strategy,
		a.Version,
		string(a.Raw),
		a.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// GetPriced retrieves all alerts that carry symbol, side and price,
// ordered by timestamp ASC.
func (s *AlertStore) GetPriced(ctx context.Context) ([]*domain.AlertRecord, error) {
	query := `
		SELECT symbol, side, price, strategy, version, raw, timestamp
		FROM alerts
		WHERE symbol != '' AND side != '' AND price != 0
		ORDER BY timestamp ASC
	`

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("get priced alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*domain.AlertRecord
	for rows.Next() {
		var a domain.AlertRecord
		var raw string

		err := rows.Scan(
			&a.Symbol,
			&a.Side,
			&a.Price,
			&a.Strategy,
			&a.Version,
			&raw,
			&a.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan alert row: %w", err)
		}

		a.Raw = []byte(raw)
		alerts = append(alerts, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate alert rows: %w", err)
	}

	return alerts, nil
}
