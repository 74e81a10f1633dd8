package server

import (
	"trade-signal-lab/internal/domain"
)

// Wire representations of domain records. Field names follow the table
// column names so API consumers and the dashboard see one vocabulary.

type configResponse struct {
	ConfigID   string             `json:"config_id"`
	Strategy   string             `json:"strategy"`
	Version    string             `json:"version"`
	Parameters map[string]float64 `json:"parameters"`
	IsActive   bool               `json:"is_active"`
	PromotedAt int64              `json:"promoted_at"`
	CreatedAt  int64              `json:"created_at"`
}

func toConfigResponse(c *domain.StrategyConfig) configResponse {
	return configResponse{
		ConfigID:   c.ConfigID,
		Strategy:   c.Strategy,
		Version:    c.Version,
		Parameters: c.Parameters,
		IsActive:   c.Active,
		PromotedAt: c.PromotedAt,
		CreatedAt:  c.CreatedAt,
	}
}

type executionResponse struct {
	ExecutionID   string   `json:"execution_id"`
	Symbol        string   `json:"symbol"`
	Side          string   `json:"side"`
	EntryPrice    float64  `json:"entry_price"`
	ExecutedPrice *float64 `json:"executed_price"`
	ExecutedQty   *float64 `json:"executed_qty"`
	Strategy      string   `json:"strategy"`
	Version       string   `json:"version"`
	Status        string   `json:"status"`
	Notes         string   `json:"notes"`
	Timestamp     int64    `json:"timestamp"`
}

func toExecutionResponse(r *domain.ExecutionRecord) executionResponse {
	return executionResponse{
		ExecutionID:   r.ExecutionID,
		Symbol:        r.Symbol,
		Side:          string(r.Side),
		EntryPrice:    r.EntryPrice,
		ExecutedPrice: r.ExecutedPrice,
		ExecutedQty:   r.ExecutedQty,
		Strategy:      r.Strategy,
		Version:       r.Version,
		Status:        r.Status,
		Notes:         r.Notes,
		Timestamp:     r.Timestamp,
	}
}

func toExecutionResponses(records []*domain.ExecutionRecord) []executionResponse {
	out := make([]executionResponse, 0, len(records))
	for _, r := range records {
		out = append(out, toExecutionResponse(r))
	}
	return out
}

type resultResponse struct {
	Config   map[string]float64 `json:"config"`
	Strategy string             `json:"strategy,omitempty"`
	Version  string             `json:"version,omitempty"`
	WinRate  float64            `json:"win_rate"`
	PnL      float64            `json:"pnl"`
	Trades   int                `json:"trades"`
}

func toResultResponses(results []*domain.BacktestResult) []resultResponse {
	out := make([]resultResponse, 0, len(results))
	for _, r := range results {
		out = append(out, resultResponse{
			Config:   r.Config,
			Strategy: r.Strategy,
			Version:  r.Version,
			WinRate:  r.WinRate,
			PnL:      r.PnL,
			Trades:   r.Trades,
		})
	}
	return out
}
