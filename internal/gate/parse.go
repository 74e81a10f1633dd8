package gate

import (
	"encoding/json"
	"fmt"
	"strings"

	"trade-signal-lab/internal/domain"
)

// signalWire is the alert payload shape produced by the signal source.
// Prices and quantities arrive as JSON numbers; alert_price is the
// execution path's name for the price the alert fired at.
type signalWire struct {
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"`
	Price      float64 `json:"price"`
	AlertPrice float64 `json:"alert_price"`
	Qty        float64 `json:"qty"`
	OrderType  string  `json:"order_type"`
	Leverage   int     `json:"leverage"`
	IsTestnet  bool    `json:"is_testnet"`
	Strategy   string  `json:"strategy"`
	Version    string  `json:"version"`

	PnL             *float64 `json:"pnl"`
	ExitTime        *int64   `json:"exit_time"`
	MCIAtEntry      *float64 `json:"mci_at_entry"`
	ADXScoreAtEntry *float64 `json:"adx_score_at_entry"`
	SNRScoreAtEntry *float64 `json:"snr_score_at_entry"`
	EntryPrice      *float64 `json:"entry_price"`
	ExitPrice       *float64 `json:"exit_price"`
}

// ParseSignal decodes a raw webhook body into a TradeSignal, keeping
// the original payload for the audit row. Field-level validation is
// the gate's job; this only rejects bodies that are not JSON objects.
func ParseSignal(raw []byte) (*domain.TradeSignal, error) {
	var wire signalWire
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSignal, err)
	}

	price := wire.Price
	if price == 0 {
		price = wire.AlertPrice
	}

	sig := &domain.TradeSignal{
		Symbol:        wire.Symbol,
		Side:          domain.Side(strings.ToLower(wire.Side)),
		Price:         price,
		Qty:           wire.Qty,
		OrderType:     wire.OrderType,
		Leverage:      wire.Leverage,
		IsTestnet:     wire.IsTestnet,
		Strategy:      wire.Strategy,
		Version:       wire.Version,
		PnL:           wire.PnL,
		ExitTime:      wire.ExitTime,
		MCIAtEntry:    wire.MCIAtEntry,
		ADXScoreEntry: wire.ADXScoreAtEntry,
		SNRScoreEntry: wire.SNRScoreAtEntry,
		EntryPrice:    wire.EntryPrice,
		ExitPrice:     wire.ExitPrice,
		Raw:           json.RawMessage(raw),
	}
	if sig.OrderType == "" {
		sig.OrderType = "market"
	}
	return sig, nil
}
