package domain

import "encoding/json"

// Side is the direction of a trade signal.
type Side string

// Side constants.
const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

// Valid reports whether the side is one of the known directions.
func (s Side) Valid() bool {
	return s == SideLong || s == SideShort
}

// TradeSignal is an incoming alert from the signal source.
// It exists only for the duration of one ingestion call; the records it
// produces (AlertRecord, ExecutionRecord, TradeLogEntry) are what persist.
type TradeSignal struct {
	Symbol    string  // e.g. "BTC/USDT"
	Side      Side    // long | short
	Price     float64 // price at which the alert fired
	Qty       float64 // requested quantity in base asset
	OrderType string  // "market" is the only type the executor places
	Leverage  int
	IsTestnet bool
	Strategy  string // strategy identity claimed by the signal
	Version   string

	// Closure data, present when the signal reports a finished trade.
	PnL           *float64
	ExitTime      *int64
	MCIAtEntry    *float64
	ADXScoreEntry *float64
	SNRScoreEntry *float64
	EntryPrice    *float64
	ExitPrice     *float64

	Raw json.RawMessage // full original payload, kept for the audit row
}

// HasClosureData reports whether the signal carries trade-closure fields
// that should produce a TradeLogEntry for the optimization feedback loop.
func (s *TradeSignal) HasClosureData() bool {
	return s.PnL != nil && s.ExitTime != nil
}

// AlertRecord is the raw audit row written for every ingested signal,
// accepted or rejected. Corresponds to the alerts table.
type AlertRecord struct {
	Symbol    string
	Side      string
	Price     float64
	Strategy  string
	Version   string
	Raw       json.RawMessage
	Timestamp int64 // ms since epoch
}
