package domain

// TradeLogEntry records one closed trade with the indicator scores that
// were observed at entry. Corresponds to the trade_logs table.
// Append-only; consumed in aggregate by the optimization loop.
type TradeLogEntry struct {
	PnL             float64
	ExitTime        int64 // ms since epoch
	MCIAtEntry      float64
	ADXScoreAtEntry float64
	SNRScoreAtEntry float64
	EntryPrice      float64
	ExitPrice       float64
	Side            Side
}

// Win reports whether the trade closed with positive PnL.
func (e *TradeLogEntry) Win() bool {
	return e.PnL > 0
}
