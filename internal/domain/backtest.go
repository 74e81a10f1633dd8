package domain

// BacktestResult is the simulated performance of one parameter
// configuration. The top-N by win rate are persisted to the
// backtest_results table for human-in-the-loop promotion.
type BacktestResult struct {
	Config   map[string]float64
	Strategy string
	Version  string
	WinRate  float64 // wins / (wins + losses)
	PnL      float64
	Trades   int
}
