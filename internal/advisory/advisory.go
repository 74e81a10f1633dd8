package advisory

import "context"

// PerformanceReport summarizes recent live trading for the advisor.
type PerformanceReport struct {
	Strategy string
	Version  string

	Trades   int
	Wins     int
	Losses   int
	WinRate  float64
	TotalPnL float64

	// Mean indicator readings at entry across losing trades. Zero when
	// there were no losses.
	LossMeanMCI float64
	LossMeanADX float64
	LossMeanSNR float64

	// Parameters is the currently active configuration.
	Parameters map[string]float64
}

// Suggestion is a single-parameter adjustment proposed by an advisor.
type Suggestion struct {
	Parameter string  `json:"parameter"`
	Value     float64 `json:"value"`
	Rationale string  `json:"rationale,omitempty"`
}

// Advisor proposes one parameter adjustment from a performance report.
type Advisor interface {
	Suggest(ctx context.Context, report PerformanceReport) (*Suggestion, error)
}
