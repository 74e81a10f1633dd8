package backtest

import (
	"errors"
	"math"
	"testing"

	"trade-signal-lab/internal/domain"
)

// fixedOutcome always returns the same result.
type fixedOutcome struct {
	win bool
}

func (m fixedOutcome) Win(_ *domain.AlertRecord, _ map[string]float64) bool {
	return m.win
}

func testHistory(prices ...float64) []*domain.AlertRecord {
	alerts := make([]*domain.AlertRecord, 0, len(prices))
	for i, p := range prices {
		alerts = append(alerts, &domain.AlertRecord{
			Symbol:    "BTC/USDT",
			Side:      "long",
			Price:     p,
			Timestamp: int64(i),
		})
	}
	return alerts
}

func TestGridSize(t *testing.T) {
	ranges := []RangeSpec{
		{Name: "atr_mult", Range: domain.ParameterRange{Min: 0.5, Max: 1.5, Step: 0.1}},
		{Name: "tp_mult", Range: domain.ParameterRange{Min: 0.8, Max: 2.0, Step: 0.2}},
	}
	if got := GridSize(ranges); got != 77 {
		t.Errorf("GridSize = %d, want 77 (11x7)", got)
	}

	if got := GridSize(DefaultRanges()); got != 11*7*6*5 {
		t.Errorf("Default grid size = %d, want %d", got, 11*7*6*5)
	}
}

func TestSearch_EvaluatesFullGrid(t *testing.T) {
	engine := NewEngine(fixedOutcome{win: true})

	report, err := engine.Search(DefaultRanges(), testHistory(100, 200), Options{TopN: 3})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if report.TotalTested != 2310 {
		t.Errorf("TotalTested = %d, want 2310", report.TotalTested)
	}
	if len(report.Top) != 3 {
		t.Errorf("Top length = %d, want 3", len(report.Top))
	}
}

func TestSearch_NoHistory(t *testing.T) {
	engine := NewEngine(fixedOutcome{win: true})

	_, err := engine.Search(DefaultRanges(), nil, Options{})
	if !errors.Is(err, ErrNoHistory) {
		t.Errorf("Expected ErrNoHistory, got %v", err)
	}
}

func TestSearch_PnLAccounting(t *testing.T) {
	ranges := []RangeSpec{
		{Name: "tp_mult", Range: domain.ParameterRange{Min: 1.5, Max: 1.5, Step: 1}},
	}
	history := testHistory(100, 200)

	// All wins: pnl = (100 + 200) * 1.5
	report, err := NewEngine(fixedOutcome{win: true}).Search(ranges, history, Options{})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	r := report.Top[0]
	if r.WinRate != 1.0 {
		t.Errorf("WinRate = %g, want 1.0", r.WinRate)
	}
	if r.Trades != 2 {
		t.Errorf("Trades = %d, want 2", r.Trades)
	}
	if math.Abs(r.PnL-450) > 1e-9 {
		t.Errorf("PnL = %g, want 450", r.PnL)
	}

	// All losses: pnl = (100 + 200) * 1.5 * -0.8
	report, err = NewEngine(fixedOutcome{win: false}).Search(ranges, history, Options{})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	r = report.Top[0]
	if r.WinRate != 0 {
		t.Errorf("WinRate = %g, want 0", r.WinRate)
	}
	if math.Abs(r.PnL-(-360)) > 1e-9 {
		t.Errorf("PnL = %g, want -360", r.PnL)
	}
}

func TestSearch_ResultsOrderedByWinRate(t *testing.T) {
	engine := NewEngine(NewRandomOutcome(42))

	report, err := engine.Search(DefaultRanges(), testHistory(100, 200, 300, 400, 500), Options{TopN: 50})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	for i := 1; i < len(report.Top); i++ {
		if report.Top[i].WinRate > report.Top[i-1].WinRate {
			t.Fatalf("Results not in descending win rate order at %d: %g > %g",
				i, report.Top[i].WinRate, report.Top[i-1].WinRate)
		}
	}
}

func TestSearch_DeterministicWithSeed(t *testing.T) {
	ranges := DefaultRanges()
	history := testHistory(100, 200, 300)

	a, err := NewEngine(NewRandomOutcome(7)).Search(ranges, history, Options{})
	if err != nil {
		t.Fatalf("First search failed: %v", err)
	}
	b, err := NewEngine(NewRandomOutcome(7)).Search(ranges, history, Options{})
	if err != nil {
		t.Fatalf("Second search failed: %v", err)
	}

	if len(a.Top) != len(b.Top) {
		t.Fatalf("Top length mismatch: %d vs %d", len(a.Top), len(b.Top))
	}
	for i := range a.Top {
		if a.Top[i].WinRate != b.Top[i].WinRate || a.Top[i].PnL != b.Top[i].PnL {
			t.Errorf("Result %d differs between identical seeded runs", i)
		}
		for k, v := range a.Top[i].Config {
			if b.Top[i].Config[k] != v {
				t.Errorf("Result %d config %s differs: %g vs %g", i, k, v, b.Top[i].Config[k])
			}
		}
	}
}

func TestSearch_TieBreakKeepsEnumerationOrder(t *testing.T) {
	ranges := []RangeSpec{
		{Name: "atr_mult", Range: domain.ParameterRange{Min: 1, Max: 3, Step: 1}},
	}

	// Every config wins every trade, so all win rates tie and the top
	// must preserve enumeration order: atr_mult 1, 2, 3.
	report, err := NewEngine(fixedOutcome{win: true}).Search(ranges, testHistory(100), Options{TopN: 3})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	want := []float64{1, 2, 3}
	for i, r := range report.Top {
		if r.Config["atr_mult"] != want[i] {
			t.Errorf("Position %d: atr_mult = %g, want %g", i, r.Config["atr_mult"], want[i])
		}
	}
}

func TestSearch_ConfigValuesCoverRange(t *testing.T) {
	ranges := []RangeSpec{
		{Name: "atr_mult", Range: domain.ParameterRange{Min: 0.5, Max: 1.5, Step: 0.1}},
	}

	report, err := NewEngine(fixedOutcome{win: true}).Search(ranges, testHistory(100), Options{TopN: 100})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if report.TotalTested != 11 {
		t.Fatalf("TotalTested = %d, want 11", report.TotalTested)
	}

	seen := make(map[float64]bool)
	for _, r := range report.Top {
		seen[r.Config["atr_mult"]] = true
	}
	for v := 0.5; v <= 1.51; v += 0.1 {
		rounded := math.Round(v*100) / 100
		if !seen[rounded] {
			t.Errorf("Value %g missing from enumerated grid", rounded)
		}
	}
}
