// Package backtest implements an offline grid search over recorded
// alert history.
package backtest

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"trade-signal-lab/internal/domain"
)

// DefaultWinProbability is the historical success rate the default
// outcome model simulates with.
const DefaultWinProbability = 0.52

// DefaultTopN is the number of top results returned and persisted.
const DefaultTopN = 5

// lossFactor is the fraction of the target gain given back on a loss.
const lossFactor = -0.8

// ErrNoHistory indicates there are no priced alerts to simulate over.
var ErrNoHistory = errors.New("no alert history to test")

// RangeSpec is one named parameter range. Order of specs defines the
// enumeration order of the grid.
type RangeSpec struct {
	Name  string
	Range domain.ParameterRange
}

// DefaultRanges returns the standard search grid.
func DefaultRanges() []RangeSpec {
	return []RangeSpec{
		{Name: "atr_mult", Range: domain.ParameterRange{Min: 0.5, Max: 1.5, Step: 0.1}},
		{Name: "tp_mult", Range: domain.ParameterRange{Min: 0.8, Max: 2.0, Step: 0.2}},
		{Name: "qqe_rsi_len", Range: domain.ParameterRange{Min: 10, Max: 20, Step: 2}},
		{Name: "qqe_smooth", Range: domain.ParameterRange{Min: 2, Max: 10, Step: 2}},
	}
}

// OutcomeModel decides the result of one simulated trade.
type OutcomeModel interface {
	Win(alert *domain.AlertRecord, config map[string]float64) bool
}

// RandomOutcome is the default model: a seeded coin weighted at the
// historical win probability. The seed makes runs reproducible.
type RandomOutcome struct {
	rng *rand.Rand
	p   float64
}

// NewRandomOutcome creates a model with the given seed and the default
// win probability.
func NewRandomOutcome(seed int64) *RandomOutcome {
	return &RandomOutcome{rng: rand.New(rand.NewSource(seed)), p: DefaultWinProbability}
}

// Win flips the weighted coin.
func (m *RandomOutcome) Win(_ *domain.AlertRecord, _ map[string]float64) bool {
	return m.rng.Float64() < m.p
}

// Options tunes one search run.
type Options struct {
	// TopN results to return. Defaults to DefaultTopN.
	TopN int
	// Strategy and Version stamped on the results.
	Strategy string
	Version  string
}

// SearchReport is the outcome of one grid search.
type SearchReport struct {
	Top         []*domain.BacktestResult
	TotalTested int
}

// Engine simulates every configuration in a parameter grid over the
// recorded alert history. Pure: no storage, no clock.
type Engine struct {
	model OutcomeModel
}

// NewEngine creates an engine with the given outcome model.
func NewEngine(model OutcomeModel) *Engine {
	return &Engine{model: model}
}

// Search enumerates the full Cartesian product of the ranges in their
// declared order, simulates each configuration over every historical
// alert, and returns the top results by win rate. Ties keep enumeration
// order. Configurations that produce zero trades are excluded.
func (e *Engine) Search(ranges []RangeSpec, history []*domain.AlertRecord, opts Options) (*SearchReport, error) {
	if len(ranges) == 0 {
		return nil, fmt.Errorf("no parameter ranges given")
	}
	if len(history) == 0 {
		return nil, ErrNoHistory
	}

	topN := opts.TopN
	if topN <= 0 {
		topN = DefaultTopN
	}

	results := make([]*domain.BacktestResult, 0, GridSize(ranges))
	enumerate(ranges, func(config map[string]float64) {
		if r := e.simulate(config, history, opts); r != nil {
			results = append(results, r)
		}
	})

	total := len(results)
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].WinRate > results[j].WinRate
	})
	if len(results) > topN {
		results = results[:topN]
	}

	return &SearchReport{Top: results, TotalTested: total}, nil
}

// simulate runs one configuration over the full history.
func (e *Engine) simulate(config map[string]float64, history []*domain.AlertRecord, opts Options) *domain.BacktestResult {
	var wins, losses int
	var pnl float64

	tpMult := config["tp_mult"]
	for _, alert := range history {
		if e.model.Win(alert, config) {
			wins++
			pnl += alert.Price * tpMult
		} else {
			losses++
			pnl += alert.Price * tpMult * lossFactor
		}
	}

	trades := wins + losses
	if trades == 0 {
		return nil
	}

	cloned := make(map[string]float64, len(config))
	for k, v := range config {
		cloned[k] = v
	}
	return &domain.BacktestResult{
		Config:   cloned,
		Strategy: opts.Strategy,
		Version:  opts.Version,
		WinRate:  float64(wins) / float64(trades),
		PnL:      pnl,
		Trades:   trades,
	}
}

// GridSize returns the number of configurations the ranges enumerate.
func GridSize(ranges []RangeSpec) int {
	size := 1
	for _, r := range ranges {
		size *= r.Range.Count()
	}
	return size
}

// enumerate walks the Cartesian product, first range outermost. The
// callback receives a map that is reused between calls; callers that
// keep it must clone.
func enumerate(ranges []RangeSpec, fn func(map[string]float64)) {
	config := make(map[string]float64, len(ranges))

	var walk func(depth int)
	walk = func(depth int) {
		if depth == len(ranges) {
			fn(config)
			return
		}
		spec := ranges[depth]
		count := spec.Range.Count()
		for i := 0; i < count; i++ {
			// i*step from min avoids drift from repeated float addition.
			config[spec.Name] = roundParam(spec.Range.Min + float64(i)*spec.Range.Step)
			walk(depth + 1)
		}
	}
	walk(0)
}

// roundParam snaps grid values to two decimals, matching how the grid
// is declared.
func roundParam(v float64) float64 {
	return math.Round(v*100) / 100
}
