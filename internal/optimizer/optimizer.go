// Package optimizer implements the advisory-driven optimization loop:
// analyze recent closed trades, ask the advisor for one parameter
// adjustment, and promote the merged configuration.
package optimizer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"trade-signal-lab/internal/advisory"
	"trade-signal-lab/internal/domain"
	"trade-signal-lab/internal/idhash"
	"trade-signal-lab/internal/observability"
	"trade-signal-lab/internal/storage"
)

// DefaultTradeWindow is how many recent closed trades one run analyzes.
const DefaultTradeWindow = 50

// Optimizer run sentinels.
var (
	// ErrNoTrades indicates there is nothing to analyze yet.
	ErrNoTrades = errors.New("no trades to analyze")

	// ErrNoActiveConfig indicates no configuration has been promoted.
	ErrNoActiveConfig = errors.New("no active strategy configuration")

	// ErrAdvisory indicates the advisory reply was unusable. The active
	// configuration is left untouched.
	ErrAdvisory = errors.New("advisory error")
)

// Outcome describes one successful optimization run.
type Outcome struct {
	TradesAnalyzed int
	WinRate        float64
	TotalPnL       float64
	Suggestion     *advisory.Suggestion
	NewConfig      *domain.StrategyConfig
}

// Optimizer runs the feedback loop over the trade ledger.
type Optimizer struct {
	tradeLogs storage.TradeLogStore
	configs   storage.StrategyConfigStore
	advisor   advisory.Advisor
	logger    *log.Logger

	window int
	now    func() time.Time
}

// New creates an optimizer with the default trade window.
func New(tradeLogs storage.TradeLogStore, configs storage.StrategyConfigStore, advisor advisory.Advisor, logger *log.Logger) *Optimizer {
	return &Optimizer{
		tradeLogs: tradeLogs,
		configs:   configs,
		advisor:   advisor,
		logger:    logger,
		window:    DefaultTradeWindow,
		now:       time.Now,
	}
}

// Run executes one optimization pass. The advisor proposes exactly one
// change to a tunable parameter; anything else aborts without touching
// the active configuration.
func (o *Optimizer) Run(ctx context.Context) (*Outcome, error) {
	trades, err := o.tradeLogs.GetRecent(ctx, o.window)
	if err != nil {
		observability.RecordOptimizationRun("error")
		return nil, fmt.Errorf("load trade logs: %w", err)
	}
	if len(trades) == 0 {
		observability.RecordOptimizationRun("no_trades")
		return nil, ErrNoTrades
	}

	active, err := o.configs.GetActive(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			observability.RecordOptimizationRun("no_config")
			return nil, ErrNoActiveConfig
		}
		observability.RecordOptimizationRun("error")
		return nil, fmt.Errorf("load active config: %w", err)
	}

	report := analyze(trades, active)
	o.logger.Printf("[optimizer] analyzed %d trades: winRate=%.2f%% pnl=%.2f",
		report.Trades, report.WinRate*100, report.TotalPnL)

	advisoryStart := time.Now()
	suggestion, err := o.advisor.Suggest(ctx, report)
	observability.DefaultMetrics.AdvisoryLatency.Observe(time.Since(advisoryStart).Seconds())
	if err != nil {
		observability.RecordOptimizationRun("advisory_error")
		return nil, fmt.Errorf("%w: %v", ErrAdvisory, err)
	}
	if !domain.IsTunableParameter(suggestion.Parameter) {
		observability.RecordOptimizationRun("advisory_error")
		return nil, fmt.Errorf("%w: parameter %q is not tunable", ErrAdvisory, suggestion.Parameter)
	}

	o.logger.Printf("[optimizer] suggestion: %s = %g", suggestion.Parameter, suggestion.Value)

	merged := active.CloneParameters()
	merged[suggestion.Parameter] = suggestion.Value

	promotedAt := o.now().UnixMilli()
	next := &domain.StrategyConfig{
		ConfigID:   idhash.ComputeConfigID(active.Strategy, active.Version, merged, promotedAt),
		Strategy:   active.Strategy,
		Version:    active.Version,
		Parameters: merged,
		Active:     true,
		PromotedAt: promotedAt,
		CreatedAt:  promotedAt,
	}
	if err := o.configs.Promote(ctx, next); err != nil {
		observability.RecordOptimizationRun("error")
		return nil, fmt.Errorf("promote config: %w", err)
	}

	observability.RecordOptimizationRun("promoted")
	observability.RecordPromotion()
	observability.DefaultMetrics.LastSuccessfulOptimization.SetToCurrentTime()

	return &Outcome{
		TradesAnalyzed: report.Trades,
		WinRate:        report.WinRate,
		TotalPnL:       report.TotalPnL,
		Suggestion:     suggestion,
		NewConfig:      next,
	}, nil
}

// analyze folds the trade window into the fixed-shape report the
// advisor receives. Indicator means are taken over losing trades only;
// those are the entries worth explaining.
func analyze(trades []*domain.TradeLogEntry, active *domain.StrategyConfig) advisory.PerformanceReport {
	report := advisory.PerformanceReport{
		Strategy:   active.Strategy,
		Version:    active.Version,
		Trades:     len(trades),
		Parameters: active.CloneParameters(),
	}

	var mciSum, adxSum, snrSum float64
	for _, t := range trades {
		report.TotalPnL += t.PnL
		if t.Win() {
			report.Wins++
		} else {
			report.Losses++
			mciSum += t.MCIAtEntry
			adxSum += t.ADXScoreAtEntry
			snrSum += t.SNRScoreAtEntry
		}
	}

	report.WinRate = float64(report.Wins) / float64(report.Trades)
	if report.Losses > 0 {
		n := float64(report.Losses)
		report.LossMeanMCI = mciSum / n
		report.LossMeanADX = adxSum / n
		report.LossMeanSNR = snrSum / n
	}
	return report
}
