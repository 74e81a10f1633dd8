package backtest

import (
	"context"
	"fmt"
	"log"
	"time"

	"trade-signal-lab/internal/observability"
	"trade-signal-lab/internal/storage"
)

// Runner wires the pure engine to storage: it loads the recorded alert
// history, runs the grid search, and persists the top results.
type Runner struct {
	engine  *Engine
	alerts  storage.AlertStore
	results storage.BacktestResultStore
	logger  *log.Logger
}

// NewRunner creates a runner over the given stores.
func NewRunner(engine *Engine, alerts storage.AlertStore, results storage.BacktestResultStore, logger *log.Logger) *Runner {
	return &Runner{
		engine:  engine,
		alerts:  alerts,
		results: results,
		logger:  logger,
	}
}

// Run executes one full search over all priced alerts and stores the
// top results for review.
func (r *Runner) Run(ctx context.Context, ranges []RangeSpec, opts Options) (*SearchReport, error) {
	start := time.Now()

	history, err := r.alerts.GetPriced(ctx)
	if err != nil {
		return nil, fmt.Errorf("load alert history: %w", err)
	}

	report, err := r.engine.Search(ranges, history, opts)
	if err != nil {
		return nil, err
	}

	if err := r.results.InsertBulk(ctx, report.Top); err != nil {
		return nil, fmt.Errorf("store backtest results: %w", err)
	}

	observability.RecordBacktest(report.TotalTested, time.Since(start).Seconds())
	r.logger.Printf("[backtest] tested %d configs over %d alerts in %s, stored top %d",
		report.TotalTested, len(history), time.Since(start).Round(time.Millisecond), len(report.Top))
	return report, nil
}
