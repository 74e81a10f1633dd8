// Package gate validates incoming trade signals against the active
// strategy configuration and dispatches accepted signals for execution.
package gate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"trade-signal-lab/internal/domain"
	"trade-signal-lab/internal/observability"
	"trade-signal-lab/internal/storage"
)

// Gate rejection sentinels. Wrapped with detail at the rejection site;
// match with errors.Is.
var (
	// ErrMalformedSignal indicates the signal is missing symbol, side or
	// a positive price.
	ErrMalformedSignal = errors.New("malformed signal")

	// ErrNoActiveStrategy indicates no configuration has been promoted.
	ErrNoActiveStrategy = errors.New("no active strategy")

	// ErrStrategyMismatch indicates the signal's claimed identity does
	// not match the active configuration.
	ErrStrategyMismatch = errors.New("strategy mismatch")
)

// Dispatcher receives accepted signals. Satisfied by executor.Executor.
type Dispatcher interface {
	Execute(ctx context.Context, sig *domain.TradeSignal) *domain.ExecutionRecord
}

// Result describes what one ingestion produced.
type Result struct {
	Execution   *domain.ExecutionRecord
	TradeLogged bool
}

// Gate is the signal ingestion path: audit, validate, match identity,
// dispatch.
type Gate struct {
	configs    storage.StrategyConfigStore
	alerts     storage.AlertStore
	tradeLogs  storage.TradeLogStore
	dispatcher Dispatcher
	logger     *log.Logger

	now func() time.Time
}

// New creates a gate over the given stores and dispatcher.
func New(configs storage.StrategyConfigStore, alerts storage.AlertStore, tradeLogs storage.TradeLogStore, dispatcher Dispatcher, logger *log.Logger) *Gate {
	return &Gate{
		configs:    configs,
		alerts:     alerts,
		tradeLogs:  tradeLogs,
		dispatcher: dispatcher,
		logger:     logger,
		now:        time.Now,
	}
}

// Ingest runs one signal through the gate. Every signal leaves an audit
// row, accepted or not; audit failure is logged and counted but never
// blocks the pipeline. The identity check is an exact match on both
// strategy name and version against the single active configuration.
func (g *Gate) Ingest(ctx context.Context, sig *domain.TradeSignal) (*Result, error) {
	observability.RecordSignalReceived()
	g.audit(ctx, sig)

	if err := validate(sig); err != nil {
		observability.RecordSignalRejected("malformed")
		return nil, err
	}

	active, err := g.configs.GetActive(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			observability.RecordSignalRejected("no_active_strategy")
			return nil, ErrNoActiveStrategy
		}
		return nil, fmt.Errorf("load active config: %w", err)
	}

	if sig.Strategy != active.Strategy || sig.Version != active.Version {
		observability.RecordSignalRejected("strategy_mismatch")
		g.logger.Printf("[gate] rejected %s %s: signal %s/%s vs active %s/%s",
			sig.Symbol, sig.Side, sig.Strategy, sig.Version, active.Strategy, active.Version)
		return nil, fmt.Errorf("%w: signal %s/%s, active %s/%s",
			ErrStrategyMismatch, sig.Strategy, sig.Version, active.Strategy, active.Version)
	}

	result := &Result{}
	result.Execution = g.dispatcher.Execute(ctx, sig)

	if sig.HasClosureData() {
		if err := g.logClosure(ctx, sig); err != nil {
			g.logger.Printf("[gate] trade log append failed: %v", err)
		} else {
			result.TradeLogged = true
			observability.RecordTradeLog()
		}
	}

	return result, nil
}

// audit appends the raw signal to the alerts log, best effort.
func (g *Gate) audit(ctx context.Context, sig *domain.TradeSignal) {
	alert := &domain.AlertRecord{
		Symbol:    sig.Symbol,
		Side:      string(sig.Side),
		Price:     sig.Price,
		Strategy:  sig.Strategy,
		Version:   sig.Version,
		Raw:       sig.Raw,
		Timestamp: g.now().UnixMilli(),
	}
	if err := g.alerts.Insert(ctx, alert); err != nil {
		observability.RecordAlertAuditFailure()
		g.logger.Printf("[gate] alert audit append failed: %v", err)
	}
}

// logClosure records the finished trade for the optimization loop.
func (g *Gate) logClosure(ctx context.Context, sig *domain.TradeSignal) error {
	entry := &domain.TradeLogEntry{
		PnL:      *sig.PnL,
		ExitTime: *sig.ExitTime,
		Side:     sig.Side,
	}
	if sig.MCIAtEntry != nil {
		entry.MCIAtEntry = *sig.MCIAtEntry
	}
	if sig.ADXScoreEntry != nil {
		entry.ADXScoreAtEntry = *sig.ADXScoreEntry
	}
	if sig.SNRScoreEntry != nil {
		entry.SNRScoreAtEntry = *sig.SNRScoreEntry
	}
	if sig.EntryPrice != nil {
		entry.EntryPrice = *sig.EntryPrice
	}
	if sig.ExitPrice != nil {
		entry.ExitPrice = *sig.ExitPrice
	}
	return g.tradeLogs.Insert(ctx, entry)
}

func validate(sig *domain.TradeSignal) error {
	if sig.Symbol == "" {
		return fmt.Errorf("%w: missing symbol", ErrMalformedSignal)
	}
	if !sig.Side.Valid() {
		return fmt.Errorf("%w: invalid side %q", ErrMalformedSignal, sig.Side)
	}
	if sig.Price <= 0 {
		return fmt.Errorf("%w: price must be positive", ErrMalformedSignal)
	}
	return nil
}
