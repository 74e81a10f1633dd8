package executor

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"trade-signal-lab/internal/domain"
	"trade-signal-lab/internal/exchange"
	"trade-signal-lab/internal/idhash"
	"trade-signal-lab/internal/observability"
	"trade-signal-lab/internal/storage"
)

// PriceSource provides the latest observed price for a symbol. The
// paper executor uses it to stamp realistic fills; exchange.MarkPriceFeed
// satisfies it. Subscribe is idempotent; the first fill for a symbol
// may land before a tick arrives and falls back to the alert price.
type PriceSource interface {
	Subscribe(symbol string) error
	Get(symbol string) (float64, bool)
}

// Config configures an Executor.
type Config struct {
	// Paper disables exchange calls; fills are simulated at the alert
	// price or the live mark price when a PriceSource is attached.
	Paper bool
	// MarginMode used when setting leverage. Defaults to isolated.
	MarginMode exchange.MarginMode
}

// Executor places market orders for accepted signals and writes the
// audit row for every attempt. Execute never returns an error: any
// failure is folded into the record's Status and Notes so the audit
// trail stays complete even when the exchange is down.
type Executor struct {
	mainnet    exchange.Gateway
	testnet    exchange.Gateway
	executions storage.ExecutionStore
	prices     PriceSource
	config     Config
	logger     *log.Logger

	now func() time.Time
	seq atomic.Uint64 // disambiguates records created in the same millisecond
}

// New creates an executor. Either gateway may be nil; signals routed to
// a missing gateway fail with a credentials note. prices may be nil.
func New(mainnet, testnet exchange.Gateway, executions storage.ExecutionStore, prices PriceSource, config Config, logger *log.Logger) *Executor {
	if config.MarginMode == "" {
		config.MarginMode = exchange.MarginModeIsolated
	}
	return &Executor{
		mainnet:    mainnet,
		testnet:    testnet,
		executions: executions,
		prices:     prices,
		config:     config,
		logger:     logger,
		now:        time.Now,
	}
}

// Execute places the order described by the signal and persists exactly
// one ExecutionRecord for the attempt.
func (e *Executor) Execute(ctx context.Context, sig *domain.TradeSignal) *domain.ExecutionRecord {
	start := time.Now()
	ts := e.now().UnixMilli()
	record := &domain.ExecutionRecord{
		ExecutionID: idhash.ComputeExecutionID(sig.Symbol, string(sig.Side), sig.Strategy, sig.Version, ts, e.seq.Add(1)),
		Symbol:      sig.Symbol,
		Side:        sig.Side,
		EntryPrice:  sig.Price,
		Strategy:    sig.Strategy,
		Version:     sig.Version,
		Timestamp:   ts,
	}

	if e.config.Paper {
		e.executePaper(sig, record)
	} else {
		e.executeLive(ctx, sig, record)
	}

	if err := e.executions.Insert(ctx, record); err != nil {
		e.logger.Printf("[executor] failed to persist execution %s: %v", record.ExecutionID, err)
	}
	observability.RecordExecution(record.Status, time.Since(start).Seconds())
	return record
}

// executeLive routes the order to the exchange.
func (e *Executor) executeLive(ctx context.Context, sig *domain.TradeSignal, record *domain.ExecutionRecord) {
	gateway := e.mainnet
	if sig.IsTestnet {
		gateway = e.testnet
	}
	if gateway == nil {
		e.fail(record, "no credentials configured for requested network")
		return
	}

	market, err := gateway.GetMarket(ctx, sig.Symbol)
	if err != nil {
		observability.RecordExchangeCallError()
		e.fail(record, fmt.Sprintf("market lookup: %v", err))
		return
	}
	if !market.Leveraged() {
		e.fail(record, fmt.Sprintf("market %s does not support leverage", sig.Symbol))
		return
	}

	if sig.Leverage > 0 {
		if err := gateway.SetLeverage(ctx, sig.Symbol, sig.Leverage, e.config.MarginMode); err != nil {
			observability.RecordExchangeCallError()
			e.fail(record, fmt.Sprintf("set leverage: %v", err))
			return
		}
	}

	side := exchange.OrderSideBuy
	if sig.Side == domain.SideShort {
		side = exchange.OrderSideSell
	}

	order, err := gateway.CreateMarketOrder(ctx, sig.Symbol, side, sig.Qty)
	if err != nil {
		observability.RecordExchangeCallError()
		e.fail(record, fmt.Sprintf("create order: %v", err))
		return
	}

	if fill := order.FillPrice(); fill > 0 {
		record.ExecutedPrice = &fill
	}
	if order.Filled > 0 {
		qty := order.Filled
		record.ExecutedQty = &qty
	}
	record.Notes = fmt.Sprintf("order %s", order.ID)
	if order.Closed() {
		record.Status = domain.ExecutionStatusExecuted
	} else {
		record.Status = order.Status
	}
	e.logger.Printf("[executor] %s %s %s qty=%g status=%s", record.Status, sig.Symbol, sig.Side, sig.Qty, order.Status)
}

// executePaper simulates a fill without contacting the exchange.
func (e *Executor) executePaper(sig *domain.TradeSignal, record *domain.ExecutionRecord) {
	fill := sig.Price
	if e.prices != nil {
		if err := e.prices.Subscribe(sig.Symbol); err != nil {
			e.logger.Printf("[executor] mark price subscribe %s: %v", sig.Symbol, err)
		}
		if mark, ok := e.prices.Get(sig.Symbol); ok {
			fill = mark
		}
	}
	if fill <= 0 {
		e.fail(record, "paper fill price unavailable")
		return
	}

	qty := sig.Qty
	record.ExecutedPrice = &fill
	record.ExecutedQty = &qty
	record.Status = domain.ExecutionStatusExecuted
	record.Notes = "paper"
	e.logger.Printf("[executor] paper fill %s %s qty=%g price=%g", sig.Symbol, sig.Side, qty, fill)
}

func (e *Executor) fail(record *domain.ExecutionRecord, reason string) {
	record.Status = domain.ExecutionStatusFailed
	record.Notes = reason
	e.logger.Printf("[executor] execution failed for %s: %s", record.Symbol, reason)
}
