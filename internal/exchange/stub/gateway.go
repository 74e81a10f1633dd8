package stub

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"trade-signal-lab/internal/exchange"
)

// Gateway implements exchange.Gateway for testing. Markets and fills
// are scripted up front; calls are recorded for assertions.
type Gateway struct {
	mu sync.Mutex

	Markets map[string]*exchange.Market
	// FillPrice used for created orders; falls back to the requested
	// price when zero.
	FillPrice float64
	// FailLeverage makes SetLeverage return an error.
	FailLeverage bool
	// FailOrder makes CreateMarketOrder return an error.
	FailOrder bool

	LeverageCalls []LeverageCall
	OrderCalls    []OrderCall

	nextOrderID int
}

// LeverageCall records a SetLeverage invocation.
type LeverageCall struct {
	Symbol   string
	Leverage int
	Mode     exchange.MarginMode
}

// OrderCall records a CreateMarketOrder invocation.
type OrderCall struct {
	Symbol string
	Side   exchange.OrderSide
	Qty    float64
}

var _ exchange.Gateway = (*Gateway)(nil)

// NewGateway creates a stub gateway with no markets.
func NewGateway() *Gateway {
	return &Gateway{
		Markets: make(map[string]*exchange.Market),
	}
}

// AddLinearMarket scripts a leveraged linear market for a symbol.
func (g *Gateway) AddLinearMarket(symbol string) {
	g.Markets[symbol] = &exchange.Market{
		Symbol:   symbol,
		Linear:   true,
		Contract: true,
	}
}

// GetMarket returns the scripted market for a symbol.
func (g *Gateway) GetMarket(_ context.Context, symbol string) (*exchange.Market, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	market, ok := g.Markets[symbol]
	if !ok {
		return nil, exchange.ErrMarketNotFound
	}
	return market, nil
}

// SetLeverage records the call.
func (g *Gateway) SetLeverage(_ context.Context, symbol string, leverage int, mode exchange.MarginMode) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.LeverageCalls = append(g.LeverageCalls, LeverageCall{Symbol: symbol, Leverage: leverage, Mode: mode})
	if g.FailLeverage {
		return errors.New("leverage rejected")
	}
	return nil
}

// CreateMarketOrder records the call and returns a filled order.
func (g *Gateway) CreateMarketOrder(_ context.Context, symbol string, side exchange.OrderSide, qty float64) (*exchange.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.OrderCalls = append(g.OrderCalls, OrderCall{Symbol: symbol, Side: side, Qty: qty})
	if g.FailOrder {
		return nil, errors.New("order rejected")
	}

	fill := g.FillPrice
	g.nextOrderID++
	return &exchange.Order{
		ID:      fmt.Sprintf("stub-order-%d", g.nextOrderID),
		Symbol:  symbol,
		Side:    side,
		Status:  "closed",
		Average: fill,
		Filled:  qty,
		Cost:    fill * qty,
	}, nil
}
