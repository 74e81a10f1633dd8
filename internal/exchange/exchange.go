// Package exchange talks to the external derivatives exchange.
// The Gateway interface is the seam the executor depends on; the Bybit
// adapter is the production implementation and stub.Gateway the test one.
package exchange

import (
	"context"
	"errors"
)

// Gateway is the exchange collaborator used by the order executor.
type Gateway interface {
	// GetMarket resolves market metadata for a symbol.
	// Returns ErrMarketNotFound when the exchange does not list it.
	GetMarket(ctx context.Context, symbol string) (*Market, error)

	// SetLeverage sets leverage and margin mode for a symbol.
	SetLeverage(ctx context.Context, symbol string, leverage int, marginMode MarginMode) error

	// CreateMarketOrder places a market order and returns the exchange's
	// view of it, including fill price and quantity when available.
	CreateMarketOrder(ctx context.Context, symbol string, side OrderSide, qty float64) (*Order, error)
}

// OrderSide is the exchange-facing order direction.
type OrderSide string

// Order side constants.
const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// MarginMode selects how margin is allocated for a position.
type MarginMode string

// Margin mode constants. The executor always uses isolated margin.
const (
	MarginModeIsolated MarginMode = "isolated"
	MarginModeCross    MarginMode = "cross"
)

// Market describes an exchange instrument.
type Market struct {
	Symbol   string
	Base     string
	Quote    string
	Linear   bool // leveraged future/perpetual settled in quote asset
	Contract bool // any derivative (future, perpetual)
}

// Leveraged reports whether leverage and futures order semantics apply.
// Spot markets must never receive leveraged orders.
func (m *Market) Leveraged() bool {
	return m.Contract && m.Linear
}

// Order is the exchange's response to an order placement.
// Price and Average may both be zero when the exchange has not yet
// reported a fill.
type Order struct {
	ID      string
	Symbol  string
	Side    OrderSide
	Status  string  // closed | filled | rejected | ...
	Price   float64 // direct fill price
	Average float64 // average fill price
	Filled  float64 // filled quantity
	Cost    float64 // total cost in quote asset
}

// Closed reports whether the exchange considers the order fully executed.
func (o *Order) Closed() bool {
	return o.Status == "closed" || o.Status == "filled"
}

// FillPrice returns the best available fill price: the direct price when
// present, otherwise the average fill price.
func (o *Order) FillPrice() float64 {
	if o.Price > 0 {
		return o.Price
	}
	return o.Average
}

// Gateway errors.
var (
	// ErrMarketNotFound is returned when the symbol is not listed.
	ErrMarketNotFound = errors.New("market not found")
)

// Credentials is an API key pair for one environment.
type Credentials struct {
	APIKey string
	Secret string
}

// Configured reports whether both halves of the pair are present.
func (c Credentials) Configured() bool {
	return c.APIKey != "" && c.Secret != ""
}
