// Package broker defines the exchange capability the strategy engine trades
// through. Each exchange provides its own Client; the engine never inspects
// which exchange it is talking to.
package broker

import (
	"context"
	"errors"

	"github.com/rustyeddy/autotrader/market"
)

var (
	ErrNotFound = errors.New("not found")
	ErrRejected = errors.New("order rejected")
)

type Side string

const (
	Buy  Side = "buy"
	Sell Side = "sell"
)

// Opposite returns the side that reduces a position opened with s.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

type OrderType string

const (
	Market OrderType = "MARKET"
	Limit  OrderType = "LIMIT"
)

type TimeInForce string

const (
	GTC TimeInForce = "GTC"
	IOC TimeInForce = "IOC"
	FOK TimeInForce = "FOK"
)

type OrderStatus string

const (
	StatusNew             OrderStatus = "new"
	StatusPartiallyFilled OrderStatus = "partially_filled"
	StatusFilled          OrderStatus = "filled"
	StatusCanceled        OrderStatus = "canceled"
	StatusRejected        OrderStatus = "rejected"
	StatusExpired         OrderStatus = "expired"
)

// Terminal reports whether no further fills can happen.
func (s OrderStatus) Terminal() bool {
	switch s {
	case StatusFilled, StatusCanceled, StatusRejected, StatusExpired:
		return true
	}
	return false
}

type OrderRequest struct {
	Contract    *market.Contract
	Side        Side
	Quantity    float64
	Type        OrderType
	Price       float64     // limit orders only
	TimeInForce TimeInForce // optional
	ReduceOnly  bool
}

type OrderResult struct {
	OrderID      string
	Status       OrderStatus
	AvgFillPrice float64
	FilledQty    float64
}

func (r OrderResult) Filled() bool {
	return r.Status == StatusFilled
}

// Balance is the account state for one asset.
type Balance struct {
	Asset             string
	MarginBalance     float64
	WalletBalance     float64
	InitialMargin     float64
	MaintenanceMargin float64
	UnrealizedPnL     float64
}

// Handler receives streaming market data. Calls for one subscription arrive
// in exchange delivery order.
type Handler interface {
	OnTick(c *market.Contract, price, size float64, ts int64)
	OnQuote(c *market.Contract, bid, ask float64)
}

// Client is the per-exchange capability. Any non-nil error is a transport or
// lookup failure; callers treat it as "no result".
type Client interface {
	Name() string
	Contract(symbol string) (*market.Contract, error)
	Contracts() []*market.Contract

	Balance(ctx context.Context, asset string) (Balance, error)
	HistoricalCandles(ctx context.Context, c *market.Contract, tf market.Timeframe) ([]market.Candle, error)

	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	OrderStatus(ctx context.Context, c *market.Contract, orderID string) (OrderResult, error)

	// TradeSize sizes a position from balancePct percent of the contract's
	// margin asset at price, rounded to the lot size.
	TradeSize(ctx context.Context, c *market.Contract, price, balancePct float64) (float64, error)

	// Subscribe starts delivering ticks and quotes for c to h. The returned
	// function stops delivery and may be called more than once.
	Subscribe(c *market.Contract, h Handler) (unsubscribe func(), err error)
}
