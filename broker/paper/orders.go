package paper

import (
	"context"
	"fmt"

	"github.com/rustyeddy/autotrader/broker"
	"github.com/rustyeddy/autotrader/ledger"
	"github.com/rustyeddy/autotrader/market"
	"github.com/rustyeddy/autotrader/pkg/id"
)

type order struct {
	req    broker.OrderRequest
	result broker.OrderResult
	polls  int
}

// position is the net exposure per symbol. qty is signed: positive long.
type position struct {
	contract *market.Contract
	qty      float64
	entry    float64
}

func (e *Exchange) PlaceOrder(ctx context.Context, req broker.OrderRequest) (broker.OrderResult, error) {
	if err := ctx.Err(); err != nil {
		return broker.OrderResult{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.enterLocked("PlaceOrder"); err != nil {
		return broker.OrderResult{}, err
	}
	if req.Contract == nil {
		return broker.OrderResult{}, fmt.Errorf("place order: %w: missing contract", broker.ErrRejected)
	}
	c, ok := e.contracts[req.Contract.Symbol()]
	if !ok {
		return broker.OrderResult{}, fmt.Errorf("place order %s: %w", req.Contract.Symbol(), broker.ErrNotFound)
	}
	qty := c.RoundQuantity(req.Quantity)
	if qty <= 0 {
		return broker.OrderResult{}, fmt.Errorf("place order %s: %w: quantity %v", c.Symbol(), broker.ErrRejected, req.Quantity)
	}
	if req.Type == "" {
		req.Type = broker.Market
	}
	switch req.Type {
	case broker.Market:
	case broker.Limit:
		if req.Price <= 0 {
			return broker.OrderResult{}, fmt.Errorf("place order %s: %w: limit price %v", c.Symbol(), broker.ErrRejected, req.Price)
		}
		req.Price = c.RoundPrice(req.Price)
	default:
		return broker.OrderResult{}, fmt.Errorf("place order %s: %w: %s orders not supported", c.Symbol(), broker.ErrRejected, req.Type)
	}
	switch req.TimeInForce {
	case "":
		req.TimeInForce = broker.GTC
	case broker.GTC, broker.IOC, broker.FOK:
	default:
		return broker.OrderResult{}, fmt.Errorf("place order %s: %w: time in force %q", c.Symbol(), broker.ErrRejected, req.TimeInForce)
	}
	if req.ReduceOnly {
		p := e.positions[c.Symbol()]
		if p == nil || p.qty == 0 || sameDirection(p.qty, req.Side) {
			return broker.OrderResult{}, fmt.Errorf("place order %s: %w: nothing to reduce", c.Symbol(), broker.ErrRejected)
		}
	}
	req.Contract = c
	req.Quantity = qty

	o := &order{
		req: req,
		result: broker.OrderResult{
			OrderID: id.Prefixed("ord"),
			Status:  broker.StatusNew,
		},
	}
	e.orders[o.result.OrderID] = o
	// IOC and FOK never rest, so they are matched on arrival.
	if e.cfg.FillAfterPolls <= 0 || req.TimeInForce != broker.GTC {
		if err := e.fillLocked(o); err != nil {
			return broker.OrderResult{}, err
		}
	}
	return o.result, nil
}

func (e *Exchange) OrderStatus(ctx context.Context, c *market.Contract, orderID string) (broker.OrderResult, error) {
	if err := ctx.Err(); err != nil {
		return broker.OrderResult{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.enterLocked("OrderStatus"); err != nil {
		return broker.OrderResult{}, err
	}
	o, ok := e.orders[orderID]
	if !ok || (c != nil && o.req.Contract.Symbol() != c.Symbol()) {
		return broker.OrderResult{}, fmt.Errorf("order %q on %s: %w", orderID, e.name, broker.ErrNotFound)
	}
	if o.result.Status.Terminal() {
		return o.result, nil
	}
	o.polls++
	if o.polls >= e.cfg.FillAfterPolls {
		if err := e.fillLocked(o); err != nil {
			return broker.OrderResult{}, err
		}
	}
	return o.result, nil
}

// fillLocked executes o at the touch: buys at the ask, sells at the bid. A
// limit that does not cross rests when GTC and expires otherwise.
func (e *Exchange) fillLocked(o *order) error {
	c := o.req.Contract
	q, err := e.quotes.Get(c.Symbol())
	if err != nil {
		return fmt.Errorf("fill %s: %w", o.result.OrderID, err)
	}
	price := q.Ask
	if o.req.Side == broker.Sell {
		price = q.Bid
	}
	if o.req.Type == broker.Limit && !marketable(o.req.Side, price, o.req.Price) {
		if o.req.TimeInForce != broker.GTC {
			o.result.Status = broker.StatusExpired
		}
		return nil
	}

	qty := o.req.Quantity
	if o.req.ReduceOnly {
		if p := e.positions[c.Symbol()]; p != nil && abs(p.qty) < qty {
			qty = abs(p.qty)
		}
	}

	e.applyFillLocked(c, o.req.Side, qty, price)
	o.result.Status = broker.StatusFilled
	o.result.AvgFillPrice = price
	o.result.FilledQty = qty
	return nil
}

// applyFillLocked nets the fill into the symbol position and realizes PnL
// into the margin asset wallet for any reduced quantity.
func (e *Exchange) applyFillLocked(c *market.Contract, side broker.Side, qty, price float64) {
	p := e.positions[c.Symbol()]
	if p == nil {
		p = &position{contract: c}
		e.positions[c.Symbol()] = p
	}
	signed := qty
	if side == broker.Sell {
		signed = -qty
	}

	switch {
	case p.qty == 0 || sameDirection(p.qty, side):
		total := abs(p.qty) + qty
		p.entry = (p.entry*abs(p.qty) + price*qty) / total
		p.qty += signed
	default:
		closed := qty
		if closed > abs(p.qty) {
			closed = abs(p.qty)
		}
		e.wallet[c.MarginAsset()] += ledger.PnL(c, sideOf(p.qty), p.entry, price, closed)
		if rest := qty - closed; rest > 0 {
			// flipped through zero: the remainder opens at the fill price
			p.qty = c.RoundQuantity(rest)
			if side == broker.Sell {
				p.qty = -p.qty
			}
			p.entry = price
			return
		}
		p.qty = c.RoundQuantity(p.qty + signed)
		if p.qty == 0 {
			p.entry = 0
		}
	}
}

func (e *Exchange) unrealizedLocked(asset string) float64 {
	var upnl float64
	for sym, p := range e.positions {
		if p.qty == 0 || p.contract.MarginAsset() != asset {
			continue
		}
		q, err := e.quotes.Get(sym)
		if err != nil {
			continue
		}
		side := sideOf(p.qty)
		upnl += ledger.PnL(p.contract, side, p.entry, ledger.RefPrice(side, q.Bid, q.Ask), abs(p.qty))
	}
	return upnl
}

// Position returns the signed net quantity and average entry for symbol.
func (e *Exchange) Position(symbol string) (qty, entry float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if p := e.positions[symbol]; p != nil {
		return p.qty, p.entry
	}
	return 0, 0
}

func sideOf(qty float64) ledger.Side {
	if qty < 0 {
		return ledger.Short
	}
	return ledger.Long
}

func sameDirection(qty float64, side broker.Side) bool {
	return (qty > 0 && side == broker.Buy) || (qty < 0 && side == broker.Sell)
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}

// marketable reports whether a limit at limit crosses the touch.
func marketable(side broker.Side, touch, limit float64) bool {
	if side == broker.Buy {
		return touch <= limit
	}
	return touch >= limit
}
