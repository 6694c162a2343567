// Package ledger tracks the trades of one strategy instance and marks them to
// market with contract-model arithmetic.
//
// A Ledger is not safe for concurrent use; its owning instance serialises
// every call under its own lock.
package ledger

import (
	"time"

	"github.com/rustyeddy/autotrader/broker"
	"github.com/rustyeddy/autotrader/market"
)

type Side string

const (
	Long  Side = "long"
	Short Side = "short"
)

// OrderSide is the side of the order that opens a position on s.
func (s Side) OrderSide() broker.Side {
	if s == Short {
		return broker.Sell
	}
	return broker.Buy
}

type Status string

const (
	Pending Status = "pending"
	Open    Status = "open"
	Closed  Status = "closed"
)

// Active reports whether the trade still occupies the instance's single
// position slot.
func (s Status) Active() bool {
	return s == Pending || s == Open
}

// Exit reasons.
const (
	ReasonTakeProfit = "TakeProfit"
	ReasonStopLoss   = "StopLoss"
	ReasonManual     = "ManualClose"
	ReasonVoided     = "ManualVoid"
)

type Trade struct {
	ID       string
	Time     int64 // creation, epoch ms
	Contract *market.Contract
	Strategy string
	Side     Side
	Quantity float64

	EntryID    string
	EntryPrice float64 // zero until the entry order is confirmed
	Status     Status
	PnL        float64

	ExitID    string
	ExitPrice float64
	CloseTime int64
	Reason    string

	closing bool
}

// Closing reports whether a reduce order is in flight for the trade.
func (t Trade) Closing() bool { return t.closing }

func (t Trade) OpenedAt() time.Time {
	return time.UnixMilli(t.Time).UTC()
}

// RefPrice is the price a position would close at: the bid for a long, the
// ask for a short.
func RefPrice(side Side, bid, ask float64) float64 {
	if side == Short {
		return ask
	}
	return bid
}

// PnL values a position of qty contracts on c from entry to ref.
//
//	inverse:        (1/entry - 1/ref) * qty * multiplier
//	linear, quanto: (ref - entry) * qty * multiplier
//
// The sign is flipped for a short.
func PnL(c *market.Contract, side Side, entry, ref, qty float64) float64 {
	if entry <= 0 || ref <= 0 {
		return 0
	}
	var pnl float64
	if c.Model() == market.Inverse {
		pnl = (1/entry - 1/ref) * qty * c.Multiplier()
	} else {
		pnl = (ref - entry) * qty * c.Multiplier()
	}
	if side == Short {
		pnl = -pnl
	}
	return pnl
}

// MovePct is the favourable price move from entry to ref in percent;
// negative when the market moved against the position.
func MovePct(side Side, entry, ref float64) float64 {
	if entry <= 0 {
		return 0
	}
	move := (ref - entry) / entry * 100
	if side == Short {
		move = -move
	}
	return move
}

// ExitReason returns the take-profit or stop-loss reason when the move from
// entry to ref reaches +takeProfit or -stopLoss percent. Non-positive
// thresholds are disabled.
func ExitReason(side Side, entry, ref, takeProfit, stopLoss float64) string {
	move := MovePct(side, entry, ref)
	switch {
	case takeProfit > 0 && move >= takeProfit:
		return ReasonTakeProfit
	case stopLoss > 0 && move <= -stopLoss:
		return ReasonStopLoss
	}
	return ""
}
