package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrTradeNotFound     = errors.New("trade not found")
	ErrPositionOngoing   = errors.New("position already ongoing")
	ErrInvalidTransition = errors.New("invalid trade transition")
)

// Ledger is the ordered, append-only list of trades for one instance.
type Ledger struct {
	trades []*Trade
}

func New() *Ledger {
	return &Ledger{}
}

// Len returns the number of trades recorded.
func (l *Ledger) Len() int { return len(l.trades) }

// Ongoing reports whether a pending or open trade exists.
func (l *Ledger) Ongoing() bool {
	return l.active() != nil
}

// Active returns a copy of the pending or open trade.
func (l *Ledger) Active() (Trade, bool) {
	t := l.active()
	if t == nil {
		return Trade{}, false
	}
	return *t, true
}

func (l *Ledger) active() *Trade {
	for i := len(l.trades) - 1; i >= 0; i-- {
		if l.trades[i].Status.Active() {
			return l.trades[i]
		}
	}
	return nil
}

// Add records a new trade. It refuses a second active trade.
func (l *Ledger) Add(t Trade) error {
	if t.ID == "" {
		return fmt.Errorf("add trade: missing id")
	}
	if t.Status == "" {
		t.Status = Pending
	}
	if t.Status.Active() && l.Ongoing() {
		return fmt.Errorf("add trade %s: %w", t.ID, ErrPositionOngoing)
	}
	t.closing = false
	l.trades = append(l.trades, &t)
	return nil
}

// Get returns a copy of the trade with id.
func (l *Ledger) Get(id string) (Trade, error) {
	t, err := l.find(id)
	if err != nil {
		return Trade{}, err
	}
	return *t, nil
}

// Trades returns copies of every trade, oldest first.
func (l *Ledger) Trades() []Trade {
	out := make([]Trade, len(l.trades))
	for i, t := range l.trades {
		out[i] = *t
	}
	return out
}

// Confirm sets the entry price of the pending trade opened by orderID and
// moves it to open. Confirming an already open trade is a no-op.
func (l *Ledger) Confirm(orderID string, price float64) (Trade, error) {
	for _, t := range l.trades {
		if t.EntryID != orderID {
			continue
		}
		switch t.Status {
		case Open:
			return *t, nil
		case Pending:
			if price <= 0 {
				return *t, fmt.Errorf("confirm %s: %w: entry price %v", t.ID, ErrInvalidTransition, price)
			}
			t.EntryPrice = price
			t.Status = Open
			return *t, nil
		default:
			return *t, fmt.Errorf("confirm %s: %w: trade is %s", t.ID, ErrInvalidTransition, t.Status)
		}
	}
	return Trade{}, fmt.Errorf("confirm order %s: %w", orderID, ErrTradeNotFound)
}

// Void closes the pending trade opened by orderID without an entry, for an
// order the exchange cancelled, rejected or expired.
func (l *Ledger) Void(orderID, reason string, ts int64) (Trade, error) {
	for _, t := range l.trades {
		if t.EntryID != orderID {
			continue
		}
		if t.Status != Pending {
			return *t, fmt.Errorf("void %s: %w: trade is %s", t.ID, ErrInvalidTransition, t.Status)
		}
		t.Status = Closed
		t.Reason = reason
		t.CloseTime = ts
		return *t, nil
	}
	return Trade{}, fmt.Errorf("void order %s: %w", orderID, ErrTradeNotFound)
}

// Mark recomputes PnL in place for every open trade on symbol and returns
// copies of the trades it updated.
func (l *Ledger) Mark(symbol string, bid, ask float64) []Trade {
	var out []Trade
	for _, t := range l.trades {
		if t.Status != Open || t.Contract == nil || t.Contract.Symbol() != symbol {
			continue
		}
		ref := RefPrice(t.Side, bid, ask)
		t.PnL = PnL(t.Contract, t.Side, t.EntryPrice, ref, t.Quantity)
		out = append(out, *t)
	}
	return out
}

// BeginClose marks an open trade as having a reduce order in flight so that
// no second close is attempted.
func (l *Ledger) BeginClose(id string) (Trade, error) {
	t, err := l.find(id)
	if err != nil {
		return Trade{}, err
	}
	if t.Status != Open || t.closing {
		return *t, fmt.Errorf("close %s: %w: status=%s closing=%v", id, ErrInvalidTransition, t.Status, t.closing)
	}
	t.closing = true
	return *t, nil
}

// AbortClose clears the in-flight mark after a failed reduce order.
func (l *Ledger) AbortClose(id string) {
	if t, err := l.find(id); err == nil {
		t.closing = false
	}
}

// Close realizes the trade at exitPrice.
func (l *Ledger) Close(id, exitID string, exitPrice float64, ts int64, reason string) (Trade, error) {
	t, err := l.find(id)
	if err != nil {
		return Trade{}, err
	}
	if t.Status != Open {
		return *t, fmt.Errorf("close %s: %w: trade is %s", id, ErrInvalidTransition, t.Status)
	}
	t.ExitID = exitID
	t.ExitPrice = exitPrice
	t.CloseTime = ts
	t.Reason = reason
	t.PnL = PnL(t.Contract, t.Side, t.EntryPrice, exitPrice, t.Quantity)
	t.Status = Closed
	t.closing = false
	return *t, nil
}

func (l *Ledger) find(id string) (*Trade, error) {
	for _, t := range l.trades {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, fmt.Errorf("trade %q: %w", id, ErrTradeNotFound)
}
