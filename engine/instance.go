package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/rustyeddy/autotrader/broker"
	"github.com/rustyeddy/autotrader/journal"
	"github.com/rustyeddy/autotrader/ledger"
	"github.com/rustyeddy/autotrader/market"
	"github.com/rustyeddy/autotrader/metrics"
	"github.com/rustyeddy/autotrader/pkg/id"
	"github.com/rustyeddy/autotrader/strategies"
)

// Instance is one activated strategy on one contract, timeframe and
// exchange. It receives ticks and quotes as a broker.Handler.
//
// The candle series, ledger and ongoing guard are only touched under mu, and
// only while active. Exchange calls are made with mu released.
type Instance struct {
	id       string
	cfg      ActivationConfig
	tf       market.Timeframe
	client   broker.Client
	contract *market.Contract
	eval     strategies.Evaluator
	opts     Options
	log      zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	active      bool
	series      *market.Series
	ledger      *ledger.Ledger
	ongoing     bool
	quote       market.Quote
	unsubscribe func()
}

func (i *Instance) ID() string                 { return i.id }
func (i *Instance) Config() ActivationConfig   { return i.cfg }
func (i *Instance) Contract() *market.Contract { return i.contract }
func (i *Instance) Timeframe() market.Timeframe {
	return i.tf
}

// ActivatedAt is the wall-clock time encoded in the instance id.
func (i *Instance) ActivatedAt() time.Time {
	t, _ := id.Time(i.id)
	return t
}

func (i *Instance) Active() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.active
}

// Ongoing reports whether a position slot is taken or reserved.
func (i *Instance) Ongoing() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.ongoing
}

// Candles returns a copy of the candle series; nil once deactivated.
func (i *Instance) Candles() []market.Candle {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.series == nil {
		return nil
	}
	return i.series.Candles()
}

// Trades returns copies of the ledger; nil once deactivated.
func (i *Instance) Trades() []ledger.Trade {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.ledger == nil {
		return nil
	}
	return i.ledger.Trades()
}

// OnTick feeds one exchange trade into the candle series and, on a new
// candle with no position taken, evaluates the strategy.
func (i *Instance) OnTick(c *market.Contract, price, size float64, ts int64) {
	i.mu.Lock()
	if !i.active {
		i.mu.Unlock()
		return
	}
	res, err := i.series.Ingest(price, size, ts, i.opts.Now())
	if err != nil {
		i.mu.Unlock()
		i.note(zerolog.WarnLevel, "ignored tick: %v", err)
		return
	}
	metrics.TicksTotal.WithLabelValues(i.cfg.Exchange, i.contract.Symbol()).Inc()
	if res.AbsSkew() >= i.opts.MaxClockSkew {
		i.note(zerolog.WarnLevel, "clock skew of %s against %s", res.Skew, i.cfg.Exchange)
	}
	if res.Event != market.NewCandle {
		i.mu.Unlock()
		return
	}
	i.countCandles(res)
	if i.ongoing {
		i.mu.Unlock()
		return
	}

	sig := i.eval.Evaluate(i.series.Candles())
	if sig == strategies.None {
		i.mu.Unlock()
		return
	}
	// Reserve the slot before releasing the lock so a concurrent new candle
	// cannot open a second position.
	i.ongoing = true
	price = i.series.Last().Close
	i.mu.Unlock()

	metrics.SignalsTotal.WithLabelValues(i.eval.Name(), sig.String()).Inc()
	i.note(zerolog.InfoLevel, "%s signal on %s %s at %s", sig, i.contract.Symbol(), i.tf, i.contract.FormatPrice(price))
	i.openPosition(sig, price)
}

func (i *Instance) countCandles(res market.IngestResult) {
	sym := i.contract.Symbol()
	if res.Filled > 0 {
		metrics.CandlesTotal.WithLabelValues(i.cfg.Exchange, sym, "gap_fill").Add(float64(res.Filled))
	}
	if res.Filled == 0 || i.opts.FillGapTick {
		metrics.CandlesTotal.WithLabelValues(i.cfg.Exchange, sym, "new").Inc()
	}
}

// openPosition sizes and submits the entry order for sig. The caller has
// already reserved the ongoing guard.
func (i *Instance) openPosition(sig strategies.Signal, price float64) {
	side := ledger.Long
	if sig == strategies.Short {
		side = ledger.Short
	}
	orderSide := side.OrderSide()
	sym := i.contract.Symbol()

	qty, err := i.client.TradeSize(i.ctx, i.contract, price, i.cfg.BalancePct)
	if err != nil {
		i.release()
		i.note(zerolog.ErrorLevel, "sizing %s %s failed: %v", side, sym, err)
		return
	}

	res, err := i.client.PlaceOrder(i.ctx, broker.OrderRequest{
		Contract: i.contract,
		Side:     orderSide,
		Quantity: qty,
		Type:     broker.Market,
	})
	if err != nil {
		metrics.OrdersTotal.WithLabelValues(i.cfg.Exchange, sym, string(orderSide), "error").Inc()
		i.release()
		i.note(zerolog.ErrorLevel, "%s order for %v %s failed: %v", orderSide, qty, sym, err)
		return
	}
	metrics.OrdersTotal.WithLabelValues(i.cfg.Exchange, sym, string(orderSide), "ok").Inc()

	trade := ledger.Trade{
		ID:       id.New(),
		Time:     i.opts.Now().UnixMilli(),
		Contract: i.contract,
		Strategy: i.eval.Name(),
		Side:     side,
		Quantity: qty,
		EntryID:  res.OrderID,
		Status:   ledger.Pending,
	}

	i.mu.Lock()
	if !i.active {
		i.mu.Unlock()
		i.note(zerolog.WarnLevel, "order %s placed after deactivation is not tracked", res.OrderID)
		return
	}
	if err := i.ledger.Add(trade); err != nil {
		i.mu.Unlock()
		i.note(zerolog.ErrorLevel, "recording trade for order %s: %v", res.OrderID, err)
		return
	}
	filled := res.Filled() && res.AvgFillPrice > 0
	if filled {
		_, err = i.ledger.Confirm(res.OrderID, res.AvgFillPrice)
	} else {
		i.wg.Add(1)
		go i.confirm(trade.ID, res.OrderID)
	}
	i.mu.Unlock()

	i.note(zerolog.InfoLevel, "placed %s order %s for %v %s", orderSide, res.OrderID, qty, sym)
	switch {
	case err != nil:
		i.note(zerolog.ErrorLevel, "confirming order %s: %v", res.OrderID, err)
	case filled:
		i.note(zerolog.InfoLevel, "order %s filled at %s", res.OrderID, i.contract.FormatPrice(res.AvgFillPrice))
	}
}

// release frees a reserved slot that never turned into a trade.
func (i *Instance) release() {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.ledger != nil {
		i.ongoing = i.ledger.Ongoing()
	}
}

// confirm polls the entry order until it fills, the exchange ends it, the
// attempt budget runs out or the instance is deactivated.
func (i *Instance) confirm(tradeID, orderID string) {
	defer i.wg.Done()

	ticker := time.NewTicker(i.opts.ConfirmInterval)
	defer ticker.Stop()

	for attempt := 1; ; attempt++ {
		select {
		case <-i.ctx.Done():
			return
		case <-ticker.C:
		}
		if !i.pending(tradeID) {
			return
		}

		res, err := i.client.OrderStatus(i.ctx, i.contract, orderID)
		switch {
		case err != nil:
			if i.ctx.Err() != nil {
				return
			}
			metrics.ConfirmPollsTotal.WithLabelValues(i.cfg.Exchange, "error").Inc()
			i.note(zerolog.WarnLevel, "status of order %s: %v", orderID, err)

		case res.Filled() && res.AvgFillPrice > 0:
			metrics.ConfirmPollsTotal.WithLabelValues(i.cfg.Exchange, "filled").Inc()
			i.mu.Lock()
			if !i.active {
				i.mu.Unlock()
				return
			}
			_, err := i.ledger.Confirm(orderID, res.AvgFillPrice)
			i.mu.Unlock()
			if err != nil {
				i.note(zerolog.ErrorLevel, "confirming order %s: %v", orderID, err)
				return
			}
			i.note(zerolog.InfoLevel, "order %s filled at %s", orderID, i.contract.FormatPrice(res.AvgFillPrice))
			return

		case res.Status.Terminal() && !res.Filled():
			metrics.ConfirmPollsTotal.WithLabelValues(i.cfg.Exchange, string(res.Status)).Inc()
			i.mu.Lock()
			if !i.active {
				i.mu.Unlock()
				return
			}
			_, err := i.ledger.Void(orderID, "Order"+statusWord(res.Status), i.opts.Now().UnixMilli())
			i.ongoing = i.ledger.Ongoing()
			i.mu.Unlock()
			if err != nil {
				i.note(zerolog.ErrorLevel, "voiding trade %s: %v", tradeID, err)
				return
			}
			i.note(zerolog.ErrorLevel, "order %s ended %s without a fill", orderID, res.Status)
			return

		default:
			metrics.ConfirmPollsTotal.WithLabelValues(i.cfg.Exchange, "pending").Inc()
		}

		if limit := i.opts.ConfirmMaxAttempts; limit > 0 && attempt >= limit {
			i.note(zerolog.ErrorLevel, "order %s unconfirmed after %d polls, trade %s stays pending", orderID, attempt, tradeID)
			return
		}
	}
}

// pending reports whether tradeID is still waiting for its entry fill.
func (i *Instance) pending(tradeID string) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if !i.active {
		return false
	}
	t, err := i.ledger.Get(tradeID)
	return err == nil && t.Status == ledger.Pending
}

// Void gives up on a pending entry order and frees the position slot. The
// exchange order itself is left as is.
func (i *Instance) Void(reason string) (ledger.Trade, error) {
	if reason == "" {
		reason = ledger.ReasonVoided
	}

	i.mu.Lock()
	if !i.active {
		i.mu.Unlock()
		return ledger.Trade{}, fmt.Errorf("void %s: %w", i.id, ErrInstanceNotFound)
	}
	t, ok := i.ledger.Active()
	if !ok || t.Status != ledger.Pending {
		i.mu.Unlock()
		return ledger.Trade{}, fmt.Errorf("void %s: %w", i.id, ErrNoPendingTrade)
	}
	voided, err := i.ledger.Void(t.EntryID, reason, i.opts.Now().UnixMilli())
	i.ongoing = i.ledger.Ongoing()
	i.mu.Unlock()
	if err != nil {
		return ledger.Trade{}, err
	}

	i.note(zerolog.WarnLevel, "voided pending trade %s, order %s is no longer tracked (%s)", voided.ID, voided.EntryID, reason)
	return voided, nil
}

// OnQuote marks open trades to market and starts closing any that reached
// take-profit or stop-loss.
func (i *Instance) OnQuote(c *market.Contract, bid, ask float64) {
	type exit struct {
		trade  ledger.Trade
		ref    float64
		reason string
	}
	var exits []exit

	i.mu.Lock()
	if !i.active {
		i.mu.Unlock()
		return
	}
	i.quote = market.Quote{Symbol: c.Symbol(), Bid: bid, Ask: ask, Timestamp: i.opts.Now().UnixMilli()}
	for _, t := range i.ledger.Mark(c.Symbol(), bid, ask) {
		if t.Closing() {
			continue
		}
		ref := ledger.RefPrice(t.Side, bid, ask)
		reason := ledger.ExitReason(t.Side, t.EntryPrice, ref, i.cfg.TakeProfit, i.cfg.StopLoss)
		if reason == "" {
			continue
		}
		if _, err := i.ledger.BeginClose(t.ID); err != nil {
			continue
		}
		exits = append(exits, exit{trade: t, ref: ref, reason: reason})
	}
	i.mu.Unlock()

	for _, e := range exits {
		_ = i.close(e.trade, e.ref, e.reason)
	}
}

// Close closes the open trade at the latest quote, or the last close when no
// quote has arrived yet.
func (i *Instance) Close(reason string) error {
	if reason == "" {
		reason = ledger.ReasonManual
	}

	i.mu.Lock()
	if !i.active {
		i.mu.Unlock()
		return fmt.Errorf("close %s: %w", i.id, ErrInstanceNotFound)
	}
	t, ok := i.ledger.Active()
	if !ok || t.Status != ledger.Open {
		i.mu.Unlock()
		return fmt.Errorf("close %s: %w", i.id, ErrNoOpenTrade)
	}
	ref := i.series.Last().Close
	if i.quote.Bid > 0 && i.quote.Ask > 0 {
		ref = ledger.RefPrice(t.Side, i.quote.Bid, i.quote.Ask)
	}
	t, err := i.ledger.BeginClose(t.ID)
	i.mu.Unlock()
	if err != nil {
		return err
	}
	return i.close(t, ref, reason)
}

// close submits the reduce order for t, which the caller has marked closing,
// and realizes it.
func (i *Instance) close(t ledger.Trade, ref float64, reason string) error {
	sym := i.contract.Symbol()
	side := t.Side.OrderSide().Opposite()

	res, err := i.client.PlaceOrder(i.ctx, broker.OrderRequest{
		Contract:   i.contract,
		Side:       side,
		Quantity:   t.Quantity,
		Type:       broker.Market,
		ReduceOnly: true,
	})
	if err != nil {
		metrics.OrdersTotal.WithLabelValues(i.cfg.Exchange, sym, string(side), "error").Inc()
		i.mu.Lock()
		if i.ledger != nil {
			i.ledger.AbortClose(t.ID)
		}
		i.mu.Unlock()
		i.note(zerolog.ErrorLevel, "%s close of trade %s failed: %v", reason, t.ID, err)
		return fmt.Errorf("close trade %s: %w", t.ID, err)
	}
	metrics.OrdersTotal.WithLabelValues(i.cfg.Exchange, sym, string(side), "ok").Inc()

	exitPrice := ref
	if res.Filled() && res.AvgFillPrice > 0 {
		exitPrice = res.AvgFillPrice
	}

	i.mu.Lock()
	if i.ledger == nil {
		i.mu.Unlock()
		i.note(zerolog.WarnLevel, "close order %s for trade %s landed after deactivation", res.OrderID, t.ID)
		return nil
	}
	closed, err := i.ledger.Close(t.ID, res.OrderID, exitPrice, i.opts.Now().UnixMilli(), reason)
	i.ongoing = i.ledger.Ongoing()
	i.mu.Unlock()
	if err != nil {
		i.note(zerolog.ErrorLevel, "realizing trade %s: %v", t.ID, err)
		return err
	}

	i.note(zerolog.InfoLevel, "closed %s trade %s at %s (%s), pnl %s %s",
		closed.Side, closed.ID, i.contract.FormatPrice(exitPrice), reason,
		i.contract.FormatPnL(closed.PnL), i.contract.MarginAsset())

	if err := i.opts.Journal.RecordTrade(i.record(closed)); err != nil {
		i.note(zerolog.ErrorLevel, "journal trade %s: %v", closed.ID, err)
	}
	return nil
}

func (i *Instance) record(t ledger.Trade) journal.TradeRecord {
	return journal.TradeRecord{
		TradeID:     t.ID,
		Instance:    i.id,
		Exchange:    i.cfg.Exchange,
		Symbol:      i.contract.Symbol(),
		Strategy:    t.Strategy,
		Side:        string(t.Side),
		Quantity:    t.Quantity,
		EntryPrice:  t.EntryPrice,
		ExitPrice:   t.ExitPrice,
		OpenTime:    t.OpenedAt(),
		CloseTime:   time.UnixMilli(t.CloseTime).UTC(),
		RealizedPnL: t.PnL,
		PnLAsset:    i.contract.MarginAsset(),
		Reason:      t.Reason,
	}
}

// deactivate stops delivery and makes every mutation path a no-op. Trades
// already open on the exchange are left alone.
func (i *Instance) deactivate() bool {
	i.mu.Lock()
	if !i.active {
		i.mu.Unlock()
		return false
	}
	i.active = false
	i.series = nil
	i.ledger = nil
	i.ongoing = false
	unsub := i.unsubscribe
	i.unsubscribe = nil
	i.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	i.cancel()
	i.wg.Wait()
	return true
}

// note writes msg to the instance logger and the shared logbook.
func (i *Instance) note(level zerolog.Level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	i.log.WithLevel(level).Msg(msg)
	i.opts.Logbook.Append(level, i.id, msg)
}

func statusWord(s broker.OrderStatus) string {
	switch s {
	case broker.StatusCanceled:
		return "Canceled"
	case broker.StatusRejected:
		return "Rejected"
	case broker.StatusExpired:
		return "Expired"
	}
	return "Closed"
}
