package paper

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rustyeddy/autotrader/broker"
	"github.com/rustyeddy/autotrader/market"
)

type subscription struct {
	id      int
	symbol  string
	handler broker.Handler
}

func (e *Exchange) Subscribe(c *market.Contract, h broker.Handler) (func(), error) {
	if c == nil || h == nil {
		return nil, fmt.Errorf("subscribe: %w: missing contract or handler", broker.ErrRejected)
	}
	e.mu.Lock()
	if err := e.enterLocked("Subscribe"); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if _, ok := e.contracts[c.Symbol()]; !ok {
		e.mu.Unlock()
		return nil, fmt.Errorf("subscribe %s: %w", c.Symbol(), broker.ErrNotFound)
	}
	e.subSeq++
	sub := &subscription{id: e.subSeq, symbol: c.Symbol(), handler: h}
	e.subs[sub.symbol] = append(e.subs[sub.symbol], sub)
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			list := e.subs[sub.symbol]
			for i, s := range list {
				if s.id == sub.id {
					e.subs[sub.symbol] = append(list[:i:i], list[i+1:]...)
					break
				}
			}
		})
	}, nil
}

// Subscribers returns the number of live subscriptions for symbol.
func (e *Exchange) Subscribers(symbol string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.subs[symbol])
}

func (e *Exchange) handlers(symbol string) (*market.Contract, []broker.Handler, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.contracts[symbol]
	if !ok {
		return nil, nil, fmt.Errorf("push %s: %w", symbol, broker.ErrNotFound)
	}
	hs := make([]broker.Handler, 0, len(e.subs[symbol]))
	for _, s := range e.subs[symbol] {
		hs = append(hs, s.handler)
	}
	return c, hs, nil
}

// PushTrade publishes an executed trade to every subscriber of symbol. A zero
// ts is stamped with the exchange clock.
func (e *Exchange) PushTrade(symbol string, price, size float64, ts int64) error {
	e.deliver.Lock()
	defer e.deliver.Unlock()

	c, hs, err := e.handlers(symbol)
	if err != nil {
		return err
	}
	if ts == 0 {
		ts = e.now().UnixMilli()
	}
	e.mu.Lock()
	e.last[symbol] = price
	e.mu.Unlock()

	for _, h := range hs {
		h.OnTick(c, price, size, ts)
	}
	return nil
}

// PushQuote updates the touch for symbol and publishes it.
func (e *Exchange) PushQuote(symbol string, bid, ask float64) error {
	e.deliver.Lock()
	defer e.deliver.Unlock()

	c, hs, err := e.handlers(symbol)
	if err != nil {
		return err
	}
	e.quotes.Set(market.Quote{Symbol: symbol, Bid: bid, Ask: ask, Timestamp: e.now().UnixMilli()})
	for _, h := range hs {
		h.OnQuote(c, bid, ask)
	}
	return nil
}

func (e *Exchange) HistoricalCandles(ctx context.Context, c *market.Contract, tf market.Timeframe) ([]market.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.enterLocked("HistoricalCandles"); err != nil {
		return nil, err
	}
	if _, ok := e.contracts[c.Symbol()]; !ok {
		return nil, fmt.Errorf("history %s: %w", c.Symbol(), broker.ErrNotFound)
	}
	if h, ok := e.history[c.Symbol()]; ok {
		return append([]market.Candle{}, h...), nil
	}

	// Flat candles at the last price, ending with the bucket that holds now.
	n := e.cfg.HistoryCandles
	width := tf.Millis()
	if n <= 0 || width <= 0 {
		return []market.Candle{}, nil
	}
	price := e.last[c.Symbol()]
	end := market.AlignTimestamp(e.now().UnixMilli(), width)
	out := make([]market.Candle, n)
	for i := range out {
		ts := end - int64(n-1-i)*width
		out[i] = market.Candle{Timestamp: ts, Open: price, High: price, Low: price, Close: price}
	}
	return out, nil
}

// Run drives a random walk over every listed contract, emitting one quote
// and one trade per contract each TickInterval until ctx is done.
func (e *Exchange) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for _, s := range e.step() {
				if err := e.PushQuote(s.symbol, s.bid, s.ask); err != nil {
					return err
				}
				if err := e.PushTrade(s.symbol, s.price, s.size, 0); err != nil {
					return err
				}
			}
		}
	}
}

type walkStep struct {
	symbol      string
	price, size float64
	bid, ask    float64
}

func (e *Exchange) step() []walkStep {
	e.mu.Lock()
	defer e.mu.Unlock()

	symbols := make([]string, 0, len(e.contracts))
	for s := range e.contracts {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	steps := make([]walkStep, 0, len(symbols))
	for _, sym := range symbols {
		c := e.contracts[sym]
		last := e.last[sym]
		next := c.RoundPrice(last * math.Exp(e.rng.NormFloat64()*e.cfg.Volatility))
		if next <= 0 {
			next = last
		}
		size := c.LotSize() * float64(1+e.rng.Intn(10))
		bid, ask := e.touchLocked(c, next)
		steps = append(steps, walkStep{symbol: sym, price: next, size: size, bid: bid, ask: ask})
	}
	return steps
}
