// Package paper is an in-process exchange that implements broker.Client
// against simulated balances, quotes and fills.
package paper

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/rustyeddy/autotrader/broker"
	"github.com/rustyeddy/autotrader/market"
	"github.com/rustyeddy/autotrader/risk"
)

const defaultName = "paper"

type Config struct {
	Name     string
	Balances map[string]float64 // wallet balance per asset

	// FillAfterPolls is the number of OrderStatus calls an order stays
	// unfilled; zero fills market orders on placement.
	FillAfterPolls int

	// HistoryCandles is the length of the synthetic history handed out for
	// symbols with no explicit history.
	HistoryCandles int

	// Spread is the bid/ask spread as a fraction of price.
	Spread float64

	// Volatility is the per-step standard deviation of the random walk.
	Volatility   float64
	TickInterval time.Duration
	Seed         int64

	Now func() time.Time
}

type Exchange struct {
	mu sync.Mutex

	name      string
	cfg       Config
	now       func() time.Time
	rng       *rand.Rand
	contracts map[string]*market.Contract
	wallet    map[string]float64
	last      map[string]float64
	quotes    *market.QuoteStore
	history   map[string][]market.Candle
	orders    map[string]*order
	positions map[string]*position
	faults    map[string]error
	calls     map[string]int

	// deliver serialises fan-out so handlers see events in push order.
	deliver sync.Mutex
	subs    map[string][]*subscription
	subSeq  int
}

func New(cfg Config) *Exchange {
	if cfg.Name == "" {
		cfg.Name = defaultName
	}
	if cfg.Spread < 0 {
		cfg.Spread = 0
	}
	if cfg.Volatility <= 0 {
		cfg.Volatility = 0.0005
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	e := &Exchange{
		name:      cfg.Name,
		cfg:       cfg,
		now:       now,
		rng:       rand.New(rand.NewSource(seed)),
		contracts: make(map[string]*market.Contract),
		wallet:    make(map[string]float64),
		last:      make(map[string]float64),
		quotes:    market.NewQuoteStore(),
		history:   make(map[string][]market.Candle),
		orders:    make(map[string]*order),
		positions: make(map[string]*position),
		faults:    make(map[string]error),
		calls:     make(map[string]int),
		subs:      make(map[string][]*subscription),
	}
	for asset, bal := range cfg.Balances {
		e.wallet[asset] = bal
	}
	return e
}

func (e *Exchange) Name() string { return e.name }

// AddContract lists a contract and seeds its last price and quote.
func (e *Exchange) AddContract(spec market.ContractSpec, seedPrice float64) (*market.Contract, error) {
	c, err := market.NewContract(spec)
	if err != nil {
		return nil, err
	}
	if seedPrice <= 0 {
		return nil, fmt.Errorf("add contract %s: seed price must be positive", spec.Symbol)
	}

	e.mu.Lock()
	e.contracts[c.Symbol()] = c
	e.last[c.Symbol()] = seedPrice
	bid, ask := e.touchLocked(c, seedPrice)
	e.mu.Unlock()

	e.quotes.Set(market.Quote{Symbol: c.Symbol(), Bid: bid, Ask: ask, Timestamp: e.now().UnixMilli()})
	return c, nil
}

// SetBalance overwrites the wallet balance of asset.
func (e *Exchange) SetBalance(asset string, amount float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.wallet[asset] = amount
}

// SetHistory pins the candles HistoricalCandles returns for symbol. An empty,
// non-nil slice makes the symbol report no history.
func (e *Exchange) SetHistory(symbol string, candles []market.Candle) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history[symbol] = append([]market.Candle{}, candles...)
}

// Fail makes every later call to method return err until cleared with a nil
// err. Method names match the broker.Client methods.
func (e *Exchange) Fail(method string, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err == nil {
		delete(e.faults, method)
		return
	}
	e.faults[method] = err
}

// Calls returns how many times method has been invoked.
func (e *Exchange) Calls(method string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[method]
}

func (e *Exchange) enterLocked(method string) error {
	e.calls[method]++
	if err := e.faults[method]; err != nil {
		return fmt.Errorf("%s %s: %w", e.name, method, err)
	}
	return nil
}

func (e *Exchange) Contract(symbol string) (*market.Contract, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	c, ok := e.contracts[symbol]
	if !ok {
		return nil, fmt.Errorf("contract %q on %s: %w", symbol, e.name, broker.ErrNotFound)
	}
	return c, nil
}

func (e *Exchange) Contracts() []*market.Contract {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*market.Contract, 0, len(e.contracts))
	for _, c := range e.contracts {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol() < out[j].Symbol() })
	return out
}

// Quote returns the current best bid/ask for symbol.
func (e *Exchange) Quote(symbol string) (market.Quote, error) {
	return e.quotes.Get(symbol)
}

func (e *Exchange) Balance(ctx context.Context, asset string) (broker.Balance, error) {
	if err := ctx.Err(); err != nil {
		return broker.Balance{}, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.enterLocked("Balance"); err != nil {
		return broker.Balance{}, err
	}
	return e.balanceLocked(asset)
}

func (e *Exchange) balanceLocked(asset string) (broker.Balance, error) {
	wallet, ok := e.wallet[asset]
	if !ok {
		return broker.Balance{}, fmt.Errorf("balance %q on %s: %w", asset, e.name, broker.ErrNotFound)
	}
	upnl := e.unrealizedLocked(asset)
	return broker.Balance{
		Asset:         asset,
		WalletBalance: wallet,
		UnrealizedPnL: upnl,
		MarginBalance: wallet + upnl,
	}, nil
}

func (e *Exchange) TradeSize(ctx context.Context, c *market.Contract, price, balancePct float64) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	e.mu.Lock()
	if err := e.enterLocked("TradeSize"); err != nil {
		e.mu.Unlock()
		return 0, err
	}
	bal, err := e.balanceLocked(c.MarginAsset())
	e.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return risk.TradeSize(c, bal.MarginBalance, balancePct, price)
}

// touchLocked derives a bid/ask around mid, at least one tick apart when a
// spread is configured.
func (e *Exchange) touchLocked(c *market.Contract, mid float64) (bid, ask float64) {
	if e.cfg.Spread == 0 {
		p := c.RoundPrice(mid)
		return p, p
	}
	half := mid * e.cfg.Spread / 2
	if half < c.TickSize()/2 {
		half = c.TickSize() / 2
	}
	bid = c.RoundPrice(mid - half)
	ask = c.RoundPrice(mid + half)
	if ask <= bid {
		ask = bid + c.TickSize()
	}
	return bid, ask
}
