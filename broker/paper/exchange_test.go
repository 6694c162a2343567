package paper

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/autotrader/broker"
	"github.com/rustyeddy/autotrader/market"
)

var t0 = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

func newExchange(t *testing.T, cfg Config) (*Exchange, *market.Contract) {
	t.Helper()
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return t0 }
	}
	if cfg.Balances == nil {
		cfg.Balances = map[string]float64{"USDT": 1000}
	}
	e := New(cfg)
	c, err := e.AddContract(market.ContractSpec{
		Symbol:     "ETHUSDT",
		BaseAsset:  "ETH",
		QuoteAsset: "USDT",
		TickSize:   0.01,
		LotSize:    0.001,
		Model:      "linear",
		Multiplier: 1,
	}, 2000)
	require.NoError(t, err)
	return e, c
}

type recorder struct {
	mu     sync.Mutex
	events []string
	ticks  []float64
}

func (r *recorder) OnTick(c *market.Contract, price, size float64, ts int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "tick")
	r.ticks = append(r.ticks, price)
}

func (r *recorder) OnQuote(c *market.Contract, bid, ask float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, "quote")
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func TestContractsAndBalance(t *testing.T) {
	t.Parallel()

	e, c := newExchange(t, Config{})
	assert.Equal(t, "paper", e.Name())

	got, err := e.Contract("ETHUSDT")
	require.NoError(t, err)
	assert.Same(t, c, got)
	_, err = e.Contract("NOPE")
	assert.ErrorIs(t, err, broker.ErrNotFound)
	require.Len(t, e.Contracts(), 1)

	bal, err := e.Balance(context.Background(), "USDT")
	require.NoError(t, err)
	assert.Equal(t, 1000.0, bal.MarginBalance)
	_, err = e.Balance(context.Background(), "BTC")
	assert.ErrorIs(t, err, broker.ErrNotFound)
}

func TestTradeSizeUsesMarginAsset(t *testing.T) {
	t.Parallel()

	e, c := newExchange(t, Config{})
	size, err := e.TradeSize(context.Background(), c, 2000, 10)
	require.NoError(t, err)
	assert.InDelta(t, 0.05, size, 1e-12)
}

func TestOrderFillsAfterPolls(t *testing.T) {
	t.Parallel()

	e, c := newExchange(t, Config{FillAfterPolls: 2})
	require.NoError(t, e.PushQuote("ETHUSDT", 1999, 2001))

	res, err := e.PlaceOrder(context.Background(), broker.OrderRequest{Contract: c, Side: broker.Buy, Quantity: 0.5})
	require.NoError(t, err)
	assert.Equal(t, broker.StatusNew, res.Status)
	assert.NotEmpty(t, res.OrderID)

	res, err = e.OrderStatus(context.Background(), c, res.OrderID)
	require.NoError(t, err)
	assert.False(t, res.Filled())

	res, err = e.OrderStatus(context.Background(), c, res.OrderID)
	require.NoError(t, err)
	assert.True(t, res.Filled())
	assert.Equal(t, 2001.0, res.AvgFillPrice)

	_, err = e.OrderStatus(context.Background(), c, "missing")
	assert.ErrorIs(t, err, broker.ErrNotFound)
}

func TestLimitOrders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		side   broker.Side
		price  float64
		tif    broker.TimeInForce
		status broker.OrderStatus
		fill   float64
	}{
		{"buy through the ask fills at the ask", broker.Buy, 2005, broker.GTC, broker.StatusFilled, 2001},
		{"sell through the bid fills at the bid", broker.Sell, 1990, "", broker.StatusFilled, 1999},
		{"resting buy stays new", broker.Buy, 1995, broker.GTC, broker.StatusNew, 0},
		{"IOC that does not cross expires", broker.Buy, 1995, broker.IOC, broker.StatusExpired, 0},
		{"FOK that crosses fills", broker.Sell, 1999, broker.FOK, broker.StatusFilled, 1999},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e, c := newExchange(t, Config{})
			require.NoError(t, e.PushQuote("ETHUSDT", 1999, 2001))
			res, err := e.PlaceOrder(context.Background(), broker.OrderRequest{
				Contract:    c,
				Side:        tt.side,
				Quantity:    0.5,
				Type:        broker.Limit,
				Price:       tt.price,
				TimeInForce: tt.tif,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.status, res.Status)
			assert.Equal(t, tt.fill, res.AvgFillPrice)
		})
	}
}

func TestRestingLimitFillsOncePriceCrosses(t *testing.T) {
	t.Parallel()

	e, c := newExchange(t, Config{FillAfterPolls: 1})
	ctx := context.Background()
	require.NoError(t, e.PushQuote("ETHUSDT", 1999, 2001))

	res, err := e.PlaceOrder(ctx, broker.OrderRequest{Contract: c, Side: broker.Buy, Quantity: 0.5, Type: broker.Limit, Price: 1995})
	require.NoError(t, err)

	res, err = e.OrderStatus(ctx, c, res.OrderID)
	require.NoError(t, err)
	assert.Equal(t, broker.StatusNew, res.Status)

	require.NoError(t, e.PushQuote("ETHUSDT", 1993, 1994))
	res, err = e.OrderStatus(ctx, c, res.OrderID)
	require.NoError(t, err)
	assert.True(t, res.Filled())
	assert.Equal(t, 1994.0, res.AvgFillPrice)

	qty, entry := e.Position("ETHUSDT")
	assert.Equal(t, 0.5, qty)
	assert.Equal(t, 1994.0, entry)
}

func TestOrderValidation(t *testing.T) {
	t.Parallel()

	e, c := newExchange(t, Config{})
	ctx := context.Background()

	_, err := e.PlaceOrder(ctx, broker.OrderRequest{Contract: c, Side: broker.Buy, Quantity: 1, Type: broker.Limit})
	assert.ErrorIs(t, err, broker.ErrRejected)
	_, err = e.PlaceOrder(ctx, broker.OrderRequest{Contract: c, Side: broker.Buy, Quantity: 1, TimeInForce: "DAY"})
	assert.ErrorIs(t, err, broker.ErrRejected)
	_, err = e.PlaceOrder(ctx, broker.OrderRequest{Contract: c, Side: broker.Buy, Quantity: 1, Type: "STOP"})
	assert.ErrorIs(t, err, broker.ErrRejected)
	_, err = e.PlaceOrder(ctx, broker.OrderRequest{Contract: c, Side: broker.Buy, Quantity: 0.0001})
	assert.ErrorIs(t, err, broker.ErrRejected)
}

func TestReduceOrderRealizesPnL(t *testing.T) {
	t.Parallel()

	e, c := newExchange(t, Config{})
	ctx := context.Background()

	_, err := e.PlaceOrder(ctx, broker.OrderRequest{Contract: c, Side: broker.Sell, Quantity: 1, ReduceOnly: true})
	assert.ErrorIs(t, err, broker.ErrRejected)

	res, err := e.PlaceOrder(ctx, broker.OrderRequest{Contract: c, Side: broker.Buy, Quantity: 1})
	require.NoError(t, err)
	require.True(t, res.Filled())
	assert.Equal(t, 2000.0, res.AvgFillPrice)

	require.NoError(t, e.PushQuote("ETHUSDT", 2100, 2100))
	bal, err := e.Balance(ctx, "USDT")
	require.NoError(t, err)
	assert.InDelta(t, 100, bal.UnrealizedPnL, 1e-9)

	res, err = e.PlaceOrder(ctx, broker.OrderRequest{Contract: c, Side: broker.Sell, Quantity: 1, ReduceOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 2100.0, res.AvgFillPrice)

	qty, _ := e.Position("ETHUSDT")
	assert.Zero(t, qty)
	bal, err = e.Balance(ctx, "USDT")
	require.NoError(t, err)
	assert.InDelta(t, 1100, bal.WalletBalance, 1e-9)
}

func TestSubscriptionDeliversInOrder(t *testing.T) {
	t.Parallel()

	e, c := newExchange(t, Config{})
	r := &recorder{}
	unsub, err := e.Subscribe(c, r)
	require.NoError(t, err)
	assert.Equal(t, 1, e.Subscribers("ETHUSDT"))

	require.NoError(t, e.PushTrade("ETHUSDT", 1, 1, 0))
	require.NoError(t, e.PushQuote("ETHUSDT", 1, 2))
	require.NoError(t, e.PushTrade("ETHUSDT", 2, 1, 0))
	assert.Equal(t, []string{"tick", "quote", "tick"}, r.events)
	assert.Equal(t, []float64{1, 2}, r.ticks)

	unsub()
	unsub()
	assert.Zero(t, e.Subscribers("ETHUSDT"))
	require.NoError(t, e.PushTrade("ETHUSDT", 3, 1, 0))
	assert.Len(t, r.events, 3)
}

func TestHistoricalCandles(t *testing.T) {
	t.Parallel()

	e, c := newExchange(t, Config{HistoryCandles: 5})
	candles, err := e.HistoricalCandles(context.Background(), c, market.M1)
	require.NoError(t, err)
	require.Len(t, candles, 5)
	last := candles[len(candles)-1]
	assert.Equal(t, market.AlignTimestamp(t0.UnixMilli(), 60_000), last.Timestamp)
	assert.Equal(t, 2000.0, last.Close)
	for i := 1; i < len(candles); i++ {
		assert.Equal(t, int64(60_000), candles[i].Timestamp-candles[i-1].Timestamp)
	}

	e.SetHistory("ETHUSDT", []market.Candle{})
	candles, err = e.HistoricalCandles(context.Background(), c, market.M1)
	require.NoError(t, err)
	assert.Empty(t, candles)
}

func TestFaultInjection(t *testing.T) {
	t.Parallel()

	e, c := newExchange(t, Config{})
	boom := errors.New("boom")
	e.Fail("PlaceOrder", boom)

	_, err := e.PlaceOrder(context.Background(), broker.OrderRequest{Contract: c, Side: broker.Buy, Quantity: 1})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, e.Calls("PlaceOrder"))

	e.Fail("PlaceOrder", nil)
	_, err = e.PlaceOrder(context.Background(), broker.OrderRequest{Contract: c, Side: broker.Buy, Quantity: 1})
	assert.NoError(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	e, c := newExchange(t, Config{TickInterval: time.Millisecond, Seed: 7, Spread: 0.001})
	r := &recorder{}
	_, err := e.Subscribe(c, r)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	require.Eventually(t, func() bool { return r.count() >= 4 }, time.Second, time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	q, err := e.Quote("ETHUSDT")
	require.NoError(t, err)
	assert.Less(t, q.Bid, q.Ask)
}
