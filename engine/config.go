package engine

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/autotrader/journal"
	"github.com/rustyeddy/autotrader/market"
	"github.com/rustyeddy/autotrader/strategies"
)

var (
	// ErrMissingParameter is returned when a required strategy parameter is
	// absent. Activation is refused before any exchange call.
	ErrMissingParameter = strategies.ErrMissingParameter

	ErrNoHistoricalData = errors.New("no historical data")
	ErrUnknownExchange  = errors.New("unknown exchange")
	ErrInstanceNotFound = errors.New("instance not found")
	ErrNoOpenTrade      = errors.New("no open trade")
	ErrNoPendingTrade   = errors.New("no pending trade")
)

// ActivationConfig selects what one strategy instance trades and how.
type ActivationConfig struct {
	Exchange   string            `json:"exchange" yaml:"exchange"`
	Symbol     string            `json:"symbol" yaml:"symbol"`
	Timeframe  string            `json:"timeframe" yaml:"timeframe"`
	Strategy   string            `json:"strategy" yaml:"strategy"`
	BalancePct float64           `json:"balance_pct" yaml:"balance_pct"`
	TakeProfit float64           `json:"take_profit" yaml:"take_profit"`
	StopLoss   float64           `json:"stop_loss" yaml:"stop_loss"`
	Params     strategies.Params `json:"params" yaml:"params"`
}

func (c ActivationConfig) String() string {
	return fmt.Sprintf("%s %s %s %s", c.Exchange, c.Symbol, c.Timeframe, c.Strategy)
}

// Validate checks everything that can be checked without an exchange and
// returns the parsed timeframe and evaluator.
func (c ActivationConfig) Validate() (market.Timeframe, strategies.Evaluator, error) {
	if strings.TrimSpace(c.Exchange) == "" {
		return "", nil, fmt.Errorf("%w: exchange", ErrMissingParameter)
	}
	if strings.TrimSpace(c.Symbol) == "" {
		return "", nil, fmt.Errorf("%w: symbol", ErrMissingParameter)
	}
	if c.Timeframe == "" {
		return "", nil, fmt.Errorf("%w: timeframe", ErrMissingParameter)
	}
	if strings.TrimSpace(c.Strategy) == "" {
		return "", nil, fmt.Errorf("%w: strategy", ErrMissingParameter)
	}
	tf, err := market.ParseTimeframe(c.Timeframe)
	if err != nil {
		return "", nil, err
	}

	switch {
	case c.BalancePct == 0:
		return "", nil, fmt.Errorf("%w: balance_pct", ErrMissingParameter)
	case c.BalancePct < 0 || c.BalancePct > 100:
		return "", nil, fmt.Errorf("balance_pct must be in (0, 100], got %v", c.BalancePct)
	case c.TakeProfit == 0:
		return "", nil, fmt.Errorf("%w: take_profit", ErrMissingParameter)
	case c.TakeProfit < 0:
		return "", nil, fmt.Errorf("take_profit must be positive, got %v", c.TakeProfit)
	case c.StopLoss == 0:
		return "", nil, fmt.Errorf("%w: stop_loss", ErrMissingParameter)
	case c.StopLoss < 0:
		return "", nil, fmt.Errorf("stop_loss must be positive, got %v", c.StopLoss)
	}

	eval, err := strategies.New(c.Strategy, c.Params)
	if err != nil {
		return "", nil, err
	}
	return tf, eval, nil
}

// Options tune every instance a Coordinator activates.
type Options struct {
	// ConfirmInterval is the order status poll period.
	ConfirmInterval time.Duration
	// ConfirmMaxAttempts bounds the polls per order; zero polls forever.
	ConfirmMaxAttempts int
	// MaxClockSkew is the exchange/local clock difference that raises a
	// warning.
	MaxClockSkew time.Duration
	// FillGapTick opens the tick's own candle after a gap fill.
	FillGapTick bool
	// MaxGapCandles bounds the flat candles one tick may fill; a tick further
	// ahead is ignored.
	MaxGapCandles int

	Journal journal.Journal
	Logbook *Logbook
	Now     func() time.Time
}

const (
	DefaultConfirmInterval    = 2 * time.Second
	DefaultConfirmMaxAttempts = 150
	DefaultMaxClockSkew       = 2 * time.Second
	DefaultMaxGapCandles      = market.DefaultMaxGap
)

func DefaultOptions() Options {
	return Options{
		ConfirmInterval:    DefaultConfirmInterval,
		ConfirmMaxAttempts: DefaultConfirmMaxAttempts,
		MaxClockSkew:       DefaultMaxClockSkew,
		MaxGapCandles:      DefaultMaxGapCandles,
	}
}

func (o Options) withDefaults() Options {
	if o.ConfirmInterval <= 0 {
		o.ConfirmInterval = DefaultConfirmInterval
	}
	if o.ConfirmMaxAttempts < 0 {
		o.ConfirmMaxAttempts = 0
	}
	if o.MaxClockSkew <= 0 {
		o.MaxClockSkew = DefaultMaxClockSkew
	}
	if o.MaxGapCandles <= 0 {
		o.MaxGapCandles = DefaultMaxGapCandles
	}
	if o.Journal == nil {
		o.Journal = journal.Nop{}
	}
	if o.Logbook == nil {
		o.Logbook = NewLogbook(0)
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}
