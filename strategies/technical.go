package strategies

import (
	"fmt"
	"math"

	"github.com/rustyeddy/autotrader/indicators"
	"github.com/rustyeddy/autotrader/market"
)

const (
	rsiOversold   = 30
	rsiOverbought = 70
)

// Technical combines RSI with a MACD confirmation. Thresholds are read on the
// most recently closed candle, the one before the live candle.
type Technical struct {
	EMAFast   int
	EMASlow   int
	EMASignal int
	RSILength int
}

func newTechnical(p Params) (*Technical, error) {
	t := &Technical{}
	var err error
	if t.EMAFast, err = positiveInt(p, "ema_fast"); err != nil {
		return nil, fmt.Errorf("technical: %w", err)
	}
	if t.EMASlow, err = positiveInt(p, "ema_slow"); err != nil {
		return nil, fmt.Errorf("technical: %w", err)
	}
	if t.EMASignal, err = positiveInt(p, "ema_signal"); err != nil {
		return nil, fmt.Errorf("technical: %w", err)
	}
	if t.RSILength, err = positiveInt(p, "rsi_length"); err != nil {
		return nil, fmt.Errorf("technical: %w", err)
	}
	if t.EMAFast >= t.EMASlow {
		return nil, fmt.Errorf("technical: ema_fast (%d) must be less than ema_slow (%d)", t.EMAFast, t.EMASlow)
	}
	return t, nil
}

func (t *Technical) Name() string { return "Technical" }

// Indicators returns RSI, MACD line and MACD signal at the last closed candle.
// Any of them is NaN while warming up.
func (t *Technical) Indicators(candles []market.Candle) (rsi, line, signal float64) {
	closes := indicators.Closes(candles)
	macd := indicators.MACD(closes, t.EMAFast, t.EMASlow, t.EMASignal)
	return indicators.At(indicators.RSI(closes, t.RSILength), -2),
		indicators.At(macd.Line, -2),
		indicators.At(macd.Signal, -2)
}

func (t *Technical) Evaluate(candles []market.Candle) Signal {
	if len(candles) < 2 {
		return None
	}
	rsi, line, signal := t.Indicators(candles)
	if math.IsNaN(rsi) || math.IsNaN(line) || math.IsNaN(signal) {
		return None
	}

	switch {
	case rsi < rsiOversold && line > signal:
		return Long
	case rsi > rsiOverbought && line < signal:
		return Short
	default:
		return None
	}
}
