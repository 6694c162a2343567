package strategies

import (
	"fmt"

	"github.com/rustyeddy/autotrader/market"
)

// Breakout fires when the live candle trades through the previous candle's
// range on enough volume.
type Breakout struct {
	MinVolume float64
}

func newBreakout(p Params) (*Breakout, error) {
	v := p["min_volume"]
	if v < 0 {
		return nil, fmt.Errorf("breakout: min_volume must not be negative, got %v", v)
	}
	return &Breakout{MinVolume: v}, nil
}

func (b *Breakout) Name() string { return "Breakout" }

func (b *Breakout) Evaluate(candles []market.Candle) Signal {
	if len(candles) < 2 {
		return None
	}
	live, prev := candles[len(candles)-1], candles[len(candles)-2]
	if live.Volume <= b.MinVolume {
		return None
	}
	switch {
	case live.Close > prev.High:
		return Long
	case live.Close < prev.Low:
		return Short
	default:
		return None
	}
}
