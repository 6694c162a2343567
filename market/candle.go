package market

import "time"

// Candle is an OHLCV bucket. Timestamp is the interval start in epoch
// milliseconds, aligned to the timeframe.
type Candle struct {
	Timestamp int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

func (c Candle) Time() time.Time {
	return time.UnixMilli(c.Timestamp).UTC()
}

// flat returns a zero-volume candle at ts whose OHLC all equal price.
func flat(ts int64, price float64) Candle {
	return Candle{Timestamp: ts, Open: price, High: price, Low: price, Close: price}
}

func (c *Candle) merge(price, size float64) {
	c.Close = price
	c.Volume += size
	if price > c.High {
		c.High = price
	}
	if price < c.Low {
		c.Low = price
	}
}
