package market

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Event classifies what a tick did to a candle series.
type Event int

const (
	SameCandle Event = iota
	NewCandle
)

func (e Event) String() string {
	if e == NewCandle {
		return "new_candle"
	}
	return "same_candle"
}

var (
	ErrInvalidTick = errors.New("invalid tick")
	ErrNoCandles   = errors.New("no candles")
)

// IngestResult describes the effect of one tick.
type IngestResult struct {
	Event Event
	// Filled is the number of flat candles synthesized for skipped intervals.
	Filled int
	// Skew is local clock minus exchange timestamp.
	Skew time.Duration
}

// DefaultMaxGap is the largest number of flat candles one tick may fill.
const DefaultMaxGap = 10_000

// SeriesOption configures a Series.
type SeriesOption func(*Series)

// WithGapTick makes the gap-fill branch also open the candle of the tick that
// revealed the gap. By default that tick is not recorded.
func WithGapTick(on bool) SeriesOption {
	return func(s *Series) { s.fillGapTick = on }
}

// WithMaxGap bounds how many skipped intervals a single tick may fill. A tick
// further ahead is rejected with ErrInvalidTick. n <= 0 keeps DefaultMaxGap.
func WithMaxGap(n int) SeriesOption {
	return func(s *Series) {
		if n > 0 {
			s.maxGap = n
		}
	}
}

// Series is an ordered candle sequence whose last element is the live candle.
// Timestamps are strictly increasing. A Series is not safe for concurrent use;
// its owner serialises access.
type Series struct {
	tf          Timeframe
	width       int64
	fillGapTick bool
	maxGap      int
	candles     []Candle
	dropped     int
}

// NewSeries seeds a series from historical candles (oldest first). Timestamps
// are aligned to the timeframe and any candle not strictly after its
// predecessor is dropped (keep-first).
func NewSeries(tf Timeframe, history []Candle, opts ...SeriesOption) (*Series, error) {
	width := tf.Millis()
	if width <= 0 {
		return nil, fmt.Errorf("new series: unsupported timeframe %q", tf)
	}
	s := &Series{
		tf:      tf,
		width:   width,
		maxGap:  DefaultMaxGap,
		candles: make([]Candle, 0, len(history)+64),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, c := range history {
		c.Timestamp = AlignTimestamp(c.Timestamp, width)
		if n := len(s.candles); n > 0 && c.Timestamp <= s.candles[n-1].Timestamp {
			s.dropped++
			continue
		}
		s.candles = append(s.candles, c)
	}
	if len(s.candles) == 0 {
		return nil, fmt.Errorf("new series %s: %w", tf, ErrNoCandles)
	}
	return s, nil
}

func (s *Series) Timeframe() Timeframe { return s.tf }

// Dropped reports how many seed candles were discarded as duplicates or out of order.
func (s *Series) Dropped() int { return s.dropped }

func (s *Series) Len() int { return len(s.candles) }

// Last returns the live candle.
func (s *Series) Last() Candle { return s.candles[len(s.candles)-1] }

// Candles returns a copy of the sequence, oldest first.
func (s *Series) Candles() []Candle {
	out := make([]Candle, len(s.candles))
	copy(out, s.candles)
	return out
}

// Ingest applies one trade to the series.
//
//   - ts before the end of the live interval: merged into the live candle.
//   - ts at least two intervals past the live start: every skipped interval
//     gets a flat zero-volume candle at the previous close. The tick's own
//     candle is only opened when WithGapTick is set. A gap wider than the
//     WithMaxGap bound is rejected and leaves the series untouched.
//   - otherwise a new live candle is opened at the next interval, seeded
//     with the tick.
func (s *Series) Ingest(price, size float64, ts int64, now time.Time) (IngestResult, error) {
	if !positiveFinite(price) || !positiveFinite(size) {
		return IngestResult{}, fmt.Errorf("%w: price=%v size=%v", ErrInvalidTick, price, size)
	}

	res := IngestResult{Skew: time.Duration(now.UnixMilli()-ts) * time.Millisecond}
	last := &s.candles[len(s.candles)-1]

	switch {
	case ts < last.Timestamp+s.width:
		last.merge(price, size)
		res.Event = SameCandle

	case ts >= last.Timestamp+2*s.width:
		missing := (ts-last.Timestamp)/s.width - 1
		if missing > int64(s.maxGap) {
			return IngestResult{}, fmt.Errorf("%w: ts=%d is %d intervals past the live candle, limit %d",
				ErrInvalidTick, ts, missing, s.maxGap)
		}
		prev := *last
		for i := int64(0); i < missing; i++ {
			prev = flat(prev.Timestamp+s.width, prev.Close)
			s.candles = append(s.candles, prev)
		}
		res.Filled = int(missing)
		if s.fillGapTick {
			s.candles = append(s.candles, Candle{
				Timestamp: prev.Timestamp + s.width,
				Open:      price, High: price, Low: price, Close: price,
				Volume: size,
			})
		}
		res.Event = NewCandle

	default:
		s.candles = append(s.candles, Candle{
			Timestamp: last.Timestamp + s.width,
			Open:      price, High: price, Low: price, Close: price,
			Volume: size,
		})
		res.Event = NewCandle
	}
	return res, nil
}

// AbsSkew is the magnitude of the clock difference.
func (r IngestResult) AbsSkew() time.Duration {
	return time.Duration(math.Abs(float64(r.Skew)))
}
