package market

import (
	"fmt"
	"strings"
	"time"
)

// Timeframe is a candle bucket width such as "1m" or "4h".
type Timeframe string

const (
	M1  Timeframe = "1m"
	M5  Timeframe = "5m"
	M15 Timeframe = "15m"
	M30 Timeframe = "30m"
	H1  Timeframe = "1h"
	H4  Timeframe = "4h"
)

var timeframeSeconds = map[Timeframe]int64{
	M1:  60,
	M5:  300,
	M15: 900,
	M30: 1800,
	H1:  3600,
	H4:  14400,
}

// Timeframes lists the supported widths, shortest first.
func Timeframes() []Timeframe {
	return []Timeframe{M1, M5, M15, M30, H1, H4}
}

func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := timeframeSeconds[tf]; !ok {
		names := make([]string, 0, len(timeframeSeconds))
		for _, t := range Timeframes() {
			names = append(names, string(t))
		}
		return "", fmt.Errorf("unsupported timeframe %q (supported: %s)", s, strings.Join(names, ", "))
	}
	return tf, nil
}

// Millis returns the bucket width in milliseconds, or 0 for an unknown timeframe.
func (tf Timeframe) Millis() int64 {
	return timeframeSeconds[tf] * 1000
}

func (tf Timeframe) Duration() time.Duration {
	return time.Duration(tf.Millis()) * time.Millisecond
}

// AlignTimestamp floors ts (epoch ms) to the start of its bucket.
func AlignTimestamp(ts, widthMillis int64) int64 {
	if widthMillis <= 0 {
		return ts
	}
	r := ts % widthMillis
	if r < 0 {
		r += widthMillis
	}
	return ts - r
}
