// Package indicators provides technical analysis indicators computed over
// candle closes.
//
// All series functions return a slice the same length as their input. Entries
// that are not yet warmed up are NaN; callers check with math.IsNaN.
package indicators

import (
	"math"

	"github.com/rustyeddy/autotrader/market"
)

// Closes extracts the close of every candle.
func Closes(candles []market.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// At returns xs[len(xs)+idx] for a negative idx, NaN when out of range.
func At(xs []float64, idx int) float64 {
	i := idx
	if idx < 0 {
		i = len(xs) + idx
	}
	if i < 0 || i >= len(xs) {
		return math.NaN()
	}
	return xs[i]
}
