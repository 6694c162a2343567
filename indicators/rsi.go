package indicators

import "math"

// RSI computes the relative strength index with Wilder smoothing over
// period. out[i] describes closes[i]; out[0] is always NaN because it has no
// delta. Values are rounded to two decimals.
//
// A window with neither gains nor losses has no direction and reports 50.
func RSI(closes []float64, period int) []float64 {
	out := nanSeries(len(closes))
	if period <= 0 || len(closes) < 2 {
		return out
	}

	gains := make([]float64, len(closes)-1)
	losses := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		d := closes[i] - closes[i-1]
		if d > 0 {
			gains[i-1] = d
		} else {
			losses[i-1] = -d
		}
	}

	alpha := ComAlpha(float64(period - 1))
	avgGain := EWM(gains, alpha, period)
	avgLoss := EWM(losses, alpha, period)

	for i := range avgGain {
		g, l := avgGain[i], avgLoss[i]
		if math.IsNaN(g) || math.IsNaN(l) {
			continue
		}
		var v float64
		switch {
		case g == 0 && l == 0:
			v = 50
		case l == 0:
			v = 100
		default:
			v = 100 - 100/(1+g/l)
		}
		out[i+1] = math.Round(v*100) / 100
	}
	return out
}
