package indicators

import "math"

// SpanAlpha is the smoothing factor for an EMA of the given span, 2/(span+1).
func SpanAlpha(span int) float64 {
	return 2.0 / float64(span+1)
}

// ComAlpha is the smoothing factor for a center of mass, 1/(1+com).
// Wilder smoothing over n periods is com = n-1.
func ComAlpha(com float64) float64 {
	return 1.0 / (1.0 + com)
}

// EWM is the bias-adjusted exponentially weighted mean: every output is the
// weighted average of all inputs so far with weights (1-alpha)^age. It matches
// the adjusted form used by most dataframe libraries, so early values are not
// dominated by the first observation.
//
// NaN inputs are skipped (weights still decay). Outputs before minPeriods
// valid observations are NaN.
func EWM(xs []float64, alpha float64, minPeriods int) []float64 {
	out := make([]float64, len(xs))
	decay := 1 - alpha

	var num, den float64
	seen := 0
	for i, x := range xs {
		num *= decay
		den *= decay
		if !math.IsNaN(x) {
			num += x
			den++
			seen++
		}
		if seen == 0 || seen < minPeriods || den == 0 {
			out[i] = math.NaN()
			continue
		}
		out[i] = num / den
	}
	return out
}

// EMA is EWM with span smoothing and no warmup requirement.
func EMA(xs []float64, span int) []float64 {
	if span <= 0 {
		return nanSeries(len(xs))
	}
	return EWM(xs, SpanAlpha(span), 0)
}

func nanSeries(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}
