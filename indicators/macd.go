package indicators

// MACDResult holds the MACD line and its signal line, aligned with the input.
type MACDResult struct {
	Line   []float64
	Signal []float64
}

// Histogram returns Line - Signal.
func (m MACDResult) Histogram() []float64 {
	out := make([]float64, len(m.Line))
	for i := range m.Line {
		out[i] = m.Line[i] - m.Signal[i]
	}
	return out
}

// MACD computes EMA(fast) - EMA(slow) of closes and an EMA(signal) of that line.
func MACD(closes []float64, fast, slow, signal int) MACDResult {
	emaFast := EMA(closes, fast)
	emaSlow := EMA(closes, slow)

	line := make([]float64, len(closes))
	for i := range closes {
		line[i] = emaFast[i] - emaSlow[i]
	}
	return MACDResult{
		Line:   line,
		Signal: EMA(line, signal),
	}
}
