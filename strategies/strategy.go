package strategies

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/rustyeddy/autotrader/market"
)

// Evaluator reads candle history (oldest first, the last candle is live) and
// emits a signal. Implementations hold only their parameters and are safe to
// call from any goroutine.
type Evaluator interface {
	Name() string
	Evaluate(candles []market.Candle) Signal
}

const (
	VariantTechnical = "technical"
	VariantBreakout  = "breakout"
)

var ErrMissingParameter = errors.New("missing parameter")

// Params carries variant-specific parameters by name.
type Params map[string]float64

var required = map[string][]string{
	VariantTechnical: {"ema_fast", "ema_slow", "ema_signal", "rsi_length"},
	VariantBreakout:  {"min_volume"},
}

// Variants lists the supported variant names.
func Variants() []string {
	out := make([]string, 0, len(required))
	for v := range required {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// RequiredParams lists the parameter names a variant needs.
func RequiredParams(variant string) ([]string, error) {
	names, ok := required[normalize(variant)]
	if !ok {
		return nil, unknownVariant(variant)
	}
	return append([]string(nil), names...), nil
}

// Validate checks params for variant without keeping the evaluator.
func Validate(variant string, params Params) error {
	_, err := New(variant, params)
	return err
}

// New builds the evaluator for variant.
func New(variant string, params Params) (Evaluator, error) {
	v := normalize(variant)
	names, ok := required[v]
	if !ok {
		return nil, unknownVariant(variant)
	}
	for _, name := range names {
		x, ok := params[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingParameter, name)
		}
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, fmt.Errorf("%s: %s must be finite", v, name)
		}
	}

	switch v {
	case VariantTechnical:
		return newTechnical(params)
	case VariantBreakout:
		return newBreakout(params)
	}
	return nil, unknownVariant(variant)
}

func normalize(variant string) string {
	return strings.ToLower(strings.TrimSpace(variant))
}

func unknownVariant(variant string) error {
	return fmt.Errorf("unknown strategy %q (supported: %s)", variant, strings.Join(Variants(), ", "))
}

func positiveInt(params Params, name string) (int, error) {
	x := params[name]
	if x < 1 || x != math.Trunc(x) {
		return 0, fmt.Errorf("%s must be a positive integer, got %v", name, x)
	}
	return int(x), nil
}
