package market

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Model is the pricing arithmetic family of a contract.
type Model string

const (
	Linear  Model = "linear"
	Inverse Model = "inverse"
	Quanto  Model = "quanto"
)

// ParseModel accepts the model name in any case.
func ParseModel(s string) (Model, error) {
	switch Model(strings.ToLower(strings.TrimSpace(s))) {
	case Linear:
		return Linear, nil
	case Inverse:
		return Inverse, nil
	case Quanto:
		return Quanto, nil
	default:
		return "", fmt.Errorf("unknown contract model %q (supported: linear, inverse, quanto)", s)
	}
}

var ErrInvalidContract = errors.New("invalid contract")

// ContractSpec is the raw description an exchange hands out for a symbol.
type ContractSpec struct {
	Symbol      string  `json:"symbol" yaml:"symbol"`
	BaseAsset   string  `json:"base_asset" yaml:"base_asset"`
	QuoteAsset  string  `json:"quote_asset" yaml:"quote_asset"`
	MarginAsset string  `json:"margin_asset,omitempty" yaml:"margin_asset,omitempty"`
	TickSize    float64 `json:"tick_size" yaml:"tick_size"`
	LotSize     float64 `json:"lot_size" yaml:"lot_size"`
	Model       string  `json:"model" yaml:"model"`
	Multiplier  float64 `json:"multiplier" yaml:"multiplier"`
}

// Contract is immutable once built and shared by reference between every
// strategy instance trading the symbol.
type Contract struct {
	symbol      string
	baseAsset   string
	quoteAsset  string
	marginAsset string
	tickSize    float64
	lotSize     float64
	priceDec    int32
	qtyDec      int32
	model       Model
	multiplier  float64
}

// NewContract validates spec and normalises the multiplier sign for the model:
// inverse contracts always carry a negative multiplier, linear and quanto a
// positive one.
func NewContract(spec ContractSpec) (*Contract, error) {
	if strings.TrimSpace(spec.Symbol) == "" {
		return nil, fmt.Errorf("%w: symbol is required", ErrInvalidContract)
	}
	if !positiveFinite(spec.TickSize) {
		return nil, fmt.Errorf("%w: %s tick_size must be positive", ErrInvalidContract, spec.Symbol)
	}
	if !positiveFinite(spec.LotSize) {
		return nil, fmt.Errorf("%w: %s lot_size must be positive", ErrInvalidContract, spec.Symbol)
	}
	model, err := ParseModel(spec.Model)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidContract, spec.Symbol, err)
	}
	if spec.Multiplier == 0 || math.IsNaN(spec.Multiplier) || math.IsInf(spec.Multiplier, 0) {
		return nil, fmt.Errorf("%w: %s multiplier must be non-zero", ErrInvalidContract, spec.Symbol)
	}

	mult := math.Abs(spec.Multiplier)
	if model == Inverse {
		mult = -mult
	}

	c := &Contract{
		symbol:      spec.Symbol,
		baseAsset:   spec.BaseAsset,
		quoteAsset:  spec.QuoteAsset,
		marginAsset: spec.MarginAsset,
		tickSize:    spec.TickSize,
		lotSize:     spec.LotSize,
		priceDec:    decimals(spec.TickSize),
		qtyDec:      decimals(spec.LotSize),
		model:       model,
		multiplier:  mult,
	}
	if c.marginAsset == "" {
		c.marginAsset = c.quoteAsset
		if model == Inverse {
			c.marginAsset = c.baseAsset
		}
	}
	return c, nil
}

func (c *Contract) Symbol() string      { return c.symbol }
func (c *Contract) BaseAsset() string   { return c.baseAsset }
func (c *Contract) QuoteAsset() string  { return c.quoteAsset }
func (c *Contract) MarginAsset() string { return c.marginAsset }
func (c *Contract) TickSize() float64   { return c.tickSize }
func (c *Contract) LotSize() float64    { return c.lotSize }
func (c *Contract) Model() Model        { return c.model }
func (c *Contract) Multiplier() float64 { return c.multiplier }

// PriceDecimals is the number of decimals implied by the tick size.
func (c *Contract) PriceDecimals() int32 { return c.priceDec }

// QuantityDecimals is the number of decimals implied by the lot size.
func (c *Contract) QuantityDecimals() int32 { return c.qtyDec }

// Spec returns the normalised description of the contract.
func (c *Contract) Spec() ContractSpec {
	return ContractSpec{
		Symbol:      c.symbol,
		BaseAsset:   c.baseAsset,
		QuoteAsset:  c.quoteAsset,
		MarginAsset: c.marginAsset,
		TickSize:    c.tickSize,
		LotSize:     c.lotSize,
		Model:       string(c.model),
		Multiplier:  c.multiplier,
	}
}

// RoundQuantity rounds q to the nearest multiple of the lot size.
func (c *Contract) RoundQuantity(q float64) float64 {
	return roundToStep(q, c.lotSize)
}

// RoundPrice rounds p to the nearest multiple of the tick size.
func (c *Contract) RoundPrice(p float64) float64 {
	return roundToStep(p, c.tickSize)
}

func (c *Contract) FormatPrice(p float64) string {
	return decimal.NewFromFloat(p).StringFixed(c.priceDec)
}

// FormatPnL renders a PnL value. Inverse contracts settle in the base asset,
// which is quoted with 8 decimals.
func (c *Contract) FormatPnL(pnl float64) string {
	if c.model == Inverse {
		return decimal.NewFromFloat(pnl).StringFixed(8)
	}
	return decimal.NewFromFloat(pnl).StringFixed(c.priceDec)
}

func (c *Contract) String() string {
	return fmt.Sprintf("%s(%s x%g)", c.symbol, c.model, c.multiplier)
}

func roundToStep(x, step float64) float64 {
	if step <= 0 || math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	s := decimal.NewFromFloat(step)
	v := decimal.NewFromFloat(x).Div(s).Round(0).Mul(s)
	f, _ := v.Float64()
	return f
}

func decimals(step float64) int32 {
	exp := decimal.NewFromFloat(step).Exponent()
	if exp >= 0 {
		return 0
	}
	return -exp
}

func positiveFinite(x float64) bool {
	return x > 0 && !math.IsInf(x, 0) && !math.IsNaN(x)
}
