// Package risk sizes positions from account balance.
package risk

import (
	"errors"
	"fmt"
	"math"

	"github.com/rustyeddy/autotrader/market"
)

var ErrInvalidSize = errors.New("invalid trade size")

type Inputs struct {
	MarginBalance float64 // balance of the contract's margin asset
	BalancePct    float64 // percent of MarginBalance to commit, (0, 100]
	Price         float64 // reference price, normally the last close
	Model         market.Model
	Multiplier    float64
}

type Result struct {
	Margin       float64 // MarginBalance * BalancePct / 100
	ContractCost float64 // value of one contract in the margin asset
	RawSize      float64 // before lot rounding
}

// Calculate computes the unrounded position size.
//
// One inverse contract costs |multiplier| / price of margin; one linear or
// quanto contract costs |multiplier| * price.
func Calculate(in Inputs) (Result, error) {
	if in.MarginBalance <= 0 || math.IsNaN(in.MarginBalance) {
		return Result{}, fmt.Errorf("%w: margin balance %v", ErrInvalidSize, in.MarginBalance)
	}
	if in.BalancePct <= 0 || in.BalancePct > 100 {
		return Result{}, fmt.Errorf("%w: balance percent %v outside (0, 100]", ErrInvalidSize, in.BalancePct)
	}
	if in.Price <= 0 || math.IsNaN(in.Price) || math.IsInf(in.Price, 0) {
		return Result{}, fmt.Errorf("%w: price %v", ErrInvalidSize, in.Price)
	}
	mult := math.Abs(in.Multiplier)
	if mult == 0 {
		return Result{}, fmt.Errorf("%w: zero multiplier", ErrInvalidSize)
	}

	var cost float64
	switch in.Model {
	case market.Inverse:
		cost = mult / in.Price
	case market.Linear, market.Quanto:
		cost = mult * in.Price
	default:
		return Result{}, fmt.Errorf("%w: unknown model %q", ErrInvalidSize, in.Model)
	}

	margin := in.MarginBalance * in.BalancePct / 100
	return Result{
		Margin:       margin,
		ContractCost: cost,
		RawSize:      margin / cost,
	}, nil
}

// TradeSize sizes a position on c and rounds it to the nearest lot. A size
// that rounds to zero is an error.
func TradeSize(c *market.Contract, marginBalance, balancePct, price float64) (float64, error) {
	res, err := Calculate(Inputs{
		MarginBalance: marginBalance,
		BalancePct:    balancePct,
		Price:         price,
		Model:         c.Model(),
		Multiplier:    c.Multiplier(),
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", c.Symbol(), err)
	}
	size := c.RoundQuantity(res.RawSize)
	if size <= 0 {
		return 0, fmt.Errorf("%w: %s raw size %v rounds to zero (lot %v)", ErrInvalidSize, c.Symbol(), res.RawSize, c.LotSize())
	}
	return size, nil
}
