package strategy

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"aurum/internal/account"
)

// ErrInvalidPrice rejects non-positive market or entry prices.
var ErrInvalidPrice = errors.New("invalid price")

var daysPerYear = decimal.NewFromInt(365)

// RecomputeHold marks the held position at marketPrice and advances the
// in-hold maximum profit rate. The input position is not modified.
func RecomputeHold(p account.Position, marketPrice decimal.Decimal) (account.Position, error) {
	if marketPrice.Sign() <= 0 {
		return account.Position{}, fmt.Errorf("%w: market price %s", ErrInvalidPrice, marketPrice)
	}
	if p.BuyPrice.Sign() <= 0 {
		return account.Position{}, fmt.Errorf("%w: buy price %s", ErrInvalidPrice, p.BuyPrice)
	}
	rate := marketPrice.Sub(p.BuyPrice).Div(p.BuyPrice)
	p.CurrentProfitRate = rate
	if rate.Cmp(p.MaxProfitRate) > 0 {
		p.MaxProfitRate = rate
	}
	return p, nil
}

// Realize computes the profit locked in by closing the position at
// exitPrice: (exit - buy) * shares.
func Realize(p account.Position, exitPrice decimal.Decimal) decimal.Decimal {
	return exitPrice.Sub(p.BuyPrice).Mul(decimal.NewFromInt(p.Shares))
}

// AnnualizedReturn scales a realized profit to a yearly rate. The ratio is
// undefined for zero cost or zero holding days; ok=false then, which
// callers must treat as "not computable", never as zero.
func AnnualizedReturn(realizedProfit, totalCost decimal.Decimal, holdingDays int) (decimal.Decimal, bool) {
	if totalCost.Sign() == 0 || holdingDays == 0 {
		return decimal.Zero, false
	}
	rate := realizedProfit.Div(totalCost).Mul(daysPerYear.Div(decimal.NewFromInt(int64(holdingDays))))
	return rate, true
}
