package strategy

import (
	"github.com/shopspring/decimal"

	"aurum/internal/account"
)

// Sizer decides how many shares an entry buys. Strength is in [0,1]; the
// engine derives it from the fraction of bullish signals that fired.
type Sizer interface {
	Shares(a *account.Account, price, strength decimal.Decimal) int64
}

// ProportionalSizer scales the entry amount with signal strength, clamped
// to [MinBuyAmount, BaseInvestment], then floors shares to whole board
// lots. A-share boards trade in lots of 100.
type ProportionalSizer struct {
	BaseInvestment decimal.Decimal
	MinBuyAmount   decimal.Decimal
	LotSize        int64
}

func (s ProportionalSizer) Shares(_ *account.Account, price, strength decimal.Decimal) int64 {
	if price.Sign() <= 0 || s.BaseInvestment.Sign() <= 0 {
		return 0
	}
	lot := s.LotSize
	if lot <= 0 {
		lot = 100
	}
	amount := s.BaseInvestment.Mul(strength)
	if amount.Cmp(s.MinBuyAmount) < 0 {
		amount = s.MinBuyAmount
	}
	if amount.Cmp(s.BaseInvestment) > 0 {
		amount = s.BaseInvestment
	}
	lots := amount.Div(price.Mul(decimal.NewFromInt(lot))).IntPart()
	return lots * lot
}
