package strategy

import (
	"time"

	"github.com/shopspring/decimal"

	"aurum/internal/account"
)

func newHeldPosition(buy float64, shares int64) account.Position {
	price := decimal.NewFromFloat(buy)
	return account.Position{
		HasPosition:       true,
		BuyPrice:          price,
		Shares:            shares,
		Amount:            price.Mul(decimal.NewFromInt(shares)),
		CurrentProfitRate: decimal.Zero,
		MaxProfitRate:     decimal.Zero,
	}
}

func testAggregator() *Aggregator {
	return NewAggregator(AggregatorConfig{
		BullishSignals: []string{"kdj_golden_cross", "macd_golden_cross", "rsi_oversold"},
		Exit: ExitRules{
			StopLossRate:       decimal.NewFromFloat(0.10),
			ProfitCallbackRate: decimal.NewFromFloat(0.01),
			MaxProfitRate:      decimal.NewFromFloat(0.5),
			MaxHoldDays:        30,
			BearishSignals:     []string{"macd_dead_cross"},
		},
	})
}

func testEngine() *Engine {
	return NewEngine(EngineConfig{
		Aggregator: testAggregator(),
		Sizer: ProportionalSizer{
			BaseInvestment: decimal.NewFromInt(3000),
			MinBuyAmount:   decimal.NewFromInt(1000),
			LotSize:        100,
		},
		CostRate: decimal.Zero,
	})
}

func testAccount() *account.Account {
	a := account.New("tok-1")
	a.ExpireTime = time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	a.Window = account.TradingWindow{Start: tod("09:00"), End: tod("15:00")}
	a.TotalCost = decimal.NewFromInt(10000)
	return a
}

func tod(s string) account.TimeOfDay {
	t, err := account.ParseTimeOfDay(s)
	if err != nil {
		panic(err)
	}
	return t
}

func tradingNoon() time.Time {
	return time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)
}
