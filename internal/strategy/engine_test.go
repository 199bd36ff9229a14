package strategy

import (
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aurum/internal/account"
)

func TestEnterOnBullishSignal(t *testing.T) {
	eng := testEngine()
	a := testAccount()

	res, err := eng.RunCycle(a, CycleInput{
		Now:   tradingNoon(),
		Price: decimal.NewFromFloat(10.00),
		Signals: Signals{
			"kdj_golden_cross":  true,
			"macd_golden_cross": false,
			"rsi_oversold":      false,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, DecisionEnter, res.Decision)
	assert.Equal(t, []string{"kdj_golden_cross"}, res.Reasons)
	require.NotNil(t, res.Trade)
	assert.Equal(t, account.TradeBuy, res.Trade.Side)

	assert.True(t, a.Position.HasPosition)
	assert.True(t, a.Position.BuyPrice.Equal(decimal.NewFromFloat(10.00)))
	assert.Equal(t, int64(100), a.Position.Shares)
	assert.True(t, a.Position.Amount.Equal(decimal.NewFromInt(1000)))
	assert.True(t, a.Position.MaxProfitRate.IsZero())
	assert.True(t, a.Position.CurrentProfitRate.IsZero())
	assert.Equal(t, 1, a.Trades.Len())
	assert.Equal(t, tradingNoon(), a.LastTradeDate)
	assert.Equal(t, int64(100), a.TotalShares)
}

func TestHoldRecomputesRates(t *testing.T) {
	eng := testEngine()
	a := testAccount()
	a.Position = newHeldPosition(10.00, 100)
	a.LastTradeDate = tradingNoon().AddDate(0, 0, -3)

	res, err := eng.RunCycle(a, CycleInput{
		Now:     tradingNoon(),
		Price:   decimal.NewFromFloat(12.00),
		Signals: Signals{},
	})
	require.NoError(t, err)

	assert.Equal(t, DecisionNone, res.Decision)
	assert.Nil(t, res.Trade)
	assert.True(t, a.Position.CurrentProfitRate.Equal(decimal.NewFromFloat(0.20)))
	assert.True(t, a.Position.MaxProfitRate.Equal(decimal.NewFromFloat(0.20)))
	assert.Zero(t, a.Trades.Len())
	// Metrics-only cycle leaves the trade clock alone.
	assert.Equal(t, tradingNoon().AddDate(0, 0, -3), a.LastTradeDate)
}

func TestMaxProfitRateNeverBelowCurrent(t *testing.T) {
	eng := testEngine()
	a := testAccount()
	a.Position = newHeldPosition(10.00, 100)
	a.LastTradeDate = tradingNoon().AddDate(0, 0, -5)

	for _, price := range []float64{10.2, 10.4, 10.39, 10.41, 10.38} {
		_, err := eng.RunCycle(a, CycleInput{
			Now:     tradingNoon(),
			Price:   decimal.NewFromFloat(price),
			Signals: Signals{},
		})
		require.NoError(t, err)
		assert.True(t, a.Position.MaxProfitRate.Cmp(a.Position.CurrentProfitRate) >= 0,
			"max %s < current %s at price %v", a.Position.MaxProfitRate, a.Position.CurrentProfitRate, price)
	}
}

func TestExitOnStopLoss(t *testing.T) {
	eng := testEngine()
	a := testAccount()
	a.Position = newHeldPosition(10.00, 100)
	a.HistoryMaxProfit = decimal.NewFromInt(250)
	a.TotalShares = 100
	a.LastTradeDate = tradingNoon().AddDate(0, 0, -10)

	res, err := eng.RunCycle(a, CycleInput{
		Now:     tradingNoon(),
		Price:   decimal.NewFromFloat(9.00),
		Signals: Signals{},
	})
	require.NoError(t, err)

	assert.Equal(t, DecisionExit, res.Decision)
	assert.Equal(t, []string{"stop_loss"}, res.Reasons)
	require.NotNil(t, res.RealizedProfit)
	assert.True(t, res.RealizedProfit.Equal(decimal.NewFromInt(-100)))

	// Best-ever profit is monotone: a losing exit never lowers it.
	assert.True(t, a.HistoryMaxProfit.Equal(decimal.NewFromInt(250)))
	assert.True(t, a.LastTotalProfit.Equal(decimal.NewFromInt(-100)))

	require.NotNil(t, res.Trade)
	assert.Equal(t, account.TradeSell, res.Trade.Side)
	require.NotNil(t, res.Trade.Profit)
	assert.True(t, res.Trade.Profit.Equal(decimal.NewFromInt(-100)))

	assert.False(t, a.Position.HasPosition)
	assert.NoError(t, a.Position.Validate())
	assert.Zero(t, a.TotalShares)
}

func TestExitOnProfitCallback(t *testing.T) {
	eng := testEngine()
	a := testAccount()
	a.Position = newHeldPosition(10.00, 100)
	a.Position.MaxProfitRate = decimal.NewFromFloat(0.05)
	a.Position.CurrentProfitRate = decimal.NewFromFloat(0.05)
	a.LastTradeDate = tradingNoon().AddDate(0, 0, -4)

	res, err := eng.RunCycle(a, CycleInput{
		Now:     tradingNoon(),
		Price:   decimal.NewFromFloat(10.35),
		Signals: Signals{},
	})
	require.NoError(t, err)

	assert.Equal(t, DecisionExit, res.Decision)
	assert.Equal(t, []string{"profit_callback"}, res.Reasons)
	require.NotNil(t, res.RealizedProfit)
	assert.True(t, res.RealizedProfit.Equal(decimal.NewFromInt(35)))
	assert.True(t, a.HistoryMaxProfit.Equal(decimal.NewFromInt(35)))
}

func TestExitOnBearishSignal(t *testing.T) {
	eng := testEngine()
	a := testAccount()
	a.Position = newHeldPosition(10.00, 100)
	a.LastTradeDate = tradingNoon().AddDate(0, 0, -2)

	res, err := eng.RunCycle(a, CycleInput{
		Now:     tradingNoon(),
		Price:   decimal.NewFromFloat(10.05),
		Signals: Signals{"macd_dead_cross": true},
	})
	require.NoError(t, err)
	assert.Equal(t, DecisionExit, res.Decision)
	assert.Equal(t, []string{"macd_dead_cross"}, res.Reasons)
}

func TestSkipOutsideWindowMutatesNothing(t *testing.T) {
	eng := testEngine()
	a := testAccount()
	before := a.Clone()

	res, err := eng.RunCycle(a, CycleInput{
		Now:     time.Date(2026, 3, 2, 20, 0, 0, 0, time.UTC),
		Price:   decimal.NewFromFloat(10.00),
		Signals: Signals{"kdj_golden_cross": true},
	})
	require.NoError(t, err)

	assert.Equal(t, account.SkipOutsideWindow, res.Skip)
	assert.False(t, res.Mutated)
	assert.Zero(t, a.Trades.Len())
	assert.True(t, reflect.DeepEqual(before, a.Clone()))
}

func TestExpiryDominatesBullishSignals(t *testing.T) {
	eng := testEngine()
	a := testAccount()
	a.ExpireTime = tradingNoon().Add(-time.Hour)
	before := a.Clone()

	res, err := eng.RunCycle(a, CycleInput{
		Now:   tradingNoon(),
		Price: decimal.NewFromFloat(10.00),
		Signals: Signals{
			"kdj_golden_cross":  true,
			"macd_golden_cross": true,
			"rsi_oversold":      true,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, account.SkipExpired, res.Skip)
	assert.False(t, res.Mutated)
	assert.True(t, reflect.DeepEqual(before, a.Clone()))
}

func TestFlatNoSignalIsIdempotent(t *testing.T) {
	eng := testEngine()
	a := testAccount()
	before := a.Clone()

	for i := 0; i < 3; i++ {
		res, err := eng.RunCycle(a, CycleInput{
			Now:     tradingNoon(),
			Price:   decimal.NewFromFloat(10.00),
			Signals: Signals{},
		})
		require.NoError(t, err)
		assert.Equal(t, DecisionNone, res.Decision)
		assert.False(t, res.Mutated)
	}
	assert.True(t, reflect.DeepEqual(before, a.Clone()))
}

func TestInvalidPriceAbortsCycle(t *testing.T) {
	eng := testEngine()
	a := testAccount()
	before := a.Clone()

	_, err := eng.RunCycle(a, CycleInput{
		Now:     tradingNoon(),
		Price:   decimal.Zero,
		Signals: Signals{"kdj_golden_cross": true},
	})
	assert.ErrorIs(t, err, ErrInvalidPrice)
	assert.True(t, reflect.DeepEqual(before, a.Clone()))
}

func TestHistoryMaxProfitMonotone(t *testing.T) {
	eng := testEngine()
	a := testAccount()
	day := tradingNoon()
	var observed []decimal.Decimal

	// Three full cycles with declining exits; the recorded best never drops.
	for i, exitPrice := range []float64{12.0, 10.5, 8.0} {
		_, err := eng.RunCycle(a, CycleInput{
			Now: day, Price: decimal.NewFromFloat(10.0),
			Signals: Signals{"kdj_golden_cross": true, "macd_golden_cross": true, "rsi_oversold": true},
		})
		require.NoError(t, err, "entry %d", i)
		require.True(t, a.Position.HasPosition)

		day = day.AddDate(0, 0, 1)
		_, err = eng.RunCycle(a, CycleInput{
			Now: day, Price: decimal.NewFromFloat(exitPrice),
			Signals: Signals{"macd_dead_cross": true},
		})
		require.NoError(t, err, "exit %d", i)
		require.False(t, a.Position.HasPosition)

		observed = append(observed, a.HistoryMaxProfit)
		day = day.AddDate(0, 0, 1)
	}

	for i := 1; i < len(observed); i++ {
		assert.True(t, observed[i].Cmp(observed[i-1]) >= 0,
			"historyMaxProfit dropped from %s to %s", observed[i-1], observed[i])
	}
	assert.Equal(t, 6, a.Trades.Len())
}

func TestOncePerDayGuardSuppressesSecondTrade(t *testing.T) {
	eng := NewEngine(EngineConfig{
		Aggregator: testAggregator(),
		Sizer: ProportionalSizer{
			BaseInvestment: decimal.NewFromInt(3000),
			MinBuyAmount:   decimal.NewFromInt(1000),
			LotSize:        100,
		},
		CostRate:   decimal.Zero,
		OncePerDay: true,
	})
	a := testAccount()

	_, err := eng.RunCycle(a, CycleInput{
		Now: tradingNoon(), Price: decimal.NewFromFloat(10.0),
		Signals: Signals{"kdj_golden_cross": true},
	})
	require.NoError(t, err)
	require.True(t, a.Position.HasPosition)

	// Stop-loss fires the same afternoon but the trade waits for tomorrow.
	res, err := eng.RunCycle(a, CycleInput{
		Now: tradingNoon().Add(2 * time.Hour), Price: decimal.NewFromFloat(8.0),
		Signals: Signals{},
	})
	require.NoError(t, err)
	assert.Equal(t, DecisionNone, res.Decision)
	assert.NotEmpty(t, res.Note)
	assert.True(t, a.Position.HasPosition)
	assert.Equal(t, 1, a.Trades.Len())
}

func TestEntrySuppressedWhenNoWholeLotAffordable(t *testing.T) {
	eng := NewEngine(EngineConfig{
		Aggregator: testAggregator(),
		Sizer: ProportionalSizer{
			BaseInvestment: decimal.NewFromInt(500),
			MinBuyAmount:   decimal.NewFromInt(100),
			LotSize:        100,
		},
	})
	a := testAccount()

	res, err := eng.RunCycle(a, CycleInput{
		Now: tradingNoon(), Price: decimal.NewFromFloat(88.0),
		Signals: Signals{"kdj_golden_cross": true},
	})
	require.NoError(t, err)
	assert.Equal(t, DecisionNone, res.Decision)
	assert.NotEmpty(t, res.Note)
	assert.False(t, a.Position.HasPosition)
	assert.Zero(t, a.Trades.Len())
}

func TestTransactionCostReducesRealizedProfit(t *testing.T) {
	eng := NewEngine(EngineConfig{
		Aggregator: testAggregator(),
		Sizer: ProportionalSizer{
			BaseInvestment: decimal.NewFromInt(3000),
			MinBuyAmount:   decimal.NewFromInt(1000),
			LotSize:        100,
		},
		CostRate: decimal.NewFromFloat(0.001),
	})
	a := testAccount()
	a.TotalCost = decimal.Zero

	_, err := eng.RunCycle(a, CycleInput{
		Now: tradingNoon(), Price: decimal.NewFromFloat(10.0),
		Signals: Signals{"kdj_golden_cross": true},
	})
	require.NoError(t, err)
	// Entry fee folded into cumulative cost: 1000 + 1000*0.001.
	assert.True(t, a.TotalCost.Equal(decimal.NewFromInt(1001)))

	res, err := eng.RunCycle(a, CycleInput{
		Now: tradingNoon().AddDate(0, 0, 2), Price: decimal.NewFromFloat(12.0),
		Signals: Signals{"macd_dead_cross": true},
	})
	require.NoError(t, err)
	require.NotNil(t, res.RealizedProfit)
	// (12-10)*100 minus the exit leg fee 1200*0.001.
	assert.True(t, res.RealizedProfit.Equal(decimal.NewFromFloat(198.8)), "got %s", res.RealizedProfit)
}
