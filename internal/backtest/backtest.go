// Package backtest 在历史日线上重放决策引擎：同一套入场/离场规则、
// 同一套指标，跑在一个一次性的内存账户上，输出成交明细与收益曲线。
package backtest

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"aurum/internal/account"
	"aurum/internal/market"
	"aurum/internal/market/indicator"
	"aurum/internal/strategy"
)

// Trade 一笔模拟成交。
type Trade struct {
	Date   string           `json:"date"`
	Side   string           `json:"side"`
	Price  decimal.Decimal  `json:"price"`
	Shares int64            `json:"shares"`
	Profit *decimal.Decimal `json:"profit,omitempty"`
}

// Point 收益曲线上的一个点：已实现 + 按收盘价盯市的浮动盈亏。
type Point struct {
	Date   string          `json:"date"`
	Price  float64         `json:"price"`
	Profit decimal.Decimal `json:"profit"`
}

type Period struct {
	Start string `json:"start_date"`
	End   string `json:"end_date"`
}

type Stats struct {
	Bars           int             `json:"bars"`
	Trades         int             `json:"trades"`
	Wins           int             `json:"wins"`
	Losses         int             `json:"losses"`
	RealizedProfit decimal.Decimal `json:"realized_profit"`
	FinalProfit    decimal.Decimal `json:"final_profit"`
}

// Result 一次回测的完整输出。
type Result struct {
	StockCode string  `json:"stock_code"`
	Period    Period  `json:"period"`
	Trades    []Trade `json:"trades"`
	Curve     []Point `json:"profit_curve"`
	Stats     Stats   `json:"stats"`
}

const dateLayout = "2006-01-02"

// Replay runs the engine bar by bar over candles (oldest first). Each bar
// sees only the candles up to and including itself, so signals carry no
// lookahead.
func Replay(engine *strategy.Engine, cfg indicator.Config, code string, candles []market.Candle) (Result, error) {
	if engine == nil {
		return Result{}, fmt.Errorf("backtest: nil engine")
	}
	if len(candles) <= indicator.MinBars {
		return Result{}, fmt.Errorf("backtest: need more than %d candles, got %d", indicator.MinBars, len(candles))
	}

	a := account.New("backtest")
	a.Window = account.TradingWindow{Start: 0, End: 24*60 - 1}

	res := Result{
		StockCode: code,
		Period: Period{
			Start: candles[indicator.MinBars-1].Date.Format(dateLayout),
			End:   candles[len(candles)-1].Date.Format(dateLayout),
		},
	}
	realized := decimal.Zero

	for i := indicator.MinBars - 1; i < len(candles); i++ {
		bar := candles[i]
		snap, err := indicator.Compute(candles[:i+1], cfg)
		if err != nil {
			// 序列尚未热身，跳过该根
			continue
		}
		price := decimal.NewFromFloat(bar.Close)
		out, err := engine.RunCycle(a, strategy.CycleInput{
			Now:     bar.Date.Add(12 * time.Hour),
			Price:   price,
			Signals: snap.Signals,
		})
		if err != nil {
			return Result{}, fmt.Errorf("backtest %s at %s: %w", code, bar.Date.Format(dateLayout), err)
		}
		if out.Trade != nil {
			res.Trades = append(res.Trades, Trade{
				Date:   out.Trade.Date.Format(dateLayout),
				Side:   string(out.Trade.Side),
				Price:  out.Trade.Price,
				Shares: out.Trade.Shares,
				Profit: out.Trade.Profit,
			})
		}
		if out.RealizedProfit != nil {
			realized = realized.Add(*out.RealizedProfit)
		}

		equity := realized
		if a.Position.HasPosition {
			equity = equity.Add(strategy.Realize(a.Position, price))
		}
		res.Curve = append(res.Curve, Point{
			Date:   bar.Date.Format(dateLayout),
			Price:  bar.Close,
			Profit: equity,
		})
	}

	res.Stats = summarize(res)
	return res, nil
}

func summarize(r Result) Stats {
	s := Stats{Bars: len(r.Curve), Trades: len(r.Trades)}
	realized := decimal.Zero
	for _, t := range r.Trades {
		if t.Profit == nil {
			continue
		}
		realized = realized.Add(*t.Profit)
		if t.Profit.Sign() > 0 {
			s.Wins++
		} else {
			s.Losses++
		}
	}
	s.RealizedProfit = realized
	if n := len(r.Curve); n > 0 {
		s.FinalProfit = r.Curve[n-1].Profit
	} else {
		s.FinalProfit = decimal.Zero
	}
	return s
}
