package backtest

import (
	"context"
	"fmt"
	"strings"

	aucfg "aurum/internal/config"
	"aurum/internal/market"
	"aurum/internal/market/indicator"
	"aurum/internal/strategy"
)

// Request 回测参数。策略字段为 0 时沿用服务端默认配置。
type Request struct {
	StockCode          string  `json:"stock_code"`
	Months             int     `json:"months"`
	BaseInvestment     float64 `json:"base_investment"`
	MinBuyAmount       float64 `json:"min_buy_amount"`
	StopLossRate       float64 `json:"stop_loss_rate"`
	ProfitCallbackRate float64 `json:"profit_callback_rate"`
	MaxProfitRate      float64 `json:"max_profit_rate"`
	MaxHoldDays        int     `json:"max_hold_days"`
	CostRate           float64 `json:"transaction_cost_rate"`
}

const (
	defaultMonths = 6
	maxMonths     = 24
	// A 股每月约 22 个交易日
	barsPerMonth = 22
)

// Service 拉取历史日线并重放引擎。Engine 工厂由装配层注入，
// 保证回测与实盘用同一套构造逻辑。
type Service struct {
	Source    market.Source
	Indicator indicator.Config
	Defaults  aucfg.StrategyConfig
	NewEngine func(aucfg.StrategyConfig) *strategy.Engine
}

func (s *Service) Run(ctx context.Context, req Request) (Result, error) {
	code := strings.TrimSpace(req.StockCode)
	if code == "" {
		return Result{}, fmt.Errorf("backtest: stock code cannot be empty")
	}
	if s == nil || s.Source == nil || s.NewEngine == nil {
		return Result{}, fmt.Errorf("backtest: service not configured")
	}

	months := req.Months
	if months <= 0 {
		months = defaultMonths
	}
	if months > maxMonths {
		months = maxMonths
	}
	bars := months*barsPerMonth + indicator.MinBars

	candles, err := s.Source.DailyCandles(ctx, code, bars)
	if err != nil {
		return Result{}, fmt.Errorf("backtest %s: %w", code, err)
	}

	engine := s.NewEngine(s.mergeStrategy(req))
	return Replay(engine, s.Indicator, code, candles)
}

// mergeStrategy overlays the request's non-zero fields on the defaults.
func (s *Service) mergeStrategy(req Request) aucfg.StrategyConfig {
	cfg := s.Defaults
	if req.BaseInvestment > 0 {
		cfg.BaseInvestment = req.BaseInvestment
	}
	if req.MinBuyAmount > 0 {
		cfg.MinBuyAmount = req.MinBuyAmount
	}
	if req.CostRate > 0 {
		cfg.CostRate = req.CostRate
	}
	if req.StopLossRate > 0 {
		cfg.Exit.StopLossRate = req.StopLossRate
	}
	if req.ProfitCallbackRate > 0 {
		cfg.Exit.ProfitCallbackRate = req.ProfitCallbackRate
	}
	if req.MaxProfitRate > 0 {
		cfg.Exit.MaxProfitRate = req.MaxProfitRate
	}
	if req.MaxHoldDays > 0 {
		cfg.Exit.MaxHoldDays = req.MaxHoldDays
	}
	return cfg
}
