package app

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"aurum/internal/account"
	"aurum/internal/advisor"
	"aurum/internal/backtest"
	aucfg "aurum/internal/config"
	cfgloader "aurum/internal/config/loader"
	"aurum/internal/gateway/notifier"
	"aurum/internal/logger"
	"aurum/internal/market"
	"aurum/internal/market/indicator"
	"aurum/internal/scheduler"
	"aurum/internal/store"
	"aurum/internal/store/cyclelog"
	"aurum/internal/store/gormstore"
	"aurum/internal/strategy"
	apihttp "aurum/internal/transport/http"
)

// AppBuilder 按配置逐层组装依赖。构造函数字段可在测试中替换，
// 以便在不触达磁盘或网络的情况下拼出一个完整 App。
type AppBuilder struct {
	cfg *aucfg.Config

	accountStoreFn func(aucfg.StoreConfig) (store.AccountStore, func() error, error)
	cycleStoreFn   func(aucfg.StoreConfig) (*cyclelog.Store, error)
	sourceFn       func() market.Source
	notifierFn     func(aucfg.NotifyConfig) notifier.Notifier
	poolFn         func(string) (*cfgloader.PoolLoader, error)
}

type AppBuilderOption func(*AppBuilder)

type appBuilderDeps interface {
	Build(context.Context) (*App, error)
}

func NewAppBuilder(cfg *aucfg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:            cfg,
		accountStoreFn: buildAccountStore,
		cycleStoreFn:   buildCycleStore,
		sourceFn:       func() market.Source { return market.NewEastmoneySource() },
		notifierFn:     buildNotifier,
		poolFn:         cfgloader.NewPoolLoader,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func buildAccountStore(cfg aucfg.StoreConfig) (store.AccountStore, func() error, error) {
	s, err := gormstore.New(cfg.AccountsPath)
	if err != nil {
		return nil, nil, fmt.Errorf("init account store: %w", err)
	}
	return s, s.Close, nil
}

func buildCycleStore(cfg aucfg.StoreConfig) (*cyclelog.Store, error) {
	if cfg.CycleLogPath == "" {
		return nil, nil
	}
	s, err := cyclelog.New(cfg.CycleLogPath)
	if err != nil {
		return nil, fmt.Errorf("init cycle log: %w", err)
	}
	return s, nil
}

func buildNotifier(cfg aucfg.NotifyConfig) notifier.Notifier {
	if !cfg.Telegram.Enabled {
		return notifier.Noop{}
	}
	logger.Infof("✓ Telegram 通知已启用 chat_id=%s", cfg.Telegram.ChatID)
	return notifier.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID)
}

func buildAdvisor(cfg aucfg.AdvisorConfig) *advisor.ChatClient {
	if !cfg.Enabled {
		return nil
	}
	return &advisor.ChatClient{
		BaseURL:    cfg.APIURL,
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		Timeout:    time.Duration(cfg.TimeoutSeconds) * time.Second,
		MaxRetries: cfg.MaxRetries,
	}
}

func buildEngine(cfg aucfg.StrategyConfig) *strategy.Engine {
	agg := strategy.NewAggregator(strategy.AggregatorConfig{
		BullishSignals: cfg.EntrySignals,
		Exit: strategy.ExitRules{
			StopLossRate:       decimal.NewFromFloat(cfg.Exit.StopLossRate),
			ProfitCallbackRate: decimal.NewFromFloat(cfg.Exit.ProfitCallbackRate),
			MaxProfitRate:      decimal.NewFromFloat(cfg.Exit.MaxProfitRate),
			MaxHoldDays:        cfg.Exit.MaxHoldDays,
			BearishSignals:     cfg.Exit.BearishSignals,
		},
	})
	sizer := strategy.ProportionalSizer{
		BaseInvestment: decimal.NewFromFloat(cfg.BaseInvestment),
		MinBuyAmount:   decimal.NewFromFloat(cfg.MinBuyAmount),
		LotSize:        cfg.LotSize,
	}
	return strategy.NewEngine(strategy.EngineConfig{
		Aggregator: agg,
		Sizer:      sizer,
		CostRate:   decimal.NewFromFloat(cfg.CostRate),
		OncePerDay: cfg.OncePerDay,
	})
}

func indicatorConfig(cfg aucfg.IndicatorConfig) indicator.Config {
	out := indicator.DefaultConfig()
	if cfg.KDJPeriod > 0 {
		out.KDJPeriod = cfg.KDJPeriod
	}
	if cfg.KDJSmooth > 0 {
		out.KDJSmooth = cfg.KDJSmooth
	}
	if cfg.MACDFast > 0 {
		out.MACDFast = cfg.MACDFast
	}
	if cfg.MACDSlow > 0 {
		out.MACDSlow = cfg.MACDSlow
	}
	if cfg.MACDSignal > 0 {
		out.MACDSignal = cfg.MACDSignal
	}
	if cfg.RSIPeriod > 0 {
		out.RSIPeriod = cfg.RSIPeriod
	}
	if cfg.RSIOversold > 0 {
		out.RSIOversold = cfg.RSIOversold
	}
	return out
}

// Build 组装但不启动。
func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	accounts, closeAccounts, err := b.accountStoreFn(cfg.Store)
	if err != nil {
		return nil, err
	}
	cycles, err := b.cycleStoreFn(cfg.Store)
	if err != nil {
		return nil, err
	}

	pool, err := b.poolFn(cfg.Pool.Path)
	if err != nil {
		return nil, fmt.Errorf("load stock pool: %w", err)
	}
	snap := pool.Snapshot()
	logger.Infof("✓ 股票池已加载 entries=%d path=%s", len(snap.Entries), cfg.Pool.Path)

	source := b.sourceFn()
	engine := buildEngine(cfg.Strategy)
	textNotifier := b.notifierFn(cfg.Notify)
	reviewer := buildAdvisor(cfg.Advisor)

	loc, err := cfg.Scheduler.Location()
	if err != nil {
		return nil, err
	}

	runner := scheduler.NewRunner(scheduler.Runner{
		Store:        accounts,
		Source:       source,
		Engine:       engine,
		IndicatorCfg: indicatorConfig(cfg.Market.Indicator),
		CandleLimit:  cfg.Market.CandleLimit,
		Cycles:       cycles,
		Notifier:     textNotifier,
		Advisor:      reviewer,
		Pool:         pool,
		Chart:        cfg.Notify.Chart,
		Location:     loc,
	})

	times := make([]account.TimeOfDay, 0, len(cfg.Scheduler.Times))
	for _, raw := range cfg.Scheduler.Times {
		tod, err := account.ParseTimeOfDay(raw)
		if err != nil {
			return nil, fmt.Errorf("scheduler time %q: %w", raw, err)
		}
		times = append(times, tod)
	}

	router := apihttp.NewRouter(accounts, cycles, source, cfg.Register, cfg.Market.CandleLimit)
	router.Backtest = &backtest.Service{
		Source:    source,
		Indicator: indicatorConfig(cfg.Market.Indicator),
		Defaults:  cfg.Strategy,
		NewEngine: buildEngine,
	}
	server, err := apihttp.NewServer(cfg.App.HTTPAddr, router)
	if err != nil {
		return nil, err
	}

	app := &App{
		cfg:           cfg,
		accounts:      accounts,
		closeAccounts: closeAccounts,
		cycles:        cycles,
		pool:          pool,
		runner:        runner,
		times:         times,
		loc:           loc,
		http:          server,
		Summary:       newStartupSummary(cfg, snap, times, loc),
	}
	return app, nil
}
