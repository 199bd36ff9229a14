package config

import "strings"

// 默认值常量
const (
	defaultAppEnv       = "dev"
	defaultAppLogLevel  = "info"
	defaultAppHTTPAddr  = ":9992"
	defaultAppLogPath   = "/data/logs/aurum.log"
	defaultAccountsPath = "/data/db/accounts.db"
	defaultCycleLogPath = "/data/db/cycles.db"
	defaultCandleLimit  = 120
	defaultKDJPeriod    = 9
	defaultKDJSmooth    = 3
	defaultMACDFast     = 12
	defaultMACDSlow     = 26
	defaultMACDSignal   = 9
	defaultRSIPeriod    = 6
	defaultRSIOversold  = 20.0

	defaultBaseInvestment = 3000.0
	defaultMinBuyAmount   = 1000.0
	defaultLotSize        = 100
	defaultCostRate       = 0.001
	defaultStopLoss       = 0.10
	defaultCallback       = 0.01
	defaultMaxProfit      = 0.50
	defaultMaxHoldDays    = 30

	defaultWindowStart = "09:30"
	defaultWindowEnd   = "15:00"
	defaultExpireDays  = 365

	defaultTimezone       = "Asia/Shanghai"
	defaultAdvisorTimeout = 60
	defaultAdvisorRetries = 2
	defaultPoolPath       = "configs/pool.yaml"
)

func defaultEntrySignals() []string {
	return []string{"kdj_golden_cross", "macd_golden_cross", "rsi_oversold"}
}

func defaultBearishSignals() []string {
	return []string{"macd_dead_cross"}
}

func defaultSchedulerTimes() []string {
	return []string{"10:00", "14:45"}
}

func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Store.applyDefaults(keys)
	c.Market.applyDefaults(keys)
	c.Strategy.applyDefaults(keys)
	c.Register.applyDefaults(keys)
	c.Scheduler.applyDefaults(keys)
	c.Advisor.applyDefaults(keys)
	c.Pool.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
	)
}

func (s *StoreConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("store.accounts_path", &s.AccountsPath, defaultAccountsPath),
		stringFieldDefault("store.cycle_log_path", &s.CycleLogPath, defaultCycleLogPath),
	)
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	if m.CandleLimit <= 0 {
		m.CandleLimit = defaultCandleLimit
	}
	ind := &m.Indicator
	if ind.KDJPeriod <= 0 {
		ind.KDJPeriod = defaultKDJPeriod
	}
	if ind.KDJSmooth <= 0 {
		ind.KDJSmooth = defaultKDJSmooth
	}
	if ind.MACDFast <= 0 {
		ind.MACDFast = defaultMACDFast
	}
	if ind.MACDSlow <= 0 {
		ind.MACDSlow = defaultMACDSlow
	}
	if ind.MACDSignal <= 0 {
		ind.MACDSignal = defaultMACDSignal
	}
	if ind.RSIPeriod <= 0 {
		ind.RSIPeriod = defaultRSIPeriod
	}
	if ind.RSIOversold <= 0 {
		ind.RSIOversold = defaultRSIOversold
	}
}

func (s *StrategyConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	if s.BaseInvestment <= 0 {
		s.BaseInvestment = defaultBaseInvestment
	}
	if s.MinBuyAmount <= 0 {
		s.MinBuyAmount = defaultMinBuyAmount
	}
	if s.LotSize <= 0 {
		s.LotSize = defaultLotSize
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "strategy.cost_rate",
			need:  func() bool { return s.CostRate == 0 },
			apply: func() { s.CostRate = defaultCostRate },
		},
		fieldDefault{
			key:   "strategy.once_per_day",
			need:  func() bool { return true },
			apply: func() { s.OncePerDay = true },
		},
	)
	if len(s.EntrySignals) == 0 {
		s.EntrySignals = defaultEntrySignals()
	}
	s.Exit.applyDefaults(keys)
}

func (e *ExitConfig) applyDefaults(keys keySet) {
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "strategy.exit.stop_loss_rate",
			need:  func() bool { return e.StopLossRate == 0 },
			apply: func() { e.StopLossRate = defaultStopLoss },
		},
		fieldDefault{
			key:   "strategy.exit.profit_callback_rate",
			need:  func() bool { return e.ProfitCallbackRate == 0 },
			apply: func() { e.ProfitCallbackRate = defaultCallback },
		},
		fieldDefault{
			key:   "strategy.exit.max_profit_rate",
			need:  func() bool { return e.MaxProfitRate == 0 },
			apply: func() { e.MaxProfitRate = defaultMaxProfit },
		},
		fieldDefault{
			key:   "strategy.exit.max_hold_days",
			need:  func() bool { return e.MaxHoldDays == 0 },
			apply: func() { e.MaxHoldDays = defaultMaxHoldDays },
		},
	)
	if len(e.BearishSignals) == 0 && !keys.isSet("strategy.exit.bearish_signals") {
		e.BearishSignals = defaultBearishSignals()
	}
}

func (r *RegisterConfig) applyDefaults(keys keySet) {
	if r == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("register.window_start", &r.WindowStart, defaultWindowStart),
		stringFieldDefault("register.window_end", &r.WindowEnd, defaultWindowEnd),
	)
	if r.ExpireDays <= 0 {
		r.ExpireDays = defaultExpireDays
	}
}

func (s *SchedulerConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	if len(s.Times) == 0 {
		s.Times = defaultSchedulerTimes()
	}
	applyFieldDefaults(keys,
		stringFieldDefault("scheduler.timezone", &s.Timezone, defaultTimezone),
	)
}

func (a *AdvisorConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	if a.TimeoutSeconds <= 0 {
		a.TimeoutSeconds = defaultAdvisorTimeout
	}
	if a.MaxRetries <= 0 {
		a.MaxRetries = defaultAdvisorRetries
	}
}

func (p *PoolConfig) applyDefaults(keys keySet) {
	if p == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("pool.path", &p.Path, defaultPoolPath),
	)
}

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
