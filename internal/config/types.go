package config

import "strings"

// Config 是 Aurum 的主配置载体。
type Config struct {
	App       AppConfig       `toml:"app"`
	Store     StoreConfig     `toml:"store"`
	Market    MarketConfig    `toml:"market"`
	Strategy  StrategyConfig  `toml:"strategy"`
	Register  RegisterConfig  `toml:"register"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Notify    NotifyConfig    `toml:"notify"`
	Advisor   AdvisorConfig   `toml:"advisor"`
	Pool      PoolConfig      `toml:"pool"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

type StoreConfig struct {
	AccountsPath string `toml:"accounts_path"`
	CycleLogPath string `toml:"cycle_log_path"`
}

type MarketConfig struct {
	CandleLimit int             `toml:"candle_limit"`
	Indicator   IndicatorConfig `toml:"indicator"`
}

// IndicatorConfig 技术指标参数。
type IndicatorConfig struct {
	KDJPeriod   int     `toml:"kdj_period"`
	KDJSmooth   int     `toml:"kdj_smooth"`
	MACDFast    int     `toml:"macd_fast"`
	MACDSlow    int     `toml:"macd_slow"`
	MACDSignal  int     `toml:"macd_signal"`
	RSIPeriod   int     `toml:"rsi_period"`
	RSIOversold float64 `toml:"rsi_oversold"`
}

// StrategyConfig 控制仓位、信号与离场规则。
type StrategyConfig struct {
	BaseInvestment float64    `toml:"base_investment"`
	MinBuyAmount   float64    `toml:"min_buy_amount"`
	LotSize        int64      `toml:"lot_size"`
	CostRate       float64    `toml:"cost_rate"`
	OncePerDay     bool       `toml:"once_per_day"`
	EntrySignals   []string   `toml:"entry_signals"`
	Exit           ExitConfig `toml:"exit"`
}

type ExitConfig struct {
	StopLossRate       float64  `toml:"stop_loss_rate"`
	ProfitCallbackRate float64  `toml:"profit_callback_rate"`
	MaxProfitRate      float64  `toml:"max_profit_rate"`
	MaxHoldDays        int      `toml:"max_hold_days"`
	BearishSignals     []string `toml:"bearish_signals"`
}

// RegisterConfig 新账户的默认交易窗口与有效期。
type RegisterConfig struct {
	WindowStart string `toml:"window_start"`
	WindowEnd   string `toml:"window_end"`
	ExpireDays  int    `toml:"expire_days"`
}

type SchedulerConfig struct {
	// Times 每日触发点（HH:MM，所在时区见 Timezone）。
	Times          []string `toml:"times"`
	Timezone       string   `toml:"timezone"`
	RunImmediately bool     `toml:"run_immediately"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `toml:"telegram"`
	// Chart 开/平仓推送是否附带日线图（需要本机 Chrome）。
	Chart bool `toml:"chart"`
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

type AdvisorConfig struct {
	Enabled        bool   `toml:"enabled"`
	APIURL         string `toml:"api_url"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxRetries     int    `toml:"max_retries"`
}

type PoolConfig struct {
	Path string `toml:"path"`
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	_, ok := k[strings.ToLower(strings.TrimSpace(path))]
	return ok
}

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
