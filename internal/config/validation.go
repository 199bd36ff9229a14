package config

import (
	"fmt"
	"strings"
	"time"

	"aurum/internal/account"
)

// validate 对配置进行基础校验。An invalid trading window is fatal here so a
// bad deployment never reaches the scheduler.
func validate(c *Config) error {
	if err := c.Strategy.validate(); err != nil {
		return err
	}
	if err := c.Register.validate(); err != nil {
		return err
	}
	if err := c.Scheduler.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	if err := c.Advisor.validate(); err != nil {
		return err
	}
	return nil
}

func (s *StrategyConfig) validate() error {
	if s.MinBuyAmount > s.BaseInvestment {
		return fmt.Errorf("strategy.min_buy_amount (%v) must not exceed base_investment (%v)", s.MinBuyAmount, s.BaseInvestment)
	}
	if s.CostRate < 0 || s.CostRate >= 1 {
		return fmt.Errorf("strategy.cost_rate must be in [0, 1)")
	}
	e := s.Exit
	for name, v := range map[string]float64{
		"stop_loss_rate":       e.StopLossRate,
		"profit_callback_rate": e.ProfitCallbackRate,
		"max_profit_rate":      e.MaxProfitRate,
	} {
		if v < 0 {
			return fmt.Errorf("strategy.exit.%s must be >= 0", name)
		}
	}
	if e.MaxHoldDays < 0 {
		return fmt.Errorf("strategy.exit.max_hold_days must be >= 0")
	}
	return nil
}

func (r *RegisterConfig) validate() error {
	w, err := r.Window()
	if err != nil {
		return err
	}
	return w.Validate()
}

// Window parses the configured registration window.
func (r RegisterConfig) Window() (account.TradingWindow, error) {
	start, err := account.ParseTimeOfDay(r.WindowStart)
	if err != nil {
		return account.TradingWindow{}, fmt.Errorf("register.window_start: %w", err)
	}
	end, err := account.ParseTimeOfDay(r.WindowEnd)
	if err != nil {
		return account.TradingWindow{}, fmt.Errorf("register.window_end: %w", err)
	}
	return account.TradingWindow{Start: start, End: end}, nil
}

func (s *SchedulerConfig) validate() error {
	for _, t := range s.Times {
		if _, err := account.ParseTimeOfDay(t); err != nil {
			return fmt.Errorf("scheduler.times: %w", err)
		}
	}
	if _, err := s.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the scheduler timezone.
func (s SchedulerConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduler.timezone %q: %w", s.Timezone, err)
	}
	return loc, nil
}

func (n *NotifyConfig) validate() error {
	tg := n.Telegram
	if tg.Enabled && (strings.TrimSpace(tg.BotToken) == "" || strings.TrimSpace(tg.ChatID) == "") {
		return fmt.Errorf("notify.telegram enabled but bot_token/chat_id missing")
	}
	return nil
}

func (a *AdvisorConfig) validate() error {
	if a.Enabled && strings.TrimSpace(a.Model) == "" {
		return fmt.Errorf("advisor enabled but model missing")
	}
	if a.Enabled && strings.TrimSpace(a.APIKey) == "" {
		return fmt.Errorf("advisor enabled but api_key missing")
	}
	return nil
}
