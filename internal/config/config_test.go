package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", "app:\n  env: prod\n")
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "prod", cfg.App.Env)
	assert.Equal(t, defaultAppLogLevel, cfg.App.LogLevel)
	assert.Equal(t, defaultAppHTTPAddr, cfg.App.HTTPAddr)
	assert.Equal(t, defaultBaseInvestment, cfg.Strategy.BaseInvestment)
	assert.Equal(t, defaultMinBuyAmount, cfg.Strategy.MinBuyAmount)
	assert.Equal(t, int64(defaultLotSize), cfg.Strategy.LotSize)
	assert.InDelta(t, defaultCostRate, cfg.Strategy.CostRate, 1e-9)
	assert.True(t, cfg.Strategy.OncePerDay)
	assert.Equal(t, defaultEntrySignals(), cfg.Strategy.EntrySignals)
	assert.InDelta(t, defaultStopLoss, cfg.Strategy.Exit.StopLossRate, 1e-9)
	assert.Equal(t, defaultMaxHoldDays, cfg.Strategy.Exit.MaxHoldDays)
	assert.Equal(t, defaultSchedulerTimes(), cfg.Scheduler.Times)
	assert.Equal(t, defaultTimezone, cfg.Scheduler.Timezone)
	assert.Equal(t, defaultRSIPeriod, cfg.Market.Indicator.RSIPeriod)
}

func TestLoadExplicitZeroDisablesRule(t *testing.T) {
	body := `strategy:
  exit:
    max_profit_rate: 0
`
	path := writeConfig(t, t.TempDir(), "config.yaml", body)
	cfg, err := Load(path)
	require.NoError(t, err)

	// Explicit zero means disabled, not "use default".
	assert.Zero(t, cfg.Strategy.Exit.MaxProfitRate)
	assert.InDelta(t, defaultStopLoss, cfg.Strategy.Exit.StopLossRate, 1e-9)
}

func TestLoadIncludesMergeInOrder(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "base.yaml", "app:\n  env: base\n  log_level: debug\n")
	path := writeConfig(t, dir, "config.yaml", "include:\n  - base.yaml\napp:\n  env: prod\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "prod", cfg.App.Env)
	assert.Equal(t, "debug", cfg.App.LogLevel)
}

func TestLoadIncludeCycle(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "a.yaml", "include: [b.yaml]\n")
	path := writeConfig(t, dir, "b.yaml", "include: [a.yaml]\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "include cycle")
}

func TestLoadRejectsInvalidWindow(t *testing.T) {
	body := `register:
  window_start: "16:00"
  window_end: "09:30"
`
	path := writeConfig(t, t.TempDir(), "config.yaml", body)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsMalformedSchedulerTime(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", "scheduler:\n  times: [\"25:99\"]\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheduler.times")
}

func TestLoadRejectsTelegramWithoutToken(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "config.yaml", "notify:\n  telegram:\n    enabled: true\n")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsMinAboveBase(t *testing.T) {
	body := `strategy:
  base_investment: 1000
  min_buy_amount: 2000
`
	path := writeConfig(t, t.TempDir(), "config.yaml", body)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestRegisterWindowParses(t *testing.T) {
	r := RegisterConfig{WindowStart: "09:30", WindowEnd: "15:00"}
	w, err := r.Window()
	require.NoError(t, err)
	assert.Equal(t, "09:30", w.Start.String())
	assert.Equal(t, "15:00", w.End.String())
}
