package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	aucfg "aurum/internal/config"
)

func testConfig(t *testing.T) *aucfg.Config {
	t.Helper()
	dir := t.TempDir()
	poolPath := filepath.Join(dir, "pool.yaml")
	require.NoError(t, os.WriteFile(poolPath, []byte(
		"pool:\n  - auth: tok-a\n    stock_code: \"600547\"\n    stock_name: 山东黄金\n"), 0o644))

	return &aucfg.Config{
		App: aucfg.AppConfig{LogLevel: "warn", HTTPAddr: ":0"},
		Store: aucfg.StoreConfig{
			AccountsPath: filepath.Join(dir, "accounts.db"),
			CycleLogPath: filepath.Join(dir, "cycles.db"),
		},
		Market: aucfg.MarketConfig{CandleLimit: 120},
		Strategy: aucfg.StrategyConfig{
			BaseInvestment: 10000,
			MinBuyAmount:   2000,
			LotSize:        100,
			CostRate:       0.001,
			OncePerDay:     true,
			EntrySignals:   []string{"kdj_golden_cross"},
		},
		Register:  aucfg.RegisterConfig{WindowStart: "09:30", WindowEnd: "15:00", ExpireDays: 365},
		Scheduler: aucfg.SchedulerConfig{Times: []string{"14:45", "10:00"}, Timezone: "Asia/Shanghai"},
		Pool:      aucfg.PoolConfig{Path: poolPath},
	}
}

func TestBuildAssemblesApp(t *testing.T) {
	a, err := NewAppBuilder(testConfig(t)).Build(context.Background())
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Runner())
	assert.NotNil(t, a.http)
	assert.NotNil(t, a.cycles)
	require.Len(t, a.times, 2)
	assert.Equal(t, "Asia/Shanghai", a.loc.String())

	require.NotNil(t, a.Summary)
	assert.Equal(t, []string{"山东黄金(600547)"}, a.Summary.Pool.Entries)
	assert.Equal(t, "-", a.Summary.Notify.Advisor)
}

func TestBuildMissingPoolFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.Pool.Path = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := NewAppBuilder(cfg).Build(context.Background())
	require.Error(t, err)
}

func TestBuildRejectsBadSchedulerTime(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scheduler.Times = []string{"25:99"}
	_, err := NewAppBuilder(cfg).Build(context.Background())
	require.Error(t, err)
}

func TestCloseIsIdempotent(t *testing.T) {
	a, err := NewAppBuilder(testConfig(t)).Build(context.Background())
	require.NoError(t, err)
	a.Close()
	a.Close()
}
