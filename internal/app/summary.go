package app

import (
	"fmt"
	"strings"
	"time"

	"aurum/internal/account"
	aucfg "aurum/internal/config"
	cfgloader "aurum/internal/config/loader"
)

// StartupSummary 启动时打印一次的配置快照，方便人工核对。
type StartupSummary struct {
	Pool      PoolSummary
	Schedule  ScheduleSummary
	Strategy  StrategySummary
	Notify    NotifySummary
	HTTPAddr  string
	StorePath string
}

type PoolSummary struct {
	Path    string
	Entries []string
}

type ScheduleSummary struct {
	Times          []string
	Timezone       string
	RunImmediately bool
}

type StrategySummary struct {
	EntrySignals   []string
	BearishSignals []string
	BaseInvestment float64
	StopLossRate   float64
	MaxHoldDays    int
	OncePerDay     bool
}

type NotifySummary struct {
	Telegram bool
	Chart    bool
	Advisor  string
}

func newStartupSummary(cfg *aucfg.Config, snap cfgloader.PoolSnapshot, times []account.TimeOfDay, loc *time.Location) *StartupSummary {
	entries := make([]string, 0, len(snap.Entries))
	for _, e := range snap.Entries {
		entries = append(entries, fmt.Sprintf("%s(%s)", e.StockName, e.StockCode))
	}
	timeStrs := make([]string, 0, len(times))
	for _, t := range times {
		timeStrs = append(timeStrs, t.String())
	}
	advisorModel := "-"
	if cfg.Advisor.Enabled {
		advisorModel = cfg.Advisor.Model
	}
	return &StartupSummary{
		Pool:     PoolSummary{Path: cfg.Pool.Path, Entries: entries},
		Schedule: ScheduleSummary{Times: timeStrs, Timezone: loc.String(), RunImmediately: cfg.Scheduler.RunImmediately},
		Strategy: StrategySummary{
			EntrySignals:   cfg.Strategy.EntrySignals,
			BearishSignals: cfg.Strategy.Exit.BearishSignals,
			BaseInvestment: cfg.Strategy.BaseInvestment,
			StopLossRate:   cfg.Strategy.Exit.StopLossRate,
			MaxHoldDays:    cfg.Strategy.Exit.MaxHoldDays,
			OncePerDay:     cfg.Strategy.OncePerDay,
		},
		Notify: NotifySummary{
			Telegram: cfg.Notify.Telegram.Enabled,
			Chart:    cfg.Notify.Chart,
			Advisor:  advisorModel,
		},
		HTTPAddr:  cfg.App.HTTPAddr,
		StorePath: cfg.Store.AccountsPath,
	}
}

func (s *StartupSummary) Print() {
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("%*s\n", 40+len("启动配置摘要 (STARTUP SUMMARY)")/2, "启动配置摘要 (STARTUP SUMMARY)")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Println("[股票池 (STOCK POOL)]")
	fmt.Printf("  文件: %s\n", s.Pool.Path)
	fmt.Printf("  标的: %s\n", formatList(s.Pool.Entries))
	fmt.Println()

	fmt.Println("[调度 (SCHEDULE)]")
	fmt.Printf("  触发点: %s\n", formatList(s.Schedule.Times))
	fmt.Printf("  时区: %s\n", s.Schedule.Timezone)
	fmt.Printf("  启动即执行: %v\n", s.Schedule.RunImmediately)
	fmt.Println()

	fmt.Println("[策略 (STRATEGY)]")
	fmt.Printf("  入场信号: %s\n", formatList(s.Strategy.EntrySignals))
	fmt.Printf("  离场信号: %s\n", formatList(s.Strategy.BearishSignals))
	fmt.Printf("  基准投入: %.2f\n", s.Strategy.BaseInvestment)
	fmt.Printf("  止损线: %.2f%%\n", s.Strategy.StopLossRate*100)
	fmt.Printf("  最长持有: %d 天\n", s.Strategy.MaxHoldDays)
	fmt.Printf("  每日限一次: %v\n", s.Strategy.OncePerDay)
	fmt.Println()

	fmt.Println("[通知与复盘 (NOTIFY & REVIEW)]")
	fmt.Printf("  Telegram: %v\n", s.Notify.Telegram)
	fmt.Printf("  日线图: %v\n", s.Notify.Chart)
	fmt.Printf("  复盘模型: %s\n", s.Notify.Advisor)
	fmt.Println()

	fmt.Printf("[服务 (SERVICE)]\n  HTTP: %s\n  账户库: %s\n", s.HTTPAddr, s.StorePath)
	fmt.Println(strings.Repeat("=", 80))
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
