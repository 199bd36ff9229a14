package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"aurum/internal/account"
	aucfg "aurum/internal/config"
	cfgloader "aurum/internal/config/loader"
	"aurum/internal/logger"
	"aurum/internal/scheduler"
	"aurum/internal/store"
	"aurum/internal/store/cyclelog"
	apihttp "aurum/internal/transport/http"
)

// App 负责应用级编排：加载配置→初始化依赖→启动 HTTP 与调度循环。
type App struct {
	cfg           *aucfg.Config
	accounts      store.AccountStore
	closeAccounts func() error
	cycles        *cyclelog.Store
	pool          *cfgloader.PoolLoader
	runner        *scheduler.Runner
	times         []account.TimeOfDay
	loc           *time.Location
	http          *apihttp.Server
	Summary       *StartupSummary
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(cfg *aucfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Run 启动 HTTP 服务与每日调度，直到 ctx 取消。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.Close()

	if a.Summary != nil {
		a.Summary.Print()
	}

	group, ctx := errgroup.WithContext(ctx)

	if a.http != nil {
		group.Go(func() error {
			err := a.http.Start(ctx)
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("http server error: %w", err)
			}
			return nil
		})
	}

	group.Go(func() error {
		daily := scheduler.NewDailyScheduler(ctx, a.times, a.loc)
		daily.RunImmediately = a.cfg.Scheduler.RunImmediately
		daily.Start(func() { a.runner.Sweep(ctx) })
		return nil
	})

	err := group.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Close 释放存储与文件监听等资源，可重复调用。
func (a *App) Close() {
	if a == nil {
		return
	}
	if a.pool != nil {
		if err := a.pool.Close(); err != nil {
			logger.Warnf("close pool loader: %v", err)
		}
		a.pool = nil
	}
	if a.cycles != nil {
		if err := a.cycles.Close(); err != nil {
			logger.Warnf("close cycle log: %v", err)
		}
		a.cycles = nil
	}
	if a.closeAccounts != nil {
		if err := a.closeAccounts(); err != nil {
			logger.Warnf("close account store: %v", err)
		}
		a.closeAccounts = nil
	}
}

// Runner exposes the sweep runner (for testing/replay harnesses).
func (a *App) Runner() *scheduler.Runner {
	if a == nil {
		return nil
	}
	return a.runner
}
