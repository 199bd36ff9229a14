package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"aurum/internal/account"
	"aurum/internal/advisor"
	"aurum/internal/config/loader"
	"aurum/internal/gateway/notifier"
	"aurum/internal/logger"
	"aurum/internal/market"
	"aurum/internal/market/indicator"
	"aurum/internal/report"
	"aurum/internal/store"
	"aurum/internal/store/cyclelog"
	"aurum/internal/strategy"
)

// Runner executes one sweep: every pool entry gets a decision cycle.
// Accounts run sequentially and isolated from each other, so a failing
// quote or a conflicting save never blocks the rest of the pool.
type Runner struct {
	Store        store.AccountStore
	Source       market.Source
	Engine       *strategy.Engine
	IndicatorCfg indicator.Config
	CandleLimit  int
	Cycles       *cyclelog.Store
	Notifier     notifier.Notifier
	Advisor      *advisor.ChatClient
	Pool         *loader.PoolLoader
	Chart        bool
	// Location 交易所时区，交易窗口按它判定。
	Location *time.Location

	nowFn       func() time.Time
	renderChart func(report.ChartInput) (report.ImageResult, error)
}

func NewRunner(r Runner) *Runner {
	if r.CandleLimit <= 0 {
		r.CandleLimit = 120
	}
	if r.Notifier == nil {
		r.Notifier = notifier.Noop{}
	}
	if r.Location == nil {
		r.Location = time.Local
	}
	r.nowFn = time.Now
	r.renderChart = report.RenderDailyChart
	return &r
}

// cycleOutcome bundles what one account cycle produced.
type cycleOutcome struct {
	strategy.CycleResult

	Price   decimal.Decimal
	Signals strategy.Signals
	Candles []market.Candle
}

// Sweep runs one decision cycle per pool entry.
func (r *Runner) Sweep(ctx context.Context) {
	snap := r.Pool.Snapshot()
	if len(snap.Entries) == 0 {
		logger.Warnf("sweep: pool is empty, nothing to do")
		return
	}
	logger.Infof("sweep: start entries=%d pool_version=%d", len(snap.Entries), snap.Version)
	for _, entry := range snap.Entries {
		r.runOne(ctx, entry)
		if ctx.Err() != nil {
			logger.Warnf("sweep: aborted: %v", ctx.Err())
			return
		}
	}
	logger.Infof("sweep: done entries=%d", len(snap.Entries))
}

// runOne never lets one account's failure escape.
func (r *Runner) runOne(ctx context.Context, entry loader.PoolEntry) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Errorf("cycle panic auth=%s stock=%s: %v", entry.Auth, entry.StockCode, rec)
		}
	}()

	now := r.nowFn().In(r.Location)
	rec := cyclelog.Record{
		TraceID:   uuid.NewString(),
		Timestamp: now.UnixMilli(),
		Auth:      entry.Auth,
		StockCode: entry.StockCode,
		StockName: entry.StockName,
	}

	a, out, err := r.cycle(ctx, entry, now)
	if err != nil {
		logger.Errorf("cycle failed auth=%s stock=%s: %v", entry.Auth, entry.StockCode, err)
		rec.Decision = "error"
		rec.Error = err.Error()
		r.logCycle(ctx, rec)
		return
	}

	if out.Skip != account.SkipNone {
		logger.Infof("cycle skipped auth=%s reason=%s", entry.Auth, out.Skip)
		rec.Decision = "skip"
		rec.SkipReason = string(out.Skip)
		r.logCycle(ctx, rec)
		return
	}

	rec.Decision = out.Decision.String()
	rec.Reasons = out.Reasons
	rec.Note = out.Note
	rec.Signals = out.Signals
	rec.Price = out.Price
	if out.RealizedProfit != nil {
		rec.Profit = *out.RealizedProfit
	}
	r.logCycle(ctx, rec)

	if out.Trade != nil {
		r.notify(ctx, entry, now, a, out)
	}
}

// cycle loads the account, gathers market data, decides and persists. A
// concurrent writer triggers exactly one re-read/re-decide/re-save before
// the conflict is surfaced.
func (r *Runner) cycle(ctx context.Context, entry loader.PoolEntry, now time.Time) (*account.Account, cycleOutcome, error) {
	a, err := r.Store.Get(ctx, entry.Auth)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, cycleOutcome{}, fmt.Errorf("account %s not registered", entry.Auth)
		}
		return nil, cycleOutcome{}, err
	}

	// Cheap pre-check: an ineligible account needs no market data. The
	// engine re-evaluates the same guard before mutating.
	if reason := account.Eligibility(a, now); reason != account.SkipNone {
		return a, cycleOutcome{CycleResult: strategy.CycleResult{Skip: reason}}, nil
	}

	quote, err := r.Source.Quote(ctx, entry.StockCode)
	if err != nil {
		return nil, cycleOutcome{}, err
	}
	candles, err := r.Source.DailyCandles(ctx, entry.StockCode, r.CandleLimit)
	if err != nil {
		return nil, cycleOutcome{}, err
	}
	snap, err := indicator.Compute(candles, r.IndicatorCfg)
	if err != nil {
		return nil, cycleOutcome{}, err
	}

	in := strategy.CycleInput{Now: now, Price: quote.Price, Signals: snap.Signals}
	a, res, err := r.decideAndSave(ctx, a, entry.Auth, in)
	if err != nil {
		return nil, cycleOutcome{}, err
	}
	return a, cycleOutcome{
		CycleResult: res,
		Price:       quote.Price,
		Signals:     snap.Signals,
		Candles:     candles,
	}, nil
}

func (r *Runner) decideAndSave(ctx context.Context, a *account.Account, auth string, in strategy.CycleInput) (*account.Account, strategy.CycleResult, error) {
	res, err := r.Engine.RunCycle(a, in)
	if err != nil {
		return nil, strategy.CycleResult{}, err
	}
	if !res.Mutated {
		return a, res, nil
	}
	err = r.Store.Save(ctx, a, a.Version)
	if err == nil {
		return a, res, nil
	}
	if !errors.Is(err, store.ErrConflict) {
		return nil, strategy.CycleResult{}, err
	}

	// Someone else wrote first. One bounded retry against fresh state.
	logger.Warnf("save conflict auth=%s, retrying once", auth)
	fresh, gerr := r.Store.Get(ctx, auth)
	if gerr != nil {
		return nil, strategy.CycleResult{}, gerr
	}
	res, err = r.Engine.RunCycle(fresh, in)
	if err != nil {
		return nil, strategy.CycleResult{}, err
	}
	if !res.Mutated {
		return fresh, res, nil
	}
	if serr := r.Store.Save(ctx, fresh, fresh.Version); serr != nil {
		return nil, strategy.CycleResult{}, fmt.Errorf("save after conflict retry: %w", serr)
	}
	return fresh, res, nil
}

func (r *Runner) logCycle(ctx context.Context, rec cyclelog.Record) {
	if r.Cycles == nil {
		return
	}
	if _, err := r.Cycles.Insert(ctx, rec); err != nil {
		logger.Errorf("cycle log insert failed auth=%s: %v", rec.Auth, err)
	}
}

func (r *Runner) notify(ctx context.Context, entry loader.PoolEntry, now time.Time, a *account.Account, out cycleOutcome) {
	rep := report.CycleReport{
		Auth:      entry.Auth,
		StockCode: entry.StockCode,
		StockName: entry.StockName,
		Price:     out.Price,
		Now:       now,
		Account:   a,
		Result:    out.CycleResult,
	}
	if r.Advisor.Enabled() {
		advice, err := r.Advisor.Review(ctx, rep.Summary())
		if err != nil {
			logger.Warnf("advisor review failed auth=%s: %v", entry.Auth, err)
		} else {
			rep.Advice = advice
		}
	}
	if err := r.Notifier.SendText(rep.Message().RenderMarkdown()); err != nil {
		logger.Errorf("notify failed auth=%s: %v", entry.Auth, err)
	}
	if !r.Chart || len(out.Candles) == 0 {
		return
	}
	img, err := r.renderChart(report.ChartInput{
		Context:   ctx,
		StockCode: entry.StockCode,
		StockName: entry.StockName,
		Candles:   out.Candles,
	})
	if err != nil {
		logger.Warnf("chart render failed stock=%s: %v", entry.StockCode, err)
		return
	}
	if err := r.Notifier.SendPhoto(img.Bytes, img.Description); err != nil {
		logger.Errorf("chart notify failed auth=%s: %v", entry.Auth, err)
	}
}
