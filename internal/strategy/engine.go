package strategy

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"aurum/internal/account"
)

// Engine is the position state machine. It is pure and synchronous: time
// and price are injected, no I/O happens here, and an ineligible or no-op
// cycle leaves the account untouched.
type Engine struct {
	agg        *Aggregator
	sizer      Sizer
	costRate   decimal.Decimal
	oncePerDay bool
}

// EngineConfig wires policy into the state machine. CostRate is the
// per-leg transaction cost applied to the traded amount; zero disables it.
type EngineConfig struct {
	Aggregator *Aggregator
	Sizer      Sizer
	CostRate   decimal.Decimal
	OncePerDay bool
}

func NewEngine(cfg EngineConfig) *Engine {
	return &Engine{
		agg:        cfg.Aggregator,
		sizer:      cfg.Sizer,
		costRate:   cfg.CostRate,
		oncePerDay: cfg.OncePerDay,
	}
}

// CycleInput is one decision cycle's injected environment.
type CycleInput struct {
	Now     time.Time
	Price   decimal.Decimal
	Signals Signals
}

// CycleResult reports what the cycle did. Trade is nil unless a transition
// executed; RealizedProfit and Annualized are set only on exits.
type CycleResult struct {
	Skip           account.SkipReason
	Decision       Decision
	Reasons        []string
	Note           string
	Trade          *account.TradeRecord
	RealizedProfit *decimal.Decimal
	Annualized     *decimal.Decimal
	Mutated        bool
}

// RunCycle applies one decision cycle to the account, mutating it in place
// when a transition or hold recompute happens. When the guard skips or the
// decision is a flat no-op the account is byte-identical afterwards.
func (e *Engine) RunCycle(a *account.Account, in CycleInput) (CycleResult, error) {
	if reason := account.Eligibility(a, in.Now); reason != account.SkipNone {
		return CycleResult{Skip: reason}, nil
	}
	if in.Price.Sign() <= 0 {
		return CycleResult{}, fmt.Errorf("%w: market price %s", ErrInvalidPrice, in.Price)
	}

	if !a.Position.HasPosition {
		return e.cycleFlat(a, in)
	}
	return e.cycleHeld(a, in)
}

func (e *Engine) cycleFlat(a *account.Account, in CycleInput) (CycleResult, error) {
	eval := e.agg.Evaluate(EvalInput{Signals: in.Signals})
	if eval.Decision != DecisionEnter {
		return CycleResult{Decision: DecisionNone}, nil
	}
	res := CycleResult{Decision: DecisionEnter, Reasons: eval.Reasons}
	if e.oncePerDay && sameDay(a.LastTradeDate, in.Now) {
		res.Decision = DecisionNone
		res.Note = "suppressed: already traded today"
		return res, nil
	}
	shares := e.sizer.Shares(a, in.Price, e.strength(in.Signals))
	if shares <= 0 {
		res.Decision = DecisionNone
		res.Note = "suppressed: sizing yields no whole lot at current price"
		return res, nil
	}

	trade := account.TradeRecord{
		Date:   in.Now,
		Side:   account.TradeBuy,
		Price:  in.Price,
		Shares: shares,
	}
	if err := a.Trades.Append(trade); err != nil {
		return CycleResult{}, err
	}
	amount := in.Price.Mul(decimal.NewFromInt(shares))
	a.Position = account.Position{
		HasPosition:       true,
		BuyPrice:          in.Price,
		Shares:            shares,
		Amount:            amount,
		CurrentProfitRate: decimal.Zero,
		MaxProfitRate:     decimal.Zero,
	}
	a.TotalShares += shares
	a.TotalCost = a.TotalCost.Add(amount).Add(amount.Mul(e.costRate))
	a.LastTradeDate = in.Now

	res.Trade = &trade
	res.Mutated = true
	return res, nil
}

func (e *Engine) cycleHeld(a *account.Account, in CycleInput) (CycleResult, error) {
	marked, err := RecomputeHold(a.Position, in.Price)
	if err != nil {
		return CycleResult{}, err
	}
	heldDays := daysBetween(a.LastTradeDate, in.Now)
	eval := e.agg.Evaluate(EvalInput{
		Signals:           in.Signals,
		HasPosition:       true,
		CurrentProfitRate: marked.CurrentProfitRate,
		MaxProfitRate:     marked.MaxProfitRate,
		HeldDays:          heldDays,
	})

	if eval.Decision != DecisionExit {
		// Metrics-only hold: no trade, lastTradeDate unchanged.
		a.Position = marked
		return CycleResult{Decision: DecisionNone, Mutated: true}, nil
	}

	res := CycleResult{Decision: DecisionExit, Reasons: eval.Reasons}
	if e.oncePerDay && sameDay(a.LastTradeDate, in.Now) {
		a.Position = marked
		res.Decision = DecisionNone
		res.Note = "suppressed: already traded today"
		res.Mutated = true
		return res, nil
	}

	realized := Realize(a.Position, in.Price)
	exitAmount := in.Price.Mul(decimal.NewFromInt(a.Position.Shares))
	realized = realized.Sub(exitAmount.Mul(e.costRate))

	profit := realized
	trade := account.TradeRecord{
		Date:   in.Now,
		Side:   account.TradeSell,
		Price:  in.Price,
		Shares: a.Position.Shares,
		Profit: &profit,
	}
	if err := a.Trades.Append(trade); err != nil {
		return CycleResult{}, err
	}

	if annual, ok := AnnualizedReturn(realized, a.TotalCost, heldDays); ok {
		res.Annualized = &annual
	}
	a.LastTotalProfit = realized
	if realized.Cmp(a.HistoryMaxProfit) > 0 {
		a.HistoryMaxProfit = realized
	}
	a.TotalShares -= trade.Shares
	if a.TotalShares < 0 {
		a.TotalShares = 0
	}
	a.TotalCost = a.TotalCost.Sub(a.Position.Amount)
	if a.TotalCost.Sign() < 0 {
		a.TotalCost = decimal.Zero
	}
	a.Position.ResetFlat()
	a.LastTradeDate = in.Now

	res.Trade = &trade
	res.RealizedProfit = &realized
	res.Mutated = true
	return res, nil
}

func (e *Engine) strength(signals Signals) decimal.Decimal {
	fired, total := e.agg.EntrySignalCount(signals)
	if total == 0 || fired == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(fired)).Div(decimal.NewFromInt(int64(total)))
}

func sameDay(a, b time.Time) bool {
	if a.IsZero() || b.IsZero() {
		return false
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func daysBetween(from, to time.Time) int {
	if from.IsZero() || to.Before(from) {
		return 0
	}
	return int(to.Sub(from).Hours() / 24)
}
