package strategy

import (
	"github.com/shopspring/decimal"
)

// Decision is the aggregate direction derived from one signal snapshot.
type Decision int

const (
	DecisionNone Decision = iota
	DecisionEnter
	DecisionExit
)

func (d Decision) String() string {
	switch d {
	case DecisionEnter:
		return "enter"
	case DecisionExit:
		return "exit"
	default:
		return "none"
	}
}

// Signals is a snapshot of named boolean indicator conditions, e.g.
// kdj_golden_cross or rsi_oversold, computed upstream of the engine.
type Signals map[string]bool

// ExitRules configures when a held position is closed. Unset fields
// (zero values) disable the corresponding rule.
type ExitRules struct {
	// StopLossRate closes when currentProfitRate <= -StopLossRate.
	StopLossRate decimal.Decimal
	// ProfitCallbackRate closes when the profit rate has pulled back from
	// its in-hold maximum by at least this much, provided the maximum was
	// positive.
	ProfitCallbackRate decimal.Decimal
	// MaxProfitRate closes when currentProfitRate exceeds this cap.
	MaxProfitRate decimal.Decimal
	// MaxHoldDays closes after holding longer than this many days.
	MaxHoldDays int
	// BearishSignals close on any listed signal being true.
	BearishSignals []string
}

// AggregatorConfig names the bullish entry set and the exit policy.
type AggregatorConfig struct {
	BullishSignals []string
	Exit           ExitRules
}

// Aggregator reduces a signal snapshot plus position context into a single
// directional decision. Stateless: the same input always yields the same
// output.
type Aggregator struct {
	cfg AggregatorConfig
}

func NewAggregator(cfg AggregatorConfig) *Aggregator {
	return &Aggregator{cfg: cfg}
}

// EvalInput carries everything a decision depends on. Rates refer to the
// position marked at the current price.
type EvalInput struct {
	Signals           Signals
	HasPosition       bool
	CurrentProfitRate decimal.Decimal
	MaxProfitRate     decimal.Decimal
	HeldDays          int
}

// Evaluation is the decision plus the contributing signal/rule names, kept
// for the cycle audit trail.
type Evaluation struct {
	Decision Decision
	Reasons  []string
}

// Evaluate applies the policy. Exit conditions are only consulted while a
// position is held; entry only while flat (single position slot, no
// averaging in).
func (a *Aggregator) Evaluate(in EvalInput) Evaluation {
	if in.HasPosition {
		return a.evaluateExit(in)
	}
	return a.evaluateEntry(in)
}

func (a *Aggregator) evaluateEntry(in EvalInput) Evaluation {
	var fired []string
	for _, name := range a.cfg.BullishSignals {
		if in.Signals[name] {
			fired = append(fired, name)
		}
	}
	if len(fired) == 0 {
		return Evaluation{Decision: DecisionNone}
	}
	return Evaluation{Decision: DecisionEnter, Reasons: fired}
}

func (a *Aggregator) evaluateExit(in EvalInput) Evaluation {
	for _, name := range a.cfg.Exit.BearishSignals {
		if in.Signals[name] {
			return Evaluation{Decision: DecisionExit, Reasons: []string{name}}
		}
	}
	rules := a.cfg.Exit
	if rules.StopLossRate.Sign() > 0 && in.CurrentProfitRate.Cmp(rules.StopLossRate.Neg()) <= 0 {
		return Evaluation{Decision: DecisionExit, Reasons: []string{"stop_loss"}}
	}
	if rules.ProfitCallbackRate.Sign() > 0 && in.MaxProfitRate.Sign() > 0 {
		if in.MaxProfitRate.Sub(in.CurrentProfitRate).Cmp(rules.ProfitCallbackRate) >= 0 {
			return Evaluation{Decision: DecisionExit, Reasons: []string{"profit_callback"}}
		}
	}
	if rules.MaxProfitRate.Sign() > 0 && in.CurrentProfitRate.Cmp(rules.MaxProfitRate) > 0 {
		return Evaluation{Decision: DecisionExit, Reasons: []string{"max_profit"}}
	}
	if rules.MaxHoldDays > 0 && in.HeldDays > rules.MaxHoldDays {
		return Evaluation{Decision: DecisionExit, Reasons: []string{"max_hold_days"}}
	}
	return Evaluation{Decision: DecisionNone}
}

// EntrySignalCount reports how many of the configured bullish signals are
// set; used by sizing to scale the entry amount.
func (a *Aggregator) EntrySignalCount(signals Signals) (fired, total int) {
	total = len(a.cfg.BullishSignals)
	for _, name := range a.cfg.BullishSignals {
		if signals[name] {
			fired++
		}
	}
	return fired, total
}
