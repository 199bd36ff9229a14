package account

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Status marks the account lifecycle. Records are never hard-deleted in
// normal operation, only switched to StatusDeleted.
type Status int

const (
	StatusActive Status = iota
	StatusDeleted
)

func (s Status) String() string {
	if s == StatusDeleted {
		return "deleted"
	}
	return "active"
}

// Switch is the user-facing on/off toggle for the decision engine.
type Switch int

const (
	SwitchOff Switch = iota
	SwitchOn
)

func (s Switch) On() bool { return s == SwitchOn }

// TimeOfDay is minutes since midnight, 0..1439.
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", s, err)
	}
	return TimeOfDay(t.Hour()*60 + t.Minute()), nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// TradingWindow bounds the time of day within which decision cycles may run.
// The window does not wrap midnight: Start <= End.
type TradingWindow struct {
	Start TimeOfDay
	End   TimeOfDay
}

func (w TradingWindow) Validate() error {
	if w.Start < 0 || w.End >= 24*60 || w.Start > w.End {
		return fmt.Errorf("invalid trading window %s-%s", w.Start, w.End)
	}
	return nil
}

// Contains reports whether now's time of day (in now's location) falls
// inside the window, bounds inclusive.
func (w TradingWindow) Contains(now time.Time) bool {
	tod := TimeOfDay(now.Hour()*60 + now.Minute())
	return tod >= w.Start && tod <= w.End
}

// Position is the single live snapshot per account, overwritten in place.
// While flat every field is zero; that invariant is enforced by Validate
// and restored by ResetFlat.
type Position struct {
	HasPosition       bool
	BuyPrice          decimal.Decimal
	Shares            int64
	Amount            decimal.Decimal
	CurrentProfitRate decimal.Decimal
	MaxProfitRate     decimal.Decimal
}

// FlatPosition returns the canonical empty position.
func FlatPosition() Position {
	return Position{
		BuyPrice:          decimal.Zero,
		Amount:            decimal.Zero,
		CurrentProfitRate: decimal.Zero,
		MaxProfitRate:     decimal.Zero,
	}
}

func (p *Position) ResetFlat() { *p = FlatPosition() }

// Validate checks the structural invariants of the snapshot.
func (p Position) Validate() error {
	if !p.HasPosition {
		if p.Shares != 0 || !p.BuyPrice.IsZero() || !p.Amount.IsZero() ||
			!p.CurrentProfitRate.IsZero() || !p.MaxProfitRate.IsZero() {
			return fmt.Errorf("flat position carries non-zero fields")
		}
		return nil
	}
	if p.Shares <= 0 || p.BuyPrice.Sign() <= 0 {
		return fmt.Errorf("held position requires positive shares and buy price")
	}
	if want := p.BuyPrice.Mul(decimal.NewFromInt(p.Shares)); !p.Amount.Equal(want) {
		return fmt.Errorf("position amount %s does not match buy price × shares (%s)", p.Amount, want)
	}
	if p.MaxProfitRate.Cmp(p.CurrentProfitRate) < 0 {
		return fmt.Errorf("max profit rate %s below current %s", p.MaxProfitRate, p.CurrentProfitRate)
	}
	return nil
}

// Account is the per-auth strategy state row. One account holds at most
// one position at a time.
type Account struct {
	Auth       string
	ExpireTime time.Time
	Status     Status
	Window     TradingWindow
	Switched   Switch

	TotalCost        decimal.Decimal
	TotalShares      int64
	HistoryMaxProfit decimal.Decimal
	LastTotalProfit  decimal.Decimal

	Position      Position
	Trades        TradeLog
	LastTradeDate time.Time

	Creator    string
	Updater    string
	CreateTime time.Time
	UpdateTime time.Time

	// Version backs the optimistic save discipline of the store.
	Version int64
}

// New returns an account in the default flat state.
func New(auth string) *Account {
	return &Account{
		Auth:             auth,
		Status:           StatusActive,
		Switched:         SwitchOn,
		TotalCost:        decimal.Zero,
		HistoryMaxProfit: decimal.Zero,
		LastTotalProfit:  decimal.Zero,
		Position:         FlatPosition(),
	}
}

// Clone deep-copies the account, trade history included.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	dup := *a
	dup.Trades = a.Trades.clone()
	return &dup
}
