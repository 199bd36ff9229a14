package account

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidTradeRecord rejects malformed or out-of-order trade appends.
var ErrInvalidTradeRecord = errors.New("invalid trade record")

type TradeSide string

const (
	TradeBuy  TradeSide = "buy"
	TradeSell TradeSide = "sell"
)

// TradeRecord is immutable once appended to the ledger. Profit is present
// only on sells.
type TradeRecord struct {
	Date   time.Time        `json:"date"`
	Side   TradeSide        `json:"type"`
	Price  decimal.Decimal  `json:"price"`
	Shares int64            `json:"shares"`
	Profit *decimal.Decimal `json:"profit,omitempty"`
}

func (r TradeRecord) validate() error {
	if r.Side != TradeBuy && r.Side != TradeSell {
		return fmt.Errorf("%w: unknown side %q", ErrInvalidTradeRecord, r.Side)
	}
	if r.Price.Sign() <= 0 {
		return fmt.Errorf("%w: price must be positive, got %s", ErrInvalidTradeRecord, r.Price)
	}
	if r.Shares <= 0 {
		return fmt.Errorf("%w: shares must be positive, got %d", ErrInvalidTradeRecord, r.Shares)
	}
	if r.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidTradeRecord)
	}
	if r.Side == TradeBuy && r.Profit != nil {
		return fmt.Errorf("%w: buy record must not carry profit", ErrInvalidTradeRecord)
	}
	return nil
}

// TradeLog is the append-only trade history of one account. Entries are
// ordered by insertion, which equals chronological order.
type TradeLog struct {
	records []TradeRecord
}

// Append validates and appends. Existing entries are never rewritten.
func (l *TradeLog) Append(r TradeRecord) error {
	if err := r.validate(); err != nil {
		return err
	}
	if last, ok := l.Last(); ok && r.Date.Before(last.Date) {
		return fmt.Errorf("%w: date %s precedes last recorded %s",
			ErrInvalidTradeRecord, r.Date.Format(time.RFC3339), last.Date.Format(time.RFC3339))
	}
	l.records = append(l.records, r)
	return nil
}

func (l *TradeLog) Len() int { return len(l.records) }

func (l *TradeLog) Last() (TradeRecord, bool) {
	if len(l.records) == 0 {
		return TradeRecord{}, false
	}
	return l.records[len(l.records)-1], true
}

// Records returns a copy so callers cannot mutate history.
func (l *TradeLog) Records() []TradeRecord {
	out := make([]TradeRecord, len(l.records))
	copy(out, l.records)
	return out
}

func (l TradeLog) clone() TradeLog {
	return TradeLog{records: l.Records()}
}

// replay rebuilds a log from persisted records, re-validating each append
// so corrupt storage fails closed instead of silently loading.
func replay(records []TradeRecord) (TradeLog, error) {
	var log TradeLog
	for i, r := range records {
		if err := log.Append(r); err != nil {
			return TradeLog{}, fmt.Errorf("trade history entry %d: %w", i, err)
		}
	}
	return log, nil
}
