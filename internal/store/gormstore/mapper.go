package gormstore

import (
	"fmt"
	"time"

	"gorm.io/datatypes"

	"aurum/internal/account"
	"aurum/internal/store/model"
)

func toModel(a *account.Account) (model.AccountModel, error) {
	posRaw, err := account.EncodePosition(a.Position)
	if err != nil {
		return model.AccountModel{}, fmt.Errorf("encode position: %w", err)
	}
	histRaw, err := account.EncodeTradeLog(a.Trades)
	if err != nil {
		return model.AccountModel{}, fmt.Errorf("encode trade history: %w", err)
	}
	return model.AccountModel{
		Auth:              a.Auth,
		ExpireTimeUnix:    unixOrZero(a.ExpireTime),
		Status:            int(a.Status),
		StartMinute:       int(a.Window.Start),
		EndMinute:         int(a.Window.End),
		Switched:          int(a.Switched),
		TotalCost:         a.TotalCost,
		TotalShares:       a.TotalShares,
		HistoryMaxProfit:  a.HistoryMaxProfit,
		LastTotalProfit:   a.LastTotalProfit,
		Position:          datatypes.JSON(posRaw),
		TradeHistory:      datatypes.JSON(histRaw),
		LastTradeDateUnix: unixOrZero(a.LastTradeDate),
		Creator:           a.Creator,
		Updater:           a.Updater,
		CreateTimeUnix:    unixOrZero(a.CreateTime),
		UpdateTimeUnix:    unixOrZero(a.UpdateTime),
		Version:           a.Version,
	}, nil
}

// fromModel decodes and validates the persisted blobs; corrupt state fails
// the load instead of being coerced to defaults.
func fromModel(m model.AccountModel) (*account.Account, error) {
	pos, err := account.DecodePosition([]byte(m.Position))
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", m.Auth, err)
	}
	trades, err := account.DecodeTradeLog([]byte(m.TradeHistory))
	if err != nil {
		return nil, fmt.Errorf("account %s: %w", m.Auth, err)
	}
	return &account.Account{
		Auth:             m.Auth,
		ExpireTime:       timeOrZero(m.ExpireTimeUnix),
		Status:           account.Status(m.Status),
		Window:           account.TradingWindow{Start: account.TimeOfDay(m.StartMinute), End: account.TimeOfDay(m.EndMinute)},
		Switched:         account.Switch(m.Switched),
		TotalCost:        m.TotalCost,
		TotalShares:      m.TotalShares,
		HistoryMaxProfit: m.HistoryMaxProfit,
		LastTotalProfit:  m.LastTotalProfit,
		Position:         pos,
		Trades:           trades,
		LastTradeDate:    timeOrZero(m.LastTradeDateUnix),
		Creator:          m.Creator,
		Updater:          m.Updater,
		CreateTime:       timeOrZero(m.CreateTimeUnix),
		UpdateTime:       timeOrZero(m.UpdateTimeUnix),
		Version:          m.Version,
	}, nil
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func timeOrZero(unix int64) time.Time {
	if unix == 0 {
		return time.Time{}
	}
	return time.Unix(unix, 0)
}
