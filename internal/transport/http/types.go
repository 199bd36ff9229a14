package apihttp

import (
	"time"

	"github.com/shopspring/decimal"

	"aurum/internal/account"
)

// RegisterRequest 注册或同步一个授权账户。
type RegisterRequest struct {
	Auth        string          `json:"auth" binding:"required"`
	TotalCost   decimal.Decimal `json:"total_cost"`
	TotalShares int64           `json:"total_shares"`
	ExpireDays  int             `json:"expire_days"`
	WindowStart string          `json:"window_start"`
	WindowEnd   string          `json:"window_end"`
	Enabled     *bool           `json:"enabled"`
}

// AccountView 是账户的对外 JSON 形态，金额一律字符串。
type AccountView struct {
	Auth             string        `json:"auth"`
	Status           int           `json:"status"`
	Enabled          bool          `json:"enabled"`
	ExpireTime       string        `json:"expire_time,omitempty"`
	WindowStart      string        `json:"window_start"`
	WindowEnd        string        `json:"window_end"`
	TotalCost        string        `json:"total_cost"`
	TotalShares      int64         `json:"total_shares"`
	HistoryMaxProfit string        `json:"history_max_profit"`
	LastTotalProfit  string        `json:"last_total_profit"`
	LastTradeDate    string        `json:"last_trade_date,omitempty"`
	Position         *PositionView `json:"position,omitempty"`
	Version          int64         `json:"version"`
}

type PositionView struct {
	BuyPrice          string `json:"buy_price"`
	Shares            int64  `json:"shares"`
	Amount            string `json:"amount"`
	CurrentProfitRate string `json:"current_profit_rate"`
	MaxProfitRate     string `json:"max_profit_rate"`
}

type TradeView struct {
	Date   string `json:"date"`
	Type   string `json:"type"`
	Price  string `json:"price"`
	Shares int64  `json:"shares"`
	Profit string `json:"profit,omitempty"`
}

func accountView(a *account.Account) AccountView {
	v := AccountView{
		Auth:             a.Auth,
		Status:           int(a.Status),
		Enabled:          a.Switched == account.SwitchOn,
		WindowStart:      a.Window.Start.String(),
		WindowEnd:        a.Window.End.String(),
		TotalCost:        a.TotalCost.String(),
		TotalShares:      a.TotalShares,
		HistoryMaxProfit: a.HistoryMaxProfit.String(),
		LastTotalProfit:  a.LastTotalProfit.String(),
		Version:          a.Version,
	}
	if !a.ExpireTime.IsZero() {
		v.ExpireTime = a.ExpireTime.Format(time.RFC3339)
	}
	if !a.LastTradeDate.IsZero() {
		v.LastTradeDate = a.LastTradeDate.Format("2006-01-02")
	}
	if a.Position.HasPosition {
		v.Position = &PositionView{
			BuyPrice:          a.Position.BuyPrice.String(),
			Shares:            a.Position.Shares,
			Amount:            a.Position.Amount.String(),
			CurrentProfitRate: a.Position.CurrentProfitRate.String(),
			MaxProfitRate:     a.Position.MaxProfitRate.String(),
		}
	}
	return v
}

func tradeViews(a *account.Account) []TradeView {
	records := a.Trades.Records()
	out := make([]TradeView, 0, len(records))
	for _, r := range records {
		tv := TradeView{
			Date:   r.Date.Format(time.RFC3339),
			Type:   string(r.Side),
			Price:  r.Price.String(),
			Shares: r.Shares,
		}
		if r.Profit != nil {
			tv.Profit = r.Profit.String()
		}
		out = append(out, tv)
	}
	return out
}
