// Package report renders decision-cycle outcomes: a structured Telegram
// message for humans plus a plain-text summary the advisor model consumes.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"aurum/internal/account"
	"aurum/internal/gateway/notifier"
	"aurum/internal/strategy"
)

// CycleReport 汇总一个决策周期的输入与结果。
type CycleReport struct {
	Auth      string
	StockCode string
	StockName string
	Price     decimal.Decimal
	Now       time.Time
	Account   *account.Account
	Result    strategy.CycleResult
	Advice    string
}

func pct(d decimal.Decimal) string {
	return d.Mul(decimal.NewFromInt(100)).StringFixed(2) + "%"
}

func (r CycleReport) stockLabel() string {
	if r.StockName != "" {
		return fmt.Sprintf("%s(%s)", r.StockName, r.StockCode)
	}
	return r.StockCode
}

// Message builds the Telegram notification for a cycle that executed a
// trade. Call only when Result.Trade is non-nil.
func (r CycleReport) Message() notifier.Message {
	trade := r.Result.Trade
	msg := notifier.Message{
		Timestamp: r.Now,
		Footer:    strings.TrimSpace(r.Advice),
	}
	if trade == nil {
		msg.Icon = "ℹ️"
		msg.Title = "周期完成 " + r.stockLabel()
		return msg
	}

	deal := notifier.Section{
		Title: "成交",
		Lines: []string{
			"价格 " + trade.Price.String(),
			fmt.Sprintf("数量 %d 股", trade.Shares),
			"金额 " + trade.Price.Mul(decimal.NewFromInt(trade.Shares)).StringFixed(2),
		},
	}
	why := notifier.Section{Title: "触发", Lines: r.Result.Reasons}

	switch trade.Side {
	case account.TradeBuy:
		msg.Icon = "📈"
		msg.Title = "开仓 " + r.stockLabel()
		msg.Sections = []notifier.Section{deal, why}
	case account.TradeSell:
		msg.Icon = "📉"
		msg.Title = "平仓 " + r.stockLabel()
		outcome := notifier.Section{Title: "结果"}
		if p := r.Result.RealizedProfit; p != nil {
			outcome.Lines = append(outcome.Lines, "实现盈亏 "+p.StringFixed(2))
		}
		if a := r.Result.Annualized; a != nil {
			outcome.Lines = append(outcome.Lines, "年化收益 "+pct(*a))
		}
		if r.Account != nil {
			outcome.Lines = append(outcome.Lines, "历史最高收益 "+r.Account.HistoryMaxProfit.StringFixed(2))
		}
		msg.Sections = []notifier.Section{deal, why, outcome}
	}
	return msg
}

// Summary renders the plain-text digest fed to the advisor model.
func (r CycleReport) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "标的: %s\n", r.stockLabel())
	fmt.Fprintf(&b, "现价: %s\n", r.Price.String())
	if r.Result.Skip != account.SkipNone {
		fmt.Fprintf(&b, "跳过: %s\n", r.Result.Skip)
		return b.String()
	}
	fmt.Fprintf(&b, "决策: %s\n", r.Result.Decision)
	if len(r.Result.Reasons) > 0 {
		fmt.Fprintf(&b, "依据: %s\n", strings.Join(r.Result.Reasons, ", "))
	}
	if r.Result.Note != "" {
		fmt.Fprintf(&b, "备注: %s\n", r.Result.Note)
	}
	if t := r.Result.Trade; t != nil {
		fmt.Fprintf(&b, "成交: %s %d 股 @ %s\n", t.Side, t.Shares, t.Price)
	}
	if p := r.Result.RealizedProfit; p != nil {
		fmt.Fprintf(&b, "实现盈亏: %s\n", p.StringFixed(2))
	}
	if r.Account != nil && r.Account.Position.HasPosition {
		pos := r.Account.Position
		fmt.Fprintf(&b, "持仓: %d 股 @ %s, 当前收益率 %s, 持有期最高 %s\n",
			pos.Shares, pos.BuyPrice, pct(pos.CurrentProfitRate), pct(pos.MaxProfitRate))
	}
	return b.String()
}
