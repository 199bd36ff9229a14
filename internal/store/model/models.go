package model

import (
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// AccountModel is the persisted shape of one strategy account. Decimal
// columns are stored as text through shopspring's Valuer; position and
// trade history are schema-versioned JSON blobs validated on load.
type AccountModel struct {
	ID   int64  `gorm:"column:id;primaryKey"`
	Auth string `gorm:"column:auth;uniqueIndex;size:64"`

	ExpireTimeUnix int64 `gorm:"column:expire_time"`
	Status         int   `gorm:"column:status"`
	StartMinute    int   `gorm:"column:start_minute"`
	EndMinute      int   `gorm:"column:end_minute"`
	Switched       int   `gorm:"column:switched"`

	TotalCost        decimal.Decimal `gorm:"column:total_cost;type:TEXT"`
	TotalShares      int64           `gorm:"column:total_shares"`
	HistoryMaxProfit decimal.Decimal `gorm:"column:history_max_profit;type:TEXT"`
	LastTotalProfit  decimal.Decimal `gorm:"column:last_total_profit;type:TEXT"`

	Position     datatypes.JSON `gorm:"column:position;type:TEXT"`
	TradeHistory datatypes.JSON `gorm:"column:trade_history;type:TEXT"`

	LastTradeDateUnix int64 `gorm:"column:last_trade_date"`

	Creator        string `gorm:"column:creator;size:64"`
	Updater        string `gorm:"column:updater;size:64"`
	CreateTimeUnix int64  `gorm:"column:create_time"`
	UpdateTimeUnix int64  `gorm:"column:update_time"`

	Version int64 `gorm:"column:version"`
}

func (AccountModel) TableName() string { return "strategy_accounts" }
