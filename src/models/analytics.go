package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Analytics is the cached, per-user performance snapshot. It is always
// re-derivable in full from the user's trades and is replaced wholesale
// on every recompute; no field is ever patched in isolation.
type Analytics struct {
	UserID int64 `json:"user_id"`

	TotalTrades     int `json:"total_trades"`
	WinningTrades   int `json:"winning_trades"`
	LosingTrades    int `json:"losing_trades"`
	BreakevenTrades int `json:"breakeven_trades"`

	TotalPnL    decimal.Decimal `json:"total_pnl"`
	AveragePnL  decimal.Decimal `json:"average_pnl"`
	WinRate     decimal.Decimal `json:"win_rate"`  // percent
	LossRate    decimal.Decimal `json:"loss_rate"` // percent
	LargestWin  decimal.Decimal `json:"largest_win"`
	LargestLoss decimal.Decimal `json:"largest_loss"`

	// Period keys: day "2006-01-02", ISO week "2006-W07", month "2006-01".
	// Buckets with no trades are absent. encoding/json emits map keys
	// sorted, which for these key formats is chronological order.
	DailyPnL   map[string]decimal.Decimal `json:"daily_pnl"`
	WeeklyPnL  map[string]decimal.Decimal `json:"weekly_pnl"`
	MonthlyPnL map[string]decimal.Decimal `json:"monthly_pnl"`

	CumulativePnL decimal.Decimal `json:"cumulative_pnl"`

	UpdatedAt time.Time `json:"updated_at"`
}
