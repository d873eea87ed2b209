package processors

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/tradefolio/backend/src/models"
)

func tradeWith(pnl string, date string) models.Trade {
	return models.Trade{
		UserID:    1,
		Symbol:    "AAPL",
		Direction: models.DirectionLong,
		Quantity:  1,
		PnL:       decimal.RequireFromString(pnl),
		TradeDate: date,
	}
}

func TestComputeEmptyInput(t *testing.T) {
	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	a := NewAnalyticsProcessor().Compute(1, nil, now)

	if a.TotalTrades != 0 {
		t.Errorf("TotalTrades = %d, want 0", a.TotalTrades)
	}
	if !a.WinRate.IsZero() || !a.LossRate.IsZero() || !a.AveragePnL.IsZero() {
		t.Errorf("rates should be zero with no trades: win=%s loss=%s avg=%s",
			a.WinRate, a.LossRate, a.AveragePnL)
	}
	if len(a.DailyPnL) != 0 || len(a.WeeklyPnL) != 0 || len(a.MonthlyPnL) != 0 {
		t.Errorf("period buckets should be empty with no trades")
	}
}

func TestComputeCountsAndRates(t *testing.T) {
	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	trades := []models.Trade{
		tradeWith("10.00", "2025-03-03"),
		tradeWith("-4.00", "2025-03-03"),
		tradeWith("0", "2025-03-04"),
		tradeWith("6.50", "2025-03-05"),
	}

	a := NewAnalyticsProcessor().Compute(1, trades, now)

	if a.TotalTrades != 4 || a.WinningTrades != 2 || a.LosingTrades != 1 || a.BreakevenTrades != 1 {
		t.Fatalf("counts = %d/%d/%d/%d, want 4/2/1/1",
			a.TotalTrades, a.WinningTrades, a.LosingTrades, a.BreakevenTrades)
	}
	if want := decimal.NewFromFloat(12.5); !a.TotalPnL.Equal(want) {
		t.Errorf("TotalPnL = %s, want %s", a.TotalPnL, want)
	}
	if want := decimal.NewFromInt(50); !a.WinRate.Equal(want) {
		t.Errorf("WinRate = %s, want %s", a.WinRate, want)
	}
	if want := decimal.NewFromInt(25); !a.LossRate.Equal(want) {
		t.Errorf("LossRate = %s, want %s", a.LossRate, want)
	}
	if want := decimal.NewFromFloat(3.13); !a.AveragePnL.Equal(want) {
		t.Errorf("AveragePnL = %s, want %s", a.AveragePnL, want)
	}
	if want := decimal.NewFromInt(10); !a.LargestWin.Equal(want) {
		t.Errorf("LargestWin = %s, want %s", a.LargestWin, want)
	}
	if want := decimal.NewFromInt(-4); !a.LargestLoss.Equal(want) {
		t.Errorf("LargestLoss = %s, want %s", a.LargestLoss, want)
	}
}

func TestComputePeriodBuckets(t *testing.T) {
	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	trades := []models.Trade{
		// Two trades on the same day collapse into one daily bucket.
		tradeWith("5.00", "2025-03-03"),
		tradeWith("3.00", "2025-03-03"),
		// Next ISO week, same month.
		tradeWith("-2.00", "2025-03-12"),
	}

	a := NewAnalyticsProcessor().Compute(1, trades, now)

	if len(a.DailyPnL) != 2 {
		t.Fatalf("DailyPnL has %d buckets, want 2: %v", len(a.DailyPnL), a.DailyPnL)
	}
	if want := decimal.NewFromInt(8); !a.DailyPnL["2025-03-03"].Equal(want) {
		t.Errorf("DailyPnL[2025-03-03] = %s, want %s", a.DailyPnL["2025-03-03"], want)
	}

	if len(a.WeeklyPnL) != 2 {
		t.Fatalf("WeeklyPnL has %d buckets, want 2: %v", len(a.WeeklyPnL), a.WeeklyPnL)
	}
	if want := decimal.NewFromInt(8); !a.WeeklyPnL["2025-W10"].Equal(want) {
		t.Errorf("WeeklyPnL[2025-W10] = %s, want %s", a.WeeklyPnL["2025-W10"], want)
	}
	if want := decimal.NewFromInt(-2); !a.WeeklyPnL["2025-W11"].Equal(want) {
		t.Errorf("WeeklyPnL[2025-W11] = %s, want %s", a.WeeklyPnL["2025-W11"], want)
	}

	if len(a.MonthlyPnL) != 1 {
		t.Fatalf("MonthlyPnL has %d buckets, want 1: %v", len(a.MonthlyPnL), a.MonthlyPnL)
	}
	if want := decimal.NewFromInt(6); !a.MonthlyPnL["2025-03"].Equal(want) {
		t.Errorf("MonthlyPnL[2025-03] = %s, want %s", a.MonthlyPnL["2025-03"], want)
	}
}

func TestComputeSkipsCorruptDates(t *testing.T) {
	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	trades := []models.Trade{
		tradeWith("5.00", "2025-03-03"),
		tradeWith("7.00", "not-a-date"),
	}

	a := NewAnalyticsProcessor().Compute(1, trades, now)

	// The corrupt row still counts toward totals, just not toward buckets.
	if a.TotalTrades != 2 {
		t.Errorf("TotalTrades = %d, want 2", a.TotalTrades)
	}
	if want := decimal.NewFromInt(12); !a.TotalPnL.Equal(want) {
		t.Errorf("TotalPnL = %s, want %s", a.TotalPnL, want)
	}
	if len(a.DailyPnL) != 1 {
		t.Errorf("DailyPnL has %d buckets, want 1", len(a.DailyPnL))
	}
}

func TestComputeIdempotent(t *testing.T) {
	now := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	trades := []models.Trade{
		tradeWith("10.00", "2025-03-03"),
		tradeWith("-4.00", "2025-03-05"),
		tradeWith("1.25", "2025-04-01"),
	}

	p := NewAnalyticsProcessor()
	first, err := json.Marshal(p.Compute(1, trades, now))
	if err != nil {
		t.Fatal(err)
	}
	second, err := json.Marshal(p.Compute(1, trades, now))
	if err != nil {
		t.Fatal(err)
	}
	if string(first) != string(second) {
		t.Errorf("repeated compute over identical input differs:\n%s\n%s", first, second)
	}
}
