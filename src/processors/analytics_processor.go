package processors

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/username/tradefolio/backend/src/models"
	"github.com/username/tradefolio/backend/src/money"
	"github.com/username/tradefolio/backend/src/utils"
)

var hundred = decimal.NewFromInt(100)

// AnalyticsProcessor derives the full per-user performance snapshot from
// the complete current set of trades. It never consults history or the
// previous snapshot, which is what makes it safe to run after arbitrary
// add/edit/delete sequences.
type AnalyticsProcessor struct{}

func NewAnalyticsProcessor() *AnalyticsProcessor { return &AnalyticsProcessor{} }

// Compute aggregates counts, totals, and period buckets. Summation is
// exact; display aggregates are rounded to 2 decimal places only at the
// end. A zero-trade input yields all-zero rates and averages, never a
// division error. Calling Compute twice over the same trades with the
// same now yields identical output.
func (p *AnalyticsProcessor) Compute(userID int64, trades []models.Trade, now time.Time) *models.Analytics {
	a := &models.Analytics{
		UserID:     userID,
		DailyPnL:   make(map[string]decimal.Decimal),
		WeeklyPnL:  make(map[string]decimal.Decimal),
		MonthlyPnL: make(map[string]decimal.Decimal),
		UpdatedAt:  now,
	}

	var (
		total       decimal.Decimal
		largestWin  decimal.Decimal
		largestLoss decimal.Decimal
	)

	for _, t := range trades {
		a.TotalTrades++
		total = total.Add(t.PnL)

		switch {
		case t.PnL.IsPositive():
			a.WinningTrades++
			if t.PnL.GreaterThan(largestWin) {
				largestWin = t.PnL
			}
		case t.PnL.IsNegative():
			a.LosingTrades++
			if t.PnL.LessThan(largestLoss) {
				largestLoss = t.PnL
			}
		default:
			a.BreakevenTrades++
		}

		day, err := time.Parse(utils.DayKeyFormat, t.TradeDate)
		if err != nil {
			// The canonical date is set by the mapper; an unparseable one
			// means a corrupted row, which must not sink the recompute.
			continue
		}
		a.DailyPnL[utils.DayKey(day)] = a.DailyPnL[utils.DayKey(day)].Add(t.PnL)
		a.WeeklyPnL[utils.WeekKey(day)] = a.WeeklyPnL[utils.WeekKey(day)].Add(t.PnL)
		a.MonthlyPnL[utils.MonthKey(day)] = a.MonthlyPnL[utils.MonthKey(day)].Add(t.PnL)
	}

	if a.TotalTrades > 0 {
		n := decimal.NewFromInt(int64(a.TotalTrades))
		a.AveragePnL = money.Round2(total.Div(n))
		a.WinRate = money.Round2(decimal.NewFromInt(int64(a.WinningTrades)).Mul(hundred).Div(n))
		a.LossRate = money.Round2(decimal.NewFromInt(int64(a.LosingTrades)).Mul(hundred).Div(n))
	}

	a.TotalPnL = money.Round2(total)
	a.CumulativePnL = a.TotalPnL
	a.LargestWin = money.Round2(largestWin)
	a.LargestLoss = money.Round2(largestLoss)

	for k, v := range a.DailyPnL {
		a.DailyPnL[k] = money.Round2(v)
	}
	for k, v := range a.WeeklyPnL {
		a.WeeklyPnL[k] = money.Round2(v)
	}
	for k, v := range a.MonthlyPnL {
		a.MonthlyPnL[k] = money.Round2(v)
	}

	return a
}
