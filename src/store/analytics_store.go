package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/username/tradefolio/backend/src/models"
)

// SQLiteAnalyticsStore persists the singleton per-user analytics row.
type SQLiteAnalyticsStore struct {
	db *sql.DB
}

func NewSQLiteAnalyticsStore(db *sql.DB) *SQLiteAnalyticsStore {
	return &SQLiteAnalyticsStore{db: db}
}

func (s *SQLiteAnalyticsStore) Get(ctx context.Context, userID int64) (*models.Analytics, error) {
	row := s.db.QueryRowContext(ctx, `SELECT user_id, total_trades, winning_trades, losing_trades,
		breakeven_trades, total_pnl, average_pnl, win_rate, loss_rate, largest_win, largest_loss,
		cumulative_pnl, daily_pnl, weekly_pnl, monthly_pnl, updated_at
		FROM user_analytics WHERE user_id = ?`, userID)

	var (
		a                                                                     models.Analytics
		totalPnL, averagePnL, winRate, lossRate, largestWin, largestLoss, cum string
		daily, weekly, monthly                                                string
	)
	err := row.Scan(&a.UserID, &a.TotalTrades, &a.WinningTrades, &a.LosingTrades, &a.BreakevenTrades,
		&totalPnL, &averagePnL, &winRate, &lossRate, &largestWin, &largestLoss, &cum,
		&daily, &weekly, &monthly, &a.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching analytics for user %d: %w", userID, err)
	}

	fields := []struct {
		dst *decimal.Decimal
		src string
	}{
		{&a.TotalPnL, totalPnL}, {&a.AveragePnL, averagePnL}, {&a.WinRate, winRate},
		{&a.LossRate, lossRate}, {&a.LargestWin, largestWin}, {&a.LargestLoss, largestLoss},
		{&a.CumulativePnL, cum},
	}
	for _, f := range fields {
		d, err := decimal.NewFromString(f.src)
		if err != nil {
			return nil, fmt.Errorf("invalid analytics decimal %q for user %d: %w", f.src, userID, err)
		}
		*f.dst = d
	}

	if err := json.Unmarshal([]byte(daily), &a.DailyPnL); err != nil {
		return nil, fmt.Errorf("invalid daily_pnl for user %d: %w", userID, err)
	}
	if err := json.Unmarshal([]byte(weekly), &a.WeeklyPnL); err != nil {
		return nil, fmt.Errorf("invalid weekly_pnl for user %d: %w", userID, err)
	}
	if err := json.Unmarshal([]byte(monthly), &a.MonthlyPnL); err != nil {
		return nil, fmt.Errorf("invalid monthly_pnl for user %d: %w", userID, err)
	}
	return &a, nil
}

// Replace swaps the user's snapshot wholesale inside one transaction.
// Delete-then-insert keeps counts and totals consistent with each other;
// no reader can observe a partially updated row.
func (s *SQLiteAnalyticsStore) Replace(ctx context.Context, a *models.Analytics) error {
	daily, err := json.Marshal(a.DailyPnL)
	if err != nil {
		return fmt.Errorf("error marshaling daily_pnl: %w", err)
	}
	weekly, err := json.Marshal(a.WeeklyPnL)
	if err != nil {
		return fmt.Errorf("error marshaling weekly_pnl: %w", err)
	}
	monthly, err := json.Marshal(a.MonthlyPnL)
	if err != nil {
		return fmt.Errorf("error marshaling monthly_pnl: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning analytics replace: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_analytics WHERE user_id = ?`, a.UserID); err != nil {
		return fmt.Errorf("error clearing analytics for user %d: %w", a.UserID, err)
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO user_analytics
		(user_id, total_trades, winning_trades, losing_trades, breakeven_trades,
		total_pnl, average_pnl, win_rate, loss_rate, largest_win, largest_loss,
		cumulative_pnl, daily_pnl, weekly_pnl, monthly_pnl, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.UserID, a.TotalTrades, a.WinningTrades, a.LosingTrades, a.BreakevenTrades,
		a.TotalPnL.String(), a.AveragePnL.String(), a.WinRate.String(), a.LossRate.String(),
		a.LargestWin.String(), a.LargestLoss.String(), a.CumulativePnL.String(),
		string(daily), string(weekly), string(monthly), a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error inserting analytics for user %d: %w", a.UserID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing analytics replace for user %d: %w", a.UserID, err)
	}
	return nil
}
