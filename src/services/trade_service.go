package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/username/tradefolio/backend/src/logger"
	"github.com/username/tradefolio/backend/src/models"
	"github.com/username/tradefolio/backend/src/processors"
	"github.com/username/tradefolio/backend/src/store"
	"github.com/username/tradefolio/backend/src/utils"
)

// TradeService handles single-trade reads and mutations. Every mutation
// marks the owner's analytics stale and recomputes before returning, so
// the snapshot a client reads right after a mutation is already current.
type TradeService struct {
	trades    store.TradeStore
	analytics *AnalyticsService
}

func NewTradeService(trades store.TradeStore, analytics *AnalyticsService) *TradeService {
	return &TradeService{trades: trades, analytics: analytics}
}

func (s *TradeService) List(ctx context.Context, userID int64) ([]models.Trade, error) {
	return s.trades.ListByUser(ctx, userID)
}

func (s *TradeService) ListDateRange(ctx context.Context, userID int64, from, to string) ([]models.Trade, error) {
	return s.trades.ListByUserDateRange(ctx, userID, from, to)
}

// Delete removes a trade after an ownership check. The check runs before
// any store mutation; a mismatch has no side effects.
func (s *TradeService) Delete(ctx context.Context, userID, tradeID int64) error {
	trade, err := s.trades.Get(ctx, tradeID)
	if err != nil {
		return err
	}
	if trade == nil {
		return ErrTradeNotFound
	}
	if trade.UserID != userID {
		return ErrNotOwner
	}

	if err := s.trades.Delete(ctx, tradeID); err != nil {
		return err
	}

	s.analytics.MarkStale(userID)
	if _, err := s.analytics.Recompute(ctx, userID); err != nil {
		// The delete is committed; the snapshot stays stale for the next read.
		logger.L.Warn("Recompute after trade delete failed", "userID", userID,
			"tradeID", tradeID, "error", err)
	}
	return nil
}

// Update applies a patch to an owned trade. The stored PnL is recomputed
// only when the patch touches one of its inputs without supplying an
// explicit PnL; an untouched re-save never silently changes it.
func (s *TradeService) Update(ctx context.Context, userID, tradeID int64, patch models.TradePatch) (*models.Trade, error) {
	trade, err := s.trades.Get(ctx, tradeID)
	if err != nil {
		return nil, err
	}
	if trade == nil {
		return nil, ErrTradeNotFound
	}
	if trade.UserID != userID {
		return nil, ErrNotOwner
	}

	if err := applyPatch(trade, patch); err != nil {
		return nil, err
	}

	if err := s.trades.Update(ctx, trade); err != nil {
		return nil, err
	}

	s.analytics.MarkStale(userID)
	if _, err := s.analytics.Recompute(ctx, userID); err != nil {
		logger.L.Warn("Recompute after trade update failed", "userID", userID,
			"tradeID", tradeID, "error", err)
	}
	return trade, nil
}

func applyPatch(trade *models.Trade, patch models.TradePatch) error {
	if patch.Symbol != nil {
		sym := strings.TrimSpace(*patch.Symbol)
		if sym == "" {
			return fmt.Errorf("symbol cannot be empty")
		}
		trade.Symbol = sym
	}
	if patch.Direction != nil {
		dir := models.Direction(strings.ToLower(strings.TrimSpace(*patch.Direction)))
		if !dir.Valid() {
			return fmt.Errorf("invalid direction %q", *patch.Direction)
		}
		trade.Direction = dir
	}
	if patch.Quantity != nil {
		if *patch.Quantity <= 0 {
			return fmt.Errorf("quantity must be positive")
		}
		trade.Quantity = *patch.Quantity
	}
	if patch.EntryPrice != nil {
		trade.EntryPrice = *patch.EntryPrice
	}
	if patch.ExitPrice != nil {
		trade.ExitPrice = patch.ExitPrice
	}
	if patch.Fees != nil {
		trade.Fees = patch.Fees.Abs()
	}
	if patch.Notes != nil {
		trade.Notes = *patch.Notes
	}

	timesChanged := false
	if patch.EntryTime != nil {
		if t, ok := utils.ParseTimestamp(*patch.EntryTime); ok {
			trade.EntryTime = &t
			timesChanged = true
		} else {
			return fmt.Errorf("invalid entry_time %q", *patch.EntryTime)
		}
	}
	if patch.ExitTime != nil {
		if t, ok := utils.ParseTimestamp(*patch.ExitTime); ok {
			trade.ExitTime = &t
			timesChanged = true
		} else {
			return fmt.Errorf("invalid exit_time %q", *patch.ExitTime)
		}
	}
	if timesChanged {
		trade.TradeDate = utils.CanonicalDate(trade.EntryTime, trade.ExitTime, time.Now().UTC())
	}

	switch {
	case patch.PnL != nil:
		trade.PnL = *patch.PnL
	case patch.TouchesPnLInputs() && trade.ExitPrice != nil:
		trade.PnL = processors.ComputePnL(trade.Direction, trade.EntryPrice, *trade.ExitPrice, trade.Quantity, trade.Fees)
	}
	return nil
}
